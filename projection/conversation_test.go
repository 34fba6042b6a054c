package projection

import (
	"context"
	"fmt"
	"hive-chat/domain"
	"hive-chat/domain/event"
	"hive-chat/errors"
	"hive-chat/mocks"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	t1 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 = t1.Add(time.Minute)
	t3 = t2.Add(time.Minute)
)

func received(id domain.MessageID, from, to, text string, at time.Time) event.MessageReceived {
	return event.MessageReceived{Message: domain.Message{ID: id, SenderID: from, RecipientID: to, Text: text, Timestamp: at}}
}

func TestConversationView_Open_Then_Live(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockHistoryFetcher(ctrl)
	hi := received(1, "1", "2", "hi", t1).Message

	// Given user 2 opens the conversation with user 1 after "hi" was stored
	fetcher.EXPECT().FetchHistory(gomock.Any(), "2", "1").Return([]domain.Message{hi}, nil).Times(1)
	view := NewConversationView(fetcher)
	view.SetIdentity("2")
	req.Equal(StateEmpty, view.State())
	req.NoError(view.Open(context.Background(), "1"))

	// Then the snapshot is shown
	req.Equal(StateSynced, view.State())
	req.Equal([]domain.Message{hi}, view.Messages())

	// When "yo" is pushed live
	req.True(view.Apply(received(2, "1", "2", "yo", t2)))

	// Then it is appended without refetching
	messages := view.Messages()
	req.Len(messages, 2)
	req.Equal("hi", messages[0].Text)
	req.Equal("yo", messages[1].Text)
}

func TestConversationView_Filters_Other_Conversations(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockHistoryFetcher(ctrl)
	fetcher.EXPECT().FetchHistory(gomock.Any(), "1", "2").Return([]domain.Message{}, nil)

	view := NewConversationView(fetcher)
	view.SetIdentity("1")
	req.NoError(view.Open(context.Background(), "2"))

	req.False(view.Apply(received(1, "3", "1", "from someone else", t1)))
	req.False(view.Apply(received(2, "2", "3", "not for me", t1)))
	req.False(view.Apply(event.UsersListed{}))
	req.True(view.Apply(received(3, "2", "1", "for me", t1)))
	req.True(view.Apply(received(4, "1", "2", "my echo", t2)))
	req.Len(view.Messages(), 2)
}

func TestConversationView_Dedup(t *testing.T) {
	ctx := context.Background()

	t.Run("should suppress an event matching the tail triple", func(t *testing.T) {
		req := require.New(t)
		fetcher := mocks.NewMockHistoryFetcher(gomock.NewController(t))
		fetcher.EXPECT().FetchHistory(gomock.Any(), "1", "2").Return([]domain.Message{}, nil)
		view := NewConversationView(fetcher)
		view.SetIdentity("1")
		req.NoError(view.Open(ctx, "2"))

		// Same content and timestamp but no id, as a client-side optimistic copy would be
		req.True(view.Apply(received(7, "1", "2", "hi", t1)))
		req.False(view.Apply(received(0, "1", "2", "hi", t1)))
		req.Len(view.Messages(), 1)
	})

	t.Run("should suppress a message whose id is already shown", func(t *testing.T) {
		req := require.New(t)
		fetcher := mocks.NewMockHistoryFetcher(gomock.NewController(t))
		stored := received(1, "1", "2", "hi", t1).Message
		fetcher.EXPECT().FetchHistory(gomock.Any(), "1", "2").Return([]domain.Message{stored}, nil)
		view := NewConversationView(fetcher)
		view.SetIdentity("1")
		req.NoError(view.Open(ctx, "2"))

		req.True(view.Apply(received(2, "2", "1", "yo", t2)))
		// Redelivery of an older message is not a tail match but is still known
		req.False(view.Apply(event.MessageReceived{Message: stored}))
		req.Len(view.Messages(), 2)
	})

	t.Run("should keep distinct messages with same text", func(t *testing.T) {
		req := require.New(t)
		fetcher := mocks.NewMockHistoryFetcher(gomock.NewController(t))
		fetcher.EXPECT().FetchHistory(gomock.Any(), "1", "2").Return([]domain.Message{}, nil)
		view := NewConversationView(fetcher)
		view.SetIdentity("1")
		req.NoError(view.Open(ctx, "2"))

		req.True(view.Apply(received(1, "1", "2", "ok", t1)))
		req.True(view.Apply(received(2, "1", "2", "ok", t2)))
		req.True(view.Apply(received(3, "2", "1", "ok", t2)))
		req.Len(view.Messages(), 3)
	})
}

func TestConversationView_Ignores_Events_When_Empty(t *testing.T) {
	req := require.New(t)
	view := NewConversationView(mocks.NewMockHistoryFetcher(gomock.NewController(t)))
	view.SetIdentity("1")

	req.False(view.Apply(received(1, "2", "1", "hi", t1)))
	req.Empty(view.Messages())
}

func TestConversationView_Merges_Events_Pushed_While_Loading(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockHistoryFetcher(ctrl)
	hi := received(1, "1", "2", "hi", t1).Message
	view := NewConversationView(fetcher)
	view.SetIdentity("2")

	// Given two pushes arrive during the fetch, one of them already part of the snapshot
	fetcher.EXPECT().FetchHistory(gomock.Any(), "2", "1").
		DoAndReturn(func(context.Context, string, string) ([]domain.Message, error) {
			req.Equal(StateLoading, view.State())
			req.False(view.Apply(event.MessageReceived{Message: hi}))
			req.False(view.Apply(received(2, "1", "2", "yo", t2)))
			return []domain.Message{hi}, nil
		})

	req.NoError(view.Open(context.Background(), "1"))

	messages := view.Messages()
	req.Len(messages, 2)
	req.Equal(domain.MessageID(1), messages[0].ID)
	req.Equal(domain.MessageID(2), messages[1].ID)
}

func TestConversationView_Switch_Peer_Discards_View(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockHistoryFetcher(ctrl)
	fetcher.EXPECT().FetchHistory(gomock.Any(), "1", "2").Return([]domain.Message{received(1, "1", "2", "to bob", t1).Message}, nil)
	fetcher.EXPECT().FetchHistory(gomock.Any(), "1", "3").Return([]domain.Message{}, nil)

	view := NewConversationView(fetcher)
	view.SetIdentity("1")
	req.NoError(view.Open(context.Background(), "2"))
	req.Len(view.Messages(), 1)

	req.NoError(view.Open(context.Background(), "3"))
	req.Equal("3", view.Peer())
	req.Empty(view.Messages())
	req.False(view.Apply(received(2, "2", "1", "late from bob", t3)))
}

func TestConversationView_Identity_Change_Resets(t *testing.T) {
	req := require.New(t)
	fetcher := mocks.NewMockHistoryFetcher(gomock.NewController(t))
	fetcher.EXPECT().FetchHistory(gomock.Any(), "1", "2").Return([]domain.Message{received(1, "1", "2", "hi", t1).Message}, nil)
	view := NewConversationView(fetcher)
	view.SetIdentity("1")
	req.NoError(view.Open(context.Background(), "2"))

	view.SetIdentity("3")

	req.Equal(StateEmpty, view.State())
	req.Empty(view.Messages())
	req.Empty(view.Peer())
}

func TestConversationView_Open_Errors(t *testing.T) {
	t.Run("should need an identity", func(t *testing.T) {
		view := NewConversationView(mocks.NewMockHistoryFetcher(gomock.NewController(t)))
		require.ErrorIs(t, view.Open(context.Background(), "2"), errors.ErrMissingIdentity)
	})

	t.Run("should go back to empty when the fetch fails", func(t *testing.T) {
		req := require.New(t)
		fetcher := mocks.NewMockHistoryFetcher(gomock.NewController(t))
		fetcher.EXPECT().FetchHistory(gomock.Any(), "1", "2").
			Return(nil, fmt.Errorf("%w: timeout", errors.ErrStorageUnavailable))
		view := NewConversationView(fetcher)
		view.SetIdentity("1")

		req.ErrorIs(view.Open(context.Background(), "2"), errors.ErrStorageUnavailable)
		req.Equal(StateEmpty, view.State())
	})

	t.Run("should drop a snapshot superseded during the fetch", func(t *testing.T) {
		req := require.New(t)
		fetcher := mocks.NewMockHistoryFetcher(gomock.NewController(t))
		view := NewConversationView(fetcher)
		view.SetIdentity("1")
		fetcher.EXPECT().FetchHistory(gomock.Any(), "1", "2").
			DoAndReturn(func(context.Context, string, string) ([]domain.Message, error) {
				view.Close()
				return []domain.Message{received(1, "1", "2", "stale", t1).Message}, nil
			})

		req.ErrorIs(view.Open(context.Background(), "2"), ErrSuperseded)
		req.Equal(StateEmpty, view.State())
		req.Empty(view.Messages())
	})
}
