package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"hive-chat/contract"
	"hive-chat/domain"
	"hive-chat/domain/chat"
	"hive-chat/domain/event"
	"hive-chat/errors"
	"hive-chat/mocks"
	"hive-chat/repositories"
	"hive-chat/runtime"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newMockChannel(ctrl *gomock.Controller, id string) *mocks.MockChannel {
	channel := mocks.NewMockChannel(ctrl)
	channel.EXPECT().ID().Return(id).AnyTimes()
	return channel
}

func newService(registry contract.IPresenceRegistry, store contract.IMessageStore, users contract.IUserDirectory) *ChatService {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return NewChatService(log, registry, store, users, time.Second, 500)
}

func TestChatService_Send(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	t.Run("should persist then push to recipient and echo to sender", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockIMessageStore(ctrl)
		registry := runtime.NewRegistry()
		recipient := newMockChannel(ctrl, "channel-2")
		origin := newMockChannel(ctrl, "channel-1")
		registry.Register("1", origin)
		registry.Register("2", recipient)
		stored := domain.Message{ID: 1, SenderID: "1", RecipientID: "2", Text: "yo", Timestamp: at}

		// Given persistence happens strictly before any live push
		gomock.InOrder(
			store.EXPECT().Append(gomock.Any(), domain.Message{SenderID: "1", RecipientID: "2", Text: "yo", Timestamp: at}).
				Return(stored, nil),
			recipient.EXPECT().Consume(gomock.Any(), event.MessageReceived{Message: stored}).Return(nil),
			origin.EXPECT().Consume(gomock.Any(), event.MessageReceived{Message: stored}).Return(nil),
		)

		// When sending
		result, err := newService(registry, store, nil).Send(ctx, origin,
			chat.SendMessageCommand{SenderID: "1", RecipientID: "2", Text: "yo", Timestamp: lo.ToPtr(at)})

		// Then the stored message is returned
		req.NoError(err)
		req.Equal(stored, result)
	})

	t.Run("should only echo when recipient is not bound", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockIMessageStore(ctrl)
		registry := runtime.NewRegistry()
		origin := newMockChannel(ctrl, "channel-1")
		stored := domain.Message{ID: 1, SenderID: "1", RecipientID: "2", Text: "hi", Timestamp: at}

		store.EXPECT().Append(gomock.Any(), gomock.Any()).Return(stored, nil)
		origin.EXPECT().Consume(gomock.Any(), event.MessageReceived{Message: stored}).Return(nil).Times(1)

		_, err := newService(registry, store, nil).Send(ctx, origin,
			chat.SendMessageCommand{SenderID: "1", RecipientID: "2", Text: "hi"})
		req.NoError(err)
	})

	t.Run("should echo to sender's bound channel when origin is another connection", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockIMessageStore(ctrl)
		registry := runtime.NewRegistry()
		boundTab := newMockChannel(ctrl, "tab-2")
		registry.Register("1", boundTab)
		stored := domain.Message{ID: 3, SenderID: "1", RecipientID: "2", Text: "hi", Timestamp: at}

		store.EXPECT().Append(gomock.Any(), gomock.Any()).Return(stored, nil)
		boundTab.EXPECT().Consume(gomock.Any(), event.MessageReceived{Message: stored}).Return(nil).Times(1)

		// When the send comes from a request/response caller
		_, err := newService(registry, store, nil).Send(ctx, nil,
			chat.SendMessageCommand{SenderID: "1", RecipientID: "2", Text: "hi"})
		req.NoError(err)
	})

	t.Run("should push once to a channel that is both recipient and sender", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockIMessageStore(ctrl)
		registry := runtime.NewRegistry()
		self := newMockChannel(ctrl, "self")
		registry.Register("1", self)
		stored := domain.Message{ID: 4, SenderID: "1", RecipientID: "1", Text: "note to self", Timestamp: at}

		store.EXPECT().Append(gomock.Any(), gomock.Any()).Return(stored, nil)
		self.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(1)

		_, err := newService(registry, store, nil).Send(ctx, self,
			chat.SendMessageCommand{SenderID: "1", RecipientID: "1", Text: "note to self"})
		req.NoError(err)
	})

	t.Run("should reject missing fields before persistence", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockIMessageStore(ctrl)
		registry := runtime.NewRegistry()
		origin := newMockChannel(ctrl, "channel-1")
		registry.Register("2", newMockChannel(ctrl, "channel-2"))

		// Store and channels are never reached
		store.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)
		origin.EXPECT().Consume(gomock.Any(), gomock.Any()).Times(0)

		service := newService(registry, store, nil)
		for _, cmd := range []chat.SendMessageCommand{
			{SenderID: "1", Text: "hi"},
			{RecipientID: "2", Text: "hi"},
			{SenderID: "1", RecipientID: "2"},
			{SenderID: "1", RecipientID: "2", Text: "hi", Timestamp: lo.ToPtr(time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC))},
		} {
			_, err := service.Send(ctx, origin, cmd)
			require.ErrorIs(t, err, errors.ErrValidation, fmt.Sprintf("%+v", cmd))
		}
	})

	t.Run("should reject text longer than the limit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockIMessageStore(ctrl)
		store.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)
		service := NewChatService(slog.Default(), runtime.NewRegistry(), store, nil, time.Second, 3)

		_, err := service.Send(ctx, nil, chat.SendMessageCommand{SenderID: "1", RecipientID: "2", Text: "four"})
		require.ErrorIs(t, err, errors.ErrValidation)
	})

	t.Run("should not push anything when persistence fails", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockIMessageStore(ctrl)
		registry := runtime.NewRegistry()
		origin := newMockChannel(ctrl, "channel-1")
		recipient := newMockChannel(ctrl, "channel-2")
		registry.Register("2", recipient)

		store.EXPECT().Append(gomock.Any(), gomock.Any()).
			Return(domain.Message{}, fmt.Errorf("%w: disk full", errors.ErrStorageUnavailable))
		origin.EXPECT().Consume(gomock.Any(), gomock.Any()).Times(0)
		recipient.EXPECT().Consume(gomock.Any(), gomock.Any()).Times(0)

		_, err := newService(registry, store, nil).Send(ctx, origin,
			chat.SendMessageCommand{SenderID: "1", RecipientID: "2", Text: "hi"})
		req.ErrorIs(err, errors.ErrStorageUnavailable)
	})

	t.Run("should succeed even when a live push fails", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockIMessageStore(ctrl)
		registry := runtime.NewRegistry()
		origin := newMockChannel(ctrl, "channel-1")
		recipient := newMockChannel(ctrl, "channel-2")
		registry.Register("2", recipient)
		stored := domain.Message{ID: 9, SenderID: "1", RecipientID: "2", Text: "hi", Timestamp: at}

		store.EXPECT().Append(gomock.Any(), gomock.Any()).Return(stored, nil)
		recipient.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(errors.ErrChannelFull)
		origin.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil)

		result, err := newService(registry, store, nil).Send(ctx, origin,
			chat.SendMessageCommand{SenderID: "1", RecipientID: "2", Text: "hi"})
		req.NoError(err)
		req.Equal(stored, result)
	})
}

// queryingChannel checks, at the moment a live event arrives, that the message can
// already be found in the store.
type queryingChannel struct {
	id       string
	store    contract.IMessageStore
	received []domain.Message
	missing  []domain.MessageID
}

func (c *queryingChannel) ID() string { return c.id }

func (c *queryingChannel) Consume(ctx context.Context, e event.LiveEvent) error {
	evt := e.(event.MessageReceived)
	history, err := c.store.Query(ctx, evt.Message.SenderID, evt.Message.RecipientID)
	if err != nil {
		return err
	}
	if !lo.ContainsBy(history, func(m domain.Message) bool { return m.ID == evt.Message.ID }) {
		c.missing = append(c.missing, evt.Message.ID)
	}
	c.received = append(c.received, evt.Message)
	return nil
}

func TestChatService_Persist_Before_Broadcast(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()
	store, err := repositories.NewMessageRepository(db, slog.Default())
	req.NoError(err)
	defer store.Close()

	registry := runtime.NewRegistry()
	recipient := &queryingChannel{id: "recipient", store: store}
	sender := &queryingChannel{id: "sender", store: store}
	registry.Register("2", recipient)
	service := newService(registry, store, nil)

	for i := 0; i < 20; i++ {
		_, err = service.Send(ctx, sender, chat.SendMessageCommand{SenderID: "1", RecipientID: "2", Text: fmt.Sprintf("m%d", i)})
		req.NoError(err)
	}

	req.Len(recipient.received, 20)
	req.Len(sender.received, 20)
	req.Empty(recipient.missing)
	req.Empty(sender.missing)
}

func TestChatService_Durable_Without_Presence(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()
	store, err := repositories.NewMessageRepository(db, slog.Default())
	req.NoError(err)
	defer store.Close()
	service := newService(runtime.NewRegistry(), store, nil)

	// When user 1 sends to an unbound user 2, from no live connection
	_, err = service.Send(ctx, nil, chat.SendMessageCommand{SenderID: "1", RecipientID: "2", Text: "hi"})
	req.NoError(err)

	// Then user 2 finds it in history later
	history, err := service.GetHistory(ctx, chat.GetHistoryCommand{UserA: "2", UserB: "1"})
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("hi", history[0].Text)
}

func TestChatService_GetHistory_Requires_Both_Ids(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIMessageStore(ctrl)
	store.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := newService(runtime.NewRegistry(), store, nil).
		GetHistory(context.Background(), chat.GetHistoryCommand{UserA: "1"})
	require.True(t, stderrors.Is(err, errors.ErrValidation))
}

func TestChatService_Identify_And_Disconnect(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIPresenceRegistry(ctrl)
	channel := newMockChannel(ctrl, "channel-1")
	service := newService(registry, nil, nil)

	registry.EXPECT().Register("1", channel).Times(1)
	registry.EXPECT().Unregister("channel-1").Times(1)

	req.NoError(service.Identify("1", channel))
	req.ErrorIs(service.Identify("", channel), errors.ErrValidation)
	service.Disconnect("channel-1")
}

func TestChatService_ListUsers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserDirectory(ctrl)
	expected := []domain.User{{ID: "2", Username: "bob", Email: "bob@example.com"}}
	users.EXPECT().ListUsers(gomock.Any(), "1").Return(expected, nil)

	result, err := newService(runtime.NewRegistry(), nil, users).
		ListUsers(context.Background(), chat.ListUsersCommand{ExcludeID: "1"})
	req.NoError(err)
	req.Equal(expected, result)
}
