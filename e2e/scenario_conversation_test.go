package e2e

import (
	"context"
	"hive-chat/api"
	"hive-chat/domain/event"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type testConversationSuite struct {
	BaseGrpcSuite
}

func TestConversationSuite(t *testing.T) {
	suite.Run(t, &testConversationSuite{})
}

func (s *testConversationSuite) TestOfflineThenLiveConversation() {
	// Fresh ids keep runs against a long-lived server independent
	alice, bob := uuid.NewString(), uuid.NewString()

	s.Run("Step 1: Message to an offline user is stored", func() {
		s.WithChat("Send while bob has no stream", func(ctx context.Context, client api.ChatServiceClient) {
			stored, err := client.SendMessage(s.As(ctx, alice), &api.SendMessageRequest{
				SenderID: alice, RecipientID: bob, Text: "hi",
			})
			s.Require().NoError(err)
			s.Require().NotZero(stored.ID)

			history, err := client.GetMessages(s.As(ctx, bob), &api.GetMessagesRequest{User1: bob, User2: alice})
			s.Require().NoError(err)
			s.Require().Len(history.Messages, 1)
			s.Equal("hi", history.Messages[0].Text)
		})
	})

	s.Run("Step 2: Live message reaches the open stream", func() {
		s.WithChat("Bob streams, alice sends", func(ctx context.Context, client api.ChatServiceClient) {
			stream, err := client.Connect(s.As(ctx, bob), &api.ConnectRequest{UserID: bob})
			s.Require().NoError(err)
			_, err = stream.Header()
			s.Require().NoError(err)

			stored, err := client.SendMessage(s.As(ctx, alice), &api.SendMessageRequest{
				SenderID: alice, RecipientID: bob, Text: "yo",
			})
			s.Require().NoError(err)

			envelope, err := stream.Recv()
			s.Require().NoError(err)
			evt, err := envelope.LiveEvent()
			s.Require().NoError(err)
			received, ok := evt.(event.MessageReceived)
			s.Require().True(ok)
			s.Equal(stored.ToDomain(), received.Message)

			history, err := client.GetMessages(s.As(ctx, alice), &api.GetMessagesRequest{User1: alice, User2: bob})
			s.Require().NoError(err)
			s.Require().Len(history.Messages, 2)
			s.Equal("hi", history.Messages[0].Text)
			s.Equal("yo", history.Messages[1].Text)
		})
	})

	s.Run("Step 3: Invalid message is rejected and not stored", func() {
		s.WithChat("Send without recipient", func(ctx context.Context, client api.ChatServiceClient) {
			_, err := client.SendMessage(s.As(ctx, alice), &api.SendMessageRequest{SenderID: alice, Text: "lost"})
			s.Equal(codes.InvalidArgument, status.Code(err))

			history, err := client.GetMessages(s.As(ctx, alice), &api.GetMessagesRequest{User1: alice, User2: bob})
			s.Require().NoError(err)
			s.Len(history.Messages, 2)
		})
	})
}
