package server

import (
	"context"
	"hive-chat/api"
	"hive-chat/auth"
	"hive-chat/domain/chat"
	"hive-chat/errors"
	"hive-chat/services"
	"log/slog"

	"google.golang.org/grpc/metadata"
)

type ChatServer struct {
	chatService          services.IChatService
	connectionBufferSize int
	log                  *slog.Logger
}

var _ api.ChatServiceServer = (*ChatServer)(nil)

func NewChatServer(log *slog.Logger, chatService services.IChatService, connectionBufferSize int) *ChatServer {
	return &ChatServer{
		chatService:          chatService,
		connectionBufferSize: connectionBufferSize,
		log:                  log,
	}
}

// SendMessage persists then broadcasts. The caller gets its echo on its Connect
// stream if it has one, and the stored message in the response either way.
func (s *ChatServer) SendMessage(ctx context.Context, req *api.SendMessageRequest) (*api.Message, error) {
	if err := auth.CheckIdentity(ctx, req.SenderID); err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	stored, err := s.chatService.Send(ctx, nil, req.ToCommand())
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	message := api.FromMessage(stored)
	return &message, nil
}

func (s *ChatServer) GetMessages(ctx context.Context, req *api.GetMessagesRequest) (*api.GetMessagesResponse, error) {
	if userID, ok := auth.UserIDFromContext(ctx); ok && userID != req.User1 && userID != req.User2 {
		return nil, errors.MapToGRPCError(errors.ErrIdentityMismatch)
	}
	messages, err := s.chatService.GetHistory(ctx, chat.GetHistoryCommand{UserA: req.User1, UserB: req.User2})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &api.GetMessagesResponse{Messages: api.FromMessages(messages)}, nil
}

func (s *ChatServer) GetUsers(ctx context.Context, req *api.GetUsersRequest) (*api.GetUsersResponse, error) {
	users, err := s.chatService.ListUsers(ctx, chat.ListUsersCommand{ExcludeID: req.ExcludeID})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &api.GetUsersResponse{Users: api.FromUsers(users)}, nil
}

// Connect binds the stream as the user's live channel until the client goes away.
// The user id comes from the request, or from the token when the request omits it.
func (s *ChatServer) Connect(req *api.ConnectRequest, stream api.ChatService_ConnectServer) error {
	ctx := stream.Context()
	userID := req.UserID
	if userID == "" {
		userID, _ = auth.UserIDFromContext(ctx)
	}
	if userID == "" {
		return errors.MapToGRPCError(errors.ErrMissingIdentity)
	}
	if err := auth.CheckIdentity(ctx, userID); err != nil {
		return errors.MapToGRPCError(err)
	}

	channel := newStreamChannel(s.connectionBufferSize)
	if err := s.chatService.Identify(userID, channel); err != nil {
		return errors.MapToGRPCError(err)
	}
	defer func() {
		channel.close()
		s.chatService.Disconnect(channel.ID())
	}()
	// The header tells the client the binding is in place.
	if err := stream.SendHeader(metadata.Pairs(api.HeaderChannelID, channel.ID())); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("Stream closed", "user_id", userID, "channel_id", channel.ID())
			return nil
		case evt := <-channel.events:
			envelope, err := api.NewEnvelope(evt)
			if err != nil {
				s.log.Warn("Event not encodable", "error", err)
				continue
			}
			if err := stream.Send(&envelope); err != nil {
				s.log.Error("failed to push event to stream",
					"user_id", userID,
					"channel_id", channel.ID(),
					"error", err)
				return err
			}
		}
	}
}
