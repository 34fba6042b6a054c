package services

import (
	"context"
	"fmt"
	"hive-chat/contract"
	"hive-chat/domain"
	"hive-chat/domain/chat"
	"hive-chat/domain/event"
	"hive-chat/errors"
	"hive-chat/observability"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

type IChatService interface {
	Identify(userID string, channel contract.Channel) error
	Disconnect(channelID string)
	Send(ctx context.Context, origin contract.Channel, cmd chat.SendMessageCommand) (domain.Message, error)
	GetHistory(ctx context.Context, cmd chat.GetHistoryCommand) ([]domain.Message, error)
	ListUsers(ctx context.Context, cmd chat.ListUsersCommand) ([]domain.User, error)
}

type ChatService struct {
	log           *slog.Logger
	registry      contract.IPresenceRegistry
	store         contract.IMessageStore
	users         contract.IUserDirectory
	validate      *validator.Validate
	sinkTimeout   time.Duration
	maxTextLength int
}

func NewChatService(log *slog.Logger, registry contract.IPresenceRegistry,
	store contract.IMessageStore, users contract.IUserDirectory,
	sinkTimeout time.Duration, maxTextLength int) *ChatService {
	return &ChatService{
		log:           log,
		registry:      registry,
		store:         store,
		users:         users,
		validate:      validator.New(),
		sinkTimeout:   sinkTimeout,
		maxTextLength: maxTextLength,
	}
}

// Identify binds the connection to userID, superseding any older connection of that user.
func (s *ChatService) Identify(userID string, channel contract.Channel) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", errors.ErrValidation)
	}
	s.registry.Register(userID, channel)
	s.log.Debug("User identified", "user_id", userID, "channel_id", channel.ID())
	return nil
}

func (s *ChatService) Disconnect(channelID string) {
	s.registry.Unregister(channelID)
	s.log.Debug("Channel disconnected", "channel_id", channelID)
}

// Send validates, persists, then pushes the stored message to live connections.
// The message is visible live only once the store has accepted it; if persistence
// fails nothing is pushed and the failure is returned to the caller.
// The stored message goes to the recipient's channel when it is bound, and always back
// to the sender: on origin, the connection the send came from (nil for request/response
// callers), and on the sender's currently bound channel when that is another connection.
func (s *ChatService) Send(ctx context.Context, origin contract.Channel, cmd chat.SendMessageCommand) (domain.Message, error) {
	if err := s.validateSend(cmd); err != nil {
		observability.MessagesSent.WithLabelValues(observability.ResultInvalid).Inc()
		return domain.Message{}, err
	}

	start := time.Now()
	stored, err := s.store.Append(ctx, toMessage(cmd))
	observability.StoreAppendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.MessagesSent.WithLabelValues(observability.ResultStorageFailed).Inc()
		s.log.Error("Message not persisted, nothing broadcast",
			"sender_id", cmd.SenderID,
			"recipient_id", cmd.RecipientID,
			"error", err)
		return domain.Message{}, err
	}
	observability.MessagesSent.WithLabelValues(observability.ResultDelivered).Inc()

	// The message is durable: pushes must not depend on the sender's request staying alive.
	pushCtx := context.WithoutCancel(ctx)
	evt := event.MessageReceived{Message: stored}
	for _, t := range s.pushTargets(origin, stored) {
		s.push(pushCtx, t, evt)
	}
	return stored, nil
}

type pushTarget struct {
	channel contract.Channel
	label   string
}

// pushTargets lists each live channel once, recipient first.
func (s *ChatService) pushTargets(origin contract.Channel, message domain.Message) []pushTarget {
	var targets []pushTarget
	if channel, ok := s.registry.Lookup(message.RecipientID); ok {
		targets = append(targets, pushTarget{channel, observability.TargetRecipient})
	}
	if origin != nil {
		targets = append(targets, pushTarget{origin, observability.TargetSender})
	}
	if channel, ok := s.registry.Lookup(message.SenderID); ok {
		targets = append(targets, pushTarget{channel, observability.TargetSender})
	}
	return lo.UniqBy(targets, func(t pushTarget) string { return t.channel.ID() })
}

func (s *ChatService) push(ctx context.Context, target pushTarget, evt event.MessageReceived) {
	ctx, cancel := context.WithTimeout(ctx, s.sinkTimeout)
	defer cancel()
	if err := target.channel.Consume(ctx, evt); err != nil {
		observability.LivePushes.WithLabelValues(target.label, observability.ResultFailed).Inc()
		s.log.Warn("Live push failed, message stays available in history",
			"channel_id", target.channel.ID(),
			"message_id", evt.Message.ID,
			"error", err)
		return
	}
	observability.LivePushes.WithLabelValues(target.label, observability.ResultOK).Inc()
}

func (s *ChatService) GetHistory(ctx context.Context, cmd chat.GetHistoryCommand) ([]domain.Message, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrValidation, err)
	}
	return s.store.Query(ctx, cmd.UserA, cmd.UserB)
}

func (s *ChatService) ListUsers(ctx context.Context, cmd chat.ListUsersCommand) ([]domain.User, error) {
	return s.users.ListUsers(ctx, cmd.ExcludeID)
}

func (s *ChatService) validateSend(cmd chat.SendMessageCommand) error {
	if err := s.validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrValidation, err)
	}
	if s.maxTextLength > 0 && utf8.RuneCountInString(cmd.Text) > s.maxTextLength {
		return fmt.Errorf("%w: text longer than %d characters", errors.ErrValidation, s.maxTextLength)
	}
	if cmd.Timestamp != nil && !domain.ValidTimestamp(*cmd.Timestamp) {
		return fmt.Errorf("%w: timestamp %s out of range", errors.ErrValidation, cmd.Timestamp)
	}
	return nil
}

func toMessage(cmd chat.SendMessageCommand) domain.Message {
	message := domain.Message{
		SenderID:    cmd.SenderID,
		RecipientID: cmd.RecipientID,
		Text:        cmd.Text,
	}
	if cmd.Timestamp != nil {
		message.Timestamp = cmd.Timestamp.UTC()
	}
	return message
}
