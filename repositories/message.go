package repositories

import (
	"context"
	"fmt"
	"hive-chat/contract"
	"hive-chat/domain"
	"hive-chat/errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var _ contract.IMessageStore = (*MessageRepository)(nil)

const (
	messagePrefix   = "msg:"
	messageSequence = "seq:message"
	sequenceLease   = 100
)

type MessageRepository struct {
	db       *badger.DB
	log      *slog.Logger
	sequence *badger.Sequence
	now      func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	sequence, err := db.GetSequence([]byte(messageSequence), sequenceLease)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{
		db:       db,
		log:      log,
		sequence: sequence,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock replaces the clock used for store-assigned timestamps.
func (m *MessageRepository) WithClock(now func() time.Time) *MessageRepository {
	m.now = now
	return m
}

// Close hands the unused sequence lease back to badger.
func (m *MessageRepository) Close() error {
	return m.sequence.Release()
}

// Append persists a message in BadgerDB.
// The key is formatted as "msg:{conversation}:{timestamp}:{id}" so that a forward
// prefix scan yields the conversation ordered by timestamp then id:
//  1. the timestamp is the sign-flipped UnixNano padded to 20 digits, which keeps
//     lexicographical order equal to chronological order, pre-1970 included.
//  2. the id comes from a badger sequence and breaks ties between equal timestamps.
func (m *MessageRepository) Append(ctx context.Context, message domain.Message) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	next, err := m.sequence.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	message.ID = domain.MessageID(next + 1)
	if message.Timestamp.IsZero() {
		message.Timestamp = m.now()
	}
	message.Timestamp = message.Timestamp.UTC()

	key := messageKey(message)
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, marshalMessage(message))
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	m.log.Debug("Message stored", "message_id", message.ID, "key", string(key))
	return message, nil
}

// Query retrieves the whole conversation between userA and userB using a prefix scan.
// Arguments are order independent.
func (m *MessageRepository) Query(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := conversationPrefix(domain.NewConversation(userA, userB))
	messages := make([]domain.Message, 0)
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				message, err := unmarshalMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	return messages, nil
}

func conversationPrefix(c domain.Conversation) []byte {
	return []byte(messagePrefix + c.Key() + ":")
}

func messageKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%020d",
		messagePrefix,
		message.Conversation().Key(),
		orderedNanos(message.Timestamp),
		uint64(message.ID),
	))
}

// orderedNanos maps UnixNano onto uint64 preserving order across the sign boundary.
func orderedNanos(t time.Time) uint64 {
	return uint64(t.UnixNano()) ^ (1 << 63)
}
