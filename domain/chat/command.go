package chat

import (
	"time"
)

// SendMessageCommand is the intent of a user to deliver text to a peer.
// Timestamp is optional; the store assigns one when it is nil.
type SendMessageCommand struct {
	SenderID    string `validate:"required"`
	RecipientID string `validate:"required"`
	Text        string `validate:"required"`
	Timestamp   *time.Time
}

type GetHistoryCommand struct {
	UserA string `validate:"required"`
	UserB string `validate:"required"`
}

type ListUsersCommand struct {
	ExcludeID string
}
