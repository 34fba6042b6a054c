// Package domain contains core concepts of the chat system.
// This file defines Message records and the conversation they belong to.
// Messages are immutable once the store has assigned their identity.
package domain

import (
	"encoding/hex"
	"time"
)

// MessageID is assigned by the message store and grows monotonically.
type MessageID uint64

// Message represents an immutable, persisted chat message between two users.
type Message struct {
	ID          MessageID
	SenderID    string
	RecipientID string
	Text        string
	Timestamp   time.Time
}

func (m Message) Conversation() Conversation {
	return NewConversation(m.SenderID, m.RecipientID)
}

// Between reports whether the message was exchanged by a and b, in either direction.
func (m Message) Between(a, b string) bool {
	return (m.SenderID == a && m.RecipientID == b) ||
		(m.SenderID == b && m.RecipientID == a)
}

// Before orders messages by timestamp, then by store-assigned id.
func (m Message) Before(other Message) bool {
	if m.Timestamp.Equal(other.Timestamp) {
		return m.ID < other.ID
	}
	return m.Timestamp.Before(other.Timestamp)
}

// Conversation is the unordered pair of users scoping a history.
// Low and High are sorted so that {a,b} and {b,a} produce the same value.
type Conversation struct {
	Low  string
	High string
}

func NewConversation(a, b string) Conversation {
	if b < a {
		a, b = b, a
	}
	return Conversation{Low: a, High: b}
}

// Key is a storage-safe identifier of the conversation.
// Both ids are hex encoded so arbitrary user ids can never collide on the separator.
func (c Conversation) Key() string {
	return hex.EncodeToString([]byte(c.Low)) + "-" + hex.EncodeToString([]byte(c.High))
}

var (
	minTimestamp = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	maxTimestamp = time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)
)

// ValidTimestamp reports whether t can be stored with nanosecond precision.
func ValidTimestamp(t time.Time) bool {
	return !t.Before(minTimestamp) && t.Before(maxTimestamp)
}
