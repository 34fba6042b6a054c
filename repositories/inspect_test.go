package repositories

import (
	"hive-chat/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInspectMapper(t *testing.T) {
	req := require.New(t)
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	message := domain.Message{ID: 3, SenderID: "1", RecipientID: "2", Text: "hi", Timestamp: at}

	row := InspectMapper(string(messageKey(message)), marshalMessage(message))
	req.Equal("MESSAGE", row.Type)
	req.Equal("#3 2025-01-01T12:00:00Z 1 -> 2: hi", row.Detail)

	row = InspectMapper(userPrefix+"abc", marshalUser(domain.User{ID: "abc", Username: "alice", Email: "alice@example.com"}))
	req.Equal("USER", row.Type)
	req.Equal("alice <alice@example.com>", row.Detail)

	row = InspectMapper(messagePrefix+"broken", []byte{0xff})
	req.Equal("Error: unmarshal failed", row.Detail)
}
