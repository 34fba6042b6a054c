package repositories

import (
	"fmt"
	"strings"
	"time"

	"github.com/mama165/sdk-go/database"
)

// InspectMapper renders message and user records for the badger debug inspector.
func InspectMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	switch {
	case strings.HasPrefix(key, messagePrefix):
		message, err := unmarshalMessage(val)
		if err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "MESSAGE"
		row.Detail = fmt.Sprintf("#%d %s %s -> %s: %s", message.ID,
			message.Timestamp.Format(time.RFC3339), message.SenderID, message.RecipientID, message.Text)
	case strings.HasPrefix(key, userPrefix):
		user, err := unmarshalUser(val)
		if err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "USER"
		row.Detail = fmt.Sprintf("%s <%s>", user.Username, user.Email)
	case strings.HasPrefix(key, userEmailPrefix):
		row.Type = "INDEX"
		row.Detail = string(val)
	}
	return row
}
