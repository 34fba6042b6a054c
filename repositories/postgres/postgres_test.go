package postgres

import (
	"context"
	"database/sql"
	"hive-chat/domain"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// setupTestDB skips unless TEST_PG_DSN points to a disposable database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMessageRepository_Append_And_Query(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := setupTestDB(t)
	repository := NewMessageRepository(db, slog.Default())
	alice, bob := uuid.NewString(), uuid.NewString()
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	_, err := repository.Append(ctx, domain.Message{SenderID: alice, RecipientID: bob, Text: "second", Timestamp: at.Add(time.Minute)})
	req.NoError(err)
	_, err = repository.Append(ctx, domain.Message{SenderID: bob, RecipientID: alice, Text: "first", Timestamp: at})
	req.NoError(err)
	stored, err := repository.Append(ctx, domain.Message{SenderID: alice, RecipientID: bob, Text: "now"})
	req.NoError(err)
	req.NotZero(stored.ID)
	req.False(stored.Timestamp.IsZero())

	forward, err := repository.Query(ctx, alice, bob)
	req.NoError(err)
	backward, err := repository.Query(ctx, bob, alice)
	req.NoError(err)
	req.Equal(forward, backward)
	req.Len(forward, 3)
	req.Equal("first", forward[0].Text)
	req.Equal("second", forward[1].Text)
}

func TestMessageRepository_Query_Empty(t *testing.T) {
	req := require.New(t)
	db := setupTestDB(t)

	messages, err := NewMessageRepository(db, slog.Default()).Query(context.Background(), uuid.NewString(), uuid.NewString())
	req.NoError(err)
	req.Empty(messages)
}

func TestUserRepository_ListUsers_Exclude(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := setupTestDB(t)
	email := uuid.NewString() + "@example.com"

	var id string
	err := db.QueryRowContext(ctx,
		`INSERT INTO users (username, email) VALUES ($1, $2) RETURNING id::text`, "carol", email).Scan(&id)
	req.NoError(err)

	users, err := NewUserRepository(db).ListUsers(ctx, id)
	req.NoError(err)
	for _, u := range users {
		req.NotEqual(id, u.ID)
	}
}
