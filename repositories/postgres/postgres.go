// Package postgres provides the message store and user directory on top of the
// relational schema shared with the account subsystem.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hive-chat/contract"
	"hive-chat/domain"
	"hive-chat/errors"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

var (
	_ contract.IMessageStore  = (*MessageRepository)(nil)
	_ contract.IUserDirectory = (*UserRepository)(nil)
)

// Open opens a pooled connection and checks it is reachable.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	return db, nil
}

// Migrate applies idempotent schema changes. The users table belongs to the account
// subsystem; it is only created here so a fresh database is usable.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			sender_id TEXT NOT NULL,
			recipient_id TEXT NOT NULL,
			text TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair_time
			ON messages (LEAST(sender_id, recipient_id), GREATEST(sender_id, recipient_id), timestamp, id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type MessageRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewMessageRepository(db *sql.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// Append inserts the message in a single statement, so a failed insert leaves nothing behind.
func (m *MessageRepository) Append(ctx context.Context, message domain.Message) (domain.Message, error) {
	var timestamp any
	if !message.Timestamp.IsZero() {
		timestamp = message.Timestamp.UTC()
	}
	row := m.db.QueryRowContext(ctx,
		`INSERT INTO messages (sender_id, recipient_id, text, timestamp)
		VALUES ($1, $2, $3, COALESCE($4::timestamptz, NOW()))
		RETURNING id, sender_id, recipient_id, text, timestamp`,
		message.SenderID, message.RecipientID, message.Text, timestamp)

	stored, err := scanMessage(row)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	m.log.Debug("Message stored", "message_id", stored.ID)
	return stored, nil
}

func (m *MessageRepository) Query(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, sender_id, recipient_id, text, timestamp FROM messages
		WHERE (sender_id = $1 AND recipient_id = $2)
			OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY timestamp ASC, id ASC`,
		userA, userB)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
		}
		messages = append(messages, message)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	return messages, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (domain.Message, error) {
	var (
		message domain.Message
		id      int64
	)
	if err := s.Scan(&id, &message.SenderID, &message.RecipientID, &message.Text, &message.Timestamp); err != nil {
		return domain.Message{}, err
	}
	message.ID = domain.MessageID(id)
	message.Timestamp = message.Timestamp.UTC()
	return message, nil
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// ListUsers reads the directory without ever selecting the credential column.
func (u *UserRepository) ListUsers(ctx context.Context, excludeID string) ([]domain.User, error) {
	query := `SELECT id::text, username, email FROM users`
	var args []any
	if excludeID != "" {
		query += ` WHERE id::text != $1`
		args = append(args, excludeID)
	}
	query += ` ORDER BY id`

	rows, err := u.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var user domain.User
		if err = rows.Scan(&user.ID, &user.Username, &user.Email); err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
		}
		users = append(users, user)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	return users, nil
}
