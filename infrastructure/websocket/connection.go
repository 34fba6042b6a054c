package websocket

import (
	"context"
	"fmt"
	"hive-chat/api"
	"hive-chat/domain/event"
	"hive-chat/errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Connection is one websocket client seen as a presence channel.
// Events are queued on a buffered channel and written by a single writer goroutine.
type Connection struct {
	id        string
	conn      *websocket.Conn
	log       *slog.Logger
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(log *slog.Logger, conn *websocket.Conn, bufferSize int) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:   id,
		conn: conn,
		log:  log.With("channel_id", id),
		send: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
}

func (c *Connection) ID() string { return c.id }

// Consume queues the event for the writer. It waits for room in the buffer
// until ctx is done and never blocks on a closed connection.
func (c *Connection) Consume(ctx context.Context, e event.LiveEvent) error {
	frame, err := api.EncodeEvent(e)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errors.ErrChannelClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errors.ErrChannelClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errors.ErrChannelFull, ctx.Err())
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writePump is the only goroutine writing to the socket.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Error("failed to set write deadline", "error", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("failed to write frame", "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
