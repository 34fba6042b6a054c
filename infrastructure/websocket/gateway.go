// Package websocket is the live transport: one goroutine reads client events,
// another writes pushed events, and the connection stays bound in the presence
// registry until it closes.
package websocket

import (
	"context"
	stderrors "errors"
	"hive-chat/api"
	"hive-chat/auth"
	"hive-chat/domain/chat"
	"hive-chat/domain/event"
	"hive-chat/errors"
	"hive-chat/observability"
	"hive-chat/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

type Gateway struct {
	log         *slog.Logger
	chatService services.IChatService
	upgrader    websocket.Upgrader
	bufferSize  int
	sinkTimeout time.Duration
}

func NewGateway(log *slog.Logger, chatService services.IChatService,
	bufferSize int, sinkTimeout time.Duration, allowedOrigins []string) *Gateway {
	return &Gateway{
		log:         log,
		chatService: chatService,
		bufferSize:  bufferSize,
		sinkTimeout: sinkTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      checkOrigin(allowedOrigins),
		},
	}
}

func checkOrigin(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || lo.Contains(allowedOrigins, "*") {
			return true
		}
		return lo.Contains(allowedOrigins, origin)
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("Websocket upgrade failed", "error", err)
		return
	}
	connection := newConnection(g.log, conn, g.bufferSize)
	observability.WebsocketConnections.Inc()
	connection.log.Debug("Websocket connected", "remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		g.chatService.Disconnect(connection.ID())
		connection.close()
		observability.WebsocketConnections.Dec()
		connection.log.Debug("Websocket disconnected")
	}()

	go connection.writePump()
	g.readPump(ctx, connection)
}

// readPump handles client events one at a time, so sends from one connection
// are persisted in the order they were received.
func (g *Gateway) readPump(ctx context.Context, c *Connection) {
	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Error("failed to set read deadline", "error", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("unexpected websocket close", "error", err)
			}
			return
		}
		var envelope api.Envelope
		if err := json.Unmarshal(frame, &envelope); err != nil {
			c.log.Warn("Malformed frame ignored", "error", err)
			continue
		}
		g.handle(ctx, c, envelope)
	}
}

func (g *Gateway) handle(ctx context.Context, c *Connection, envelope api.Envelope) {
	switch envelope.Event {
	case api.EventIdentify:
		g.identify(ctx, c, envelope.Data)
	case api.EventSendMessage:
		g.sendMessage(ctx, c, envelope.Data)
	case api.EventGetUsers:
		g.getUsers(ctx, c, envelope.Data)
	default:
		c.log.Warn("Unknown event ignored", "event", envelope.Event)
	}
}

func (g *Gateway) identify(ctx context.Context, c *Connection, data json.RawMessage) {
	userID, err := api.DecodeUserID(data)
	if err == nil {
		err = auth.CheckIdentity(ctx, userID)
	}
	if err == nil {
		err = g.chatService.Identify(userID, c)
	}
	if err != nil {
		c.log.Warn("Identify rejected", "error", err)
		g.reply(ctx, c, event.SendFailed{Reason: Reason(err), Text: err.Error()})
	}
}

func (g *Gateway) sendMessage(ctx context.Context, c *Connection, data json.RawMessage) {
	var request api.SendMessageRequest
	if err := json.Unmarshal(data, &request); err != nil {
		g.reply(ctx, c, event.SendFailed{Reason: Reason(errors.ErrValidation), Text: err.Error()})
		return
	}
	if err := auth.CheckIdentity(ctx, request.SenderID); err != nil {
		g.reply(ctx, c, event.SendFailed{Reason: Reason(err), Text: err.Error()})
		return
	}
	if _, err := g.chatService.Send(ctx, c, request.ToCommand()); err != nil {
		g.reply(ctx, c, event.SendFailed{Reason: Reason(err), Text: err.Error()})
	}
}

// getUsers answers an empty list when the directory cannot be read.
func (g *Gateway) getUsers(ctx context.Context, c *Connection, data json.RawMessage) {
	var request api.GetUsersRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &request); err != nil {
			c.log.Debug("getUsers filter ignored", "error", err)
		}
	}
	users, err := g.chatService.ListUsers(ctx, chat.ListUsersCommand{ExcludeID: request.ExcludeID})
	if err != nil {
		c.log.Error("Listing users failed", "error", err)
		users = nil
	}
	g.reply(ctx, c, event.UsersListed{Users: users})
}

func (g *Gateway) reply(ctx context.Context, c *Connection, e event.LiveEvent) {
	ctx, cancel := context.WithTimeout(ctx, g.sinkTimeout)
	defer cancel()
	if err := c.Consume(ctx, e); err != nil {
		c.log.Warn("Reply dropped", "event", e.Name(), "error", err)
	}
}

// Reason is the short failure code sent in sendFailed events.
func Reason(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrValidation):
		return "validation"
	case stderrors.Is(err, errors.ErrStorageUnavailable):
		return "storage_unavailable"
	case stderrors.Is(err, errors.ErrIdentityMismatch):
		return "identity_mismatch"
	case stderrors.Is(err, errors.ErrUnauthenticated):
		return "unauthenticated"
	default:
		return "internal"
	}
}
