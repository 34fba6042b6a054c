// Package client drives a conversation view from a live websocket connection
// and the history endpoint of a chat server.
package client

import (
	"context"
	"fmt"
	"hive-chat/api"
	"hive-chat/domain"
	"hive-chat/domain/event"
	"hive-chat/errors"
	"hive-chat/projection"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Session is one client connection. Live messages for the open conversation are
// merged into View; everything worth showing is also published on Notifications.
type Session struct {
	log           *slog.Logger
	conn          *websocket.Conn
	view          *projection.ConversationView
	writeMu       sync.Mutex
	notifications chan event.LiveEvent
	done          chan struct{}
	closeOnce     sync.Once
	err           error
}

// Dial connects to serverURL ("http://host:port") and starts reading events.
func Dial(ctx context.Context, log *slog.Logger, serverURL, token string) (*Session, error) {
	wsURL, err := websocketURL(serverURL, token)
	if err != nil {
		return nil, err
	}
	conn, response, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if response != nil && response.Body != nil {
		_ = response.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", serverURL, err)
	}
	s := &Session{
		log:           log,
		conn:          conn,
		view:          projection.NewConversationView(NewHTTPHistory(strings.TrimRight(serverURL, "/"), token, nil)),
		notifications: make(chan event.LiveEvent, 64),
		done:          make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func websocketURL(serverURL, token string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	if token != "" {
		u.RawQuery = url.Values{"token": {token}}.Encode()
	}
	return u.String(), nil
}

func (s *Session) View() *projection.ConversationView { return s.view }

// Notifications is closed when the connection ends.
func (s *Session) Notifications() <-chan event.LiveEvent { return s.notifications }

// Identify binds this connection to userID on the server and resets the view.
func (s *Session) Identify(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", errors.ErrValidation)
	}
	s.view.SetIdentity(userID)
	return s.write(api.EventIdentify, userID)
}

// Open selects the conversation with peer and loads its history.
func (s *Session) Open(ctx context.Context, peer string) error {
	return s.view.Open(ctx, peer)
}

// CloseConversation deselects the current conversation.
func (s *Session) CloseConversation() {
	s.view.Close()
}

// Send sends text to the open conversation. The message shows up in the view
// once the server echoes the stored copy.
func (s *Session) Send(text string) error {
	identity, peer := s.view.Identity(), s.view.Peer()
	if identity == "" {
		return errors.ErrMissingIdentity
	}
	if peer == "" {
		return fmt.Errorf("%w: no conversation open", errors.ErrValidation)
	}
	now := time.Now().UTC()
	return s.write(api.EventSendMessage, api.SendMessageRequest{
		SenderID:    identity,
		RecipientID: peer,
		Text:        text,
		Timestamp:   &now,
	})
}

// RequestUsers asks for the user list; the answer arrives as a UsersListed notification.
func (s *Session) RequestUsers(excludeID string) error {
	return s.write(api.EventGetUsers, api.GetUsersRequest{ExcludeID: excludeID})
}

func (s *Session) write(name string, payload any) error {
	frame, err := api.EncodeCommand(name, payload)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	select {
	case <-s.done:
		return errors.ErrChannelClosed
	default:
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *Session) readLoop() {
	defer close(s.notifications)
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			s.shutdown(err)
			return
		}
		evt, err := api.DecodeEvent(frame)
		if err != nil {
			s.log.Warn("Unreadable event ignored", "error", err)
			continue
		}
		if received, ok := evt.(event.MessageReceived); ok && !s.view.Apply(received) {
			continue
		}
		select {
		case s.notifications <- evt:
		case <-s.done:
			return
		}
	}
}

func (s *Session) shutdown(err error) {
	s.closeOnce.Do(func() {
		s.err = err
		close(s.done)
		_ = s.conn.Close()
	})
}

// Close ends the connection. The server drops the presence binding.
func (s *Session) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	s.shutdown(nil)
	return nil
}

// Messages is a snapshot of the open conversation.
func (s *Session) Messages() []domain.Message {
	return s.view.Messages()
}
