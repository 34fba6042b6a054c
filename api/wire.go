// Package api holds the JSON shapes exchanged with clients over websocket and HTTP.
package api

import (
	"bytes"
	"fmt"
	"hive-chat/domain"
	"hive-chat/domain/chat"
	"hive-chat/domain/event"
	"hive-chat/errors"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/samber/lo"
)

// Inbound event names.
const (
	EventIdentify    = "identify"
	EventSendMessage = "sendMessage"
	EventGetUsers    = "getUsers"
)

// Envelope wraps every websocket frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Message struct {
	ID          uint64    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SendMessageRequest is the body of sendMessage and of POST /messages.
type SendMessageRequest struct {
	SenderID    string     `json:"sender_id"`
	RecipientID string     `json:"recipient_id"`
	Text        string     `json:"text"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

type GetUsersRequest struct {
	ExcludeID string `json:"excludeId"`
}

type SendFailed struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func FromMessage(m domain.Message) Message {
	return Message{
		ID:          uint64(m.ID),
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Text:        m.Text,
		Timestamp:   m.Timestamp,
	}
}

func (m Message) ToDomain() domain.Message {
	return domain.Message{
		ID:          domain.MessageID(m.ID),
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Text:        m.Text,
		Timestamp:   m.Timestamp,
	}
}

func FromMessages(messages []domain.Message) []Message {
	return lo.Map(messages, func(m domain.Message, _ int) Message { return FromMessage(m) })
}

func ToMessages(messages []Message) []domain.Message {
	return lo.Map(messages, func(m Message, _ int) domain.Message { return m.ToDomain() })
}

func FromUsers(users []domain.User) []User {
	return lo.Map(users, func(u domain.User, _ int) User {
		return User{ID: u.ID, Username: u.Username, Email: u.Email}
	})
}

func ToUsers(users []User) []domain.User {
	return lo.Map(users, func(u User, _ int) domain.User {
		return domain.User{ID: u.ID, Username: u.Username, Email: u.Email}
	})
}

func (r SendMessageRequest) ToCommand() chat.SendMessageCommand {
	return chat.SendMessageCommand{
		SenderID:    r.SenderID,
		RecipientID: r.RecipientID,
		Text:        r.Text,
		Timestamp:   r.Timestamp,
	}
}

// NewEnvelope wraps a live event with its wire name.
func NewEnvelope(e event.LiveEvent) (Envelope, error) {
	var payload any
	switch evt := e.(type) {
	case event.MessageReceived:
		payload = FromMessage(evt.Message)
	case event.UsersListed:
		payload = FromUsers(evt.Users)
	case event.SendFailed:
		payload = SendFailed{Error: evt.Reason, Message: evt.Text}
	default:
		return Envelope{}, fmt.Errorf("%w: %T", errors.ErrUnknownEvent, e)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: e.Name(), Data: data}, nil
}

// EncodeEvent turns a live event into a websocket frame.
func EncodeEvent(e event.LiveEvent) ([]byte, error) {
	envelope, err := NewEnvelope(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}

// DecodeEvent is the client side of EncodeEvent.
func DecodeEvent(frame []byte) (event.LiveEvent, error) {
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return nil, err
	}
	return envelope.LiveEvent()
}

// LiveEvent decodes the payload according to the event name.
func (e Envelope) LiveEvent() (event.LiveEvent, error) {
	switch e.Event {
	case event.NameReceiveMessage:
		var message Message
		if err := json.Unmarshal(e.Data, &message); err != nil {
			return nil, err
		}
		return event.MessageReceived{Message: message.ToDomain()}, nil
	case event.NameUsersList:
		var users []User
		if err := json.Unmarshal(e.Data, &users); err != nil {
			return nil, err
		}
		return event.UsersListed{Users: ToUsers(users)}, nil
	case event.NameSendFailed:
		var failed SendFailed
		if err := json.Unmarshal(e.Data, &failed); err != nil {
			return nil, err
		}
		return event.SendFailed{Reason: failed.Error, Text: failed.Message}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, e.Event)
	}
}

// EncodeCommand builds an inbound frame.
func EncodeCommand(name string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Data: data})
}

// DecodeUserID reads the identify payload, which browsers send either as a
// JSON string or as a bare number.
func DecodeUserID(data json.RawMessage) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", fmt.Errorf("%w: empty user id", errors.ErrValidation)
	}
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		if id == "" {
			return "", fmt.Errorf("%w: empty user id", errors.ErrValidation)
		}
		return id, nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return "", fmt.Errorf("%w: user id must be a string or a number", errors.ErrValidation)
	}
	if _, err := strconv.ParseInt(number.String(), 10, 64); err != nil {
		return "", fmt.Errorf("%w: user id %s is not an integer", errors.ErrValidation, number)
	}
	return number.String(), nil
}
