// Package event defines what is pushed to live connections.
package event

import (
	"hive-chat/domain"
)

const (
	NameReceiveMessage = "receiveMessage"
	NameUsersList      = "usersList"
	NameSendFailed     = "sendFailed"
)

type LiveEvent interface {
	Name() string
}

// MessageReceived carries a message that is already durable.
type MessageReceived struct {
	Message domain.Message
}

func (MessageReceived) Name() string { return NameReceiveMessage }

type UsersListed struct {
	Users []domain.User
}

func (UsersListed) Name() string { return NameUsersList }

// SendFailed tells the originating connection that its send was rejected or not persisted.
type SendFailed struct {
	Reason string
	Text   string
}

func (SendFailed) Name() string { return NameSendFailed }
