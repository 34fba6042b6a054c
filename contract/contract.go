//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"hive-chat/domain"
	"hive-chat/domain/event"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Channel is one live connection able to receive pushed events.
// Its ID is unique for the lifetime of the process.
type Channel interface {
	ID() string
	Consume(ctx context.Context, e event.LiveEvent) error
}

type IPresenceRegistry interface {
	Register(userID string, channel Channel)
	Unregister(channelID string)
	Lookup(userID string) (Channel, bool)
	Count() int
}

type IMessageStore interface {
	Append(ctx context.Context, message domain.Message) (domain.Message, error)
	Query(ctx context.Context, userA, userB string) ([]domain.Message, error)
}

type IUserDirectory interface {
	ListUsers(ctx context.Context, excludeID string) ([]domain.User, error)
}
