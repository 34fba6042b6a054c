package server

import (
	"context"
	"fmt"
	"hive-chat/domain/event"
	"hive-chat/errors"

	"github.com/google/uuid"
)

// streamChannel is the presence channel of one Connect stream.
// Consume hands events to the stream handler goroutine, which owns the stream.
type streamChannel struct {
	id     string
	events chan event.LiveEvent
	done   chan struct{}
}

func newStreamChannel(bufferSize int) *streamChannel {
	return &streamChannel{
		id:     uuid.NewString(),
		events: make(chan event.LiveEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

func (s *streamChannel) ID() string { return s.id }

func (s *streamChannel) Consume(ctx context.Context, e event.LiveEvent) error {
	select {
	case <-s.done:
		return errors.ErrChannelClosed
	default:
	}
	select {
	case s.events <- e:
		return nil
	case <-s.done:
		return errors.ErrChannelClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errors.ErrChannelFull, ctx.Err())
	}
}

func (s *streamChannel) close() {
	close(s.done)
}
