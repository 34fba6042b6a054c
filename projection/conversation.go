// Package projection builds the local view of one conversation from a history
// snapshot and the live events observed afterwards.
// Handles filtering and deduplication. Does not render anything.
package projection

import (
	"context"
	"fmt"
	"hive-chat/domain"
	"hive-chat/domain/event"
	"hive-chat/errors"
	"sync"
)

type State int

const (
	StateEmpty State = iota
	StateLoading
	StateSynced
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSynced:
		return "synced"
	default:
		return "empty"
	}
}

// ErrSuperseded is returned by Open when the conversation was closed or another
// one was opened while the history was being fetched.
var ErrSuperseded = fmt.Errorf("conversation view superseded")

//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_projection.go -package=mocks
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, userA, userB string) ([]domain.Message, error)
}

// ConversationView holds the messages exchanged by the current user and the selected peer.
// Live messages observed while the snapshot is loading are kept aside and merged once it lands,
// so nothing pushed during the fetch is lost.
type ConversationView struct {
	mu         sync.Mutex
	fetcher    HistoryFetcher
	identity   string
	peer       string
	state      State
	generation uint64
	messages   []domain.Message
	seen       map[domain.MessageID]struct{}
	pending    []domain.Message
}

func NewConversationView(fetcher HistoryFetcher) *ConversationView {
	return &ConversationView{fetcher: fetcher}
}

// SetIdentity changes the current user. Any open conversation is discarded.
func (v *ConversationView) SetIdentity(userID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.identity == userID {
		return
	}
	v.identity = userID
	v.reset()
}

// Open discards the current view, loads the history with peer and switches to Synced.
func (v *ConversationView) Open(ctx context.Context, peer string) error {
	v.mu.Lock()
	if v.identity == "" {
		v.mu.Unlock()
		return errors.ErrMissingIdentity
	}
	if peer == "" {
		v.mu.Unlock()
		return fmt.Errorf("%w: empty peer", errors.ErrValidation)
	}
	v.reset()
	v.peer = peer
	v.state = StateLoading
	generation := v.generation
	identity := v.identity
	v.mu.Unlock()

	history, err := v.fetcher.FetchHistory(ctx, identity, peer)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.generation != generation {
		return ErrSuperseded
	}
	if err != nil {
		v.reset()
		return err
	}
	v.messages = make([]domain.Message, 0, len(history)+len(v.pending))
	for _, m := range history {
		v.messages = append(v.messages, m)
		v.seen[m.ID] = struct{}{}
	}
	pending := v.pending
	v.pending = nil
	for _, m := range pending {
		v.accept(m)
	}
	v.state = StateSynced
	return nil
}

// Close deselects the conversation.
func (v *ConversationView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reset()
}

// Apply merges a live event and reports whether it was appended to the view.
func (v *ConversationView) Apply(e event.LiveEvent) bool {
	evt, ok := e.(event.MessageReceived)
	if !ok {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateEmpty || !evt.Message.Between(v.identity, v.peer) {
		return false
	}
	if v.state == StateLoading {
		v.pending = append(v.pending, evt.Message)
		return false
	}
	return v.accept(evt.Message)
}

func (v *ConversationView) accept(m domain.Message) bool {
	if v.duplicate(m) {
		return false
	}
	v.messages = append(v.messages, m)
	v.seen[m.ID] = struct{}{}
	return true
}

// duplicate matches the tail on (text, timestamp, sender), and any message
// whose store id is already in the view.
func (v *ConversationView) duplicate(m domain.Message) bool {
	if m.ID != 0 {
		if _, ok := v.seen[m.ID]; ok {
			return true
		}
	}
	if len(v.messages) == 0 {
		return false
	}
	tail := v.messages[len(v.messages)-1]
	return tail.Text == m.Text &&
		tail.SenderID == m.SenderID &&
		tail.Timestamp.Equal(m.Timestamp)
}

func (v *ConversationView) reset() {
	v.generation++
	v.peer = ""
	v.state = StateEmpty
	v.messages = nil
	v.pending = nil
	v.seen = make(map[domain.MessageID]struct{})
}

func (v *ConversationView) Messages() []domain.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]domain.Message(nil), v.messages...)
}

func (v *ConversationView) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *ConversationView) Peer() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.peer
}

func (v *ConversationView) Identity() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.identity
}
