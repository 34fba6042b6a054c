package runtime

import (
	"hive-chat/contract"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Ensure *Registry implements the contract.IPresenceRegistry interface at compile time.
var _ contract.IPresenceRegistry = (*Registry)(nil)

const shardCount = 64

type shard struct {
	mu       sync.RWMutex
	sessions map[string]contract.Channel // map user -> live channel
}

// Registry maps each identified user to the channel of its most recent connection.
// Users are spread over independently locked shards: operations on different users
// rarely contend, operations on the same user always serialize on one lock.
// Register and Unregister for a given channel are expected to come from the
// goroutine that owns that connection.
type Registry struct {
	shards   [shardCount]*shard
	channels sync.Map // map channel id -> user id
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{sessions: make(map[string]contract.Channel)}
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	return r.shards[xxhash.Sum64String(userID)%shardCount]
}

// Register binds userID to channel, silently replacing any previous binding.
// When the channel was already identified as another user, that older binding is
// released so a connection never speaks for two users.
func (r *Registry) Register(userID string, channel contract.Channel) {
	s := r.shardFor(userID)
	s.mu.Lock()
	s.sessions[userID] = channel
	s.mu.Unlock()

	previous, loaded := r.channels.Swap(channel.ID(), userID)
	if loaded && previous.(string) != userID {
		r.compareAndDelete(previous.(string), channel.ID())
	}
}

// Unregister removes the binding held by channelID, if that channel is still the
// current one for its user. A disconnect arriving after a newer registration of the
// same user is a no-op.
func (r *Registry) Unregister(channelID string) {
	userID, ok := r.channels.LoadAndDelete(channelID)
	if !ok {
		return
	}
	r.compareAndDelete(userID.(string), channelID)
}

func (r *Registry) compareAndDelete(userID, channelID string) {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.sessions[userID]; ok && current.ID() == channelID {
		delete(s.sessions, userID)
	}
}

func (r *Registry) Lookup(userID string) (contract.Channel, bool) {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	channel, ok := s.sessions[userID]
	return channel, ok
}

// Count returns the number of users holding a live binding.
func (r *Registry) Count() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		total += len(s.sessions)
		s.mu.RUnlock()
	}
	return total
}
