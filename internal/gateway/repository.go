package gateway

import (
	"errors"
	"maps"
	"sync"

	"stream-resolver/internal/media"
)

// Repository defines the concurrency-safe contract for accessing registered
// streams.
type Repository interface {
	// Register stores streams under id, replacing any previous set.
	Register(id StreamID, streams media.RawStreamSet) error

	// Streams returns a copy of the raw stream set registered under id.
	// The ok return is false if id is unknown.
	Streams(id StreamID) (streams media.RawStreamSet, ok bool)

	// Remove forgets id. Removing an unknown id is a no-op.
	Remove(id StreamID)

	// StreamCount returns the number of registered streams.
	// Used for metrics.
	StreamCount() int
}

var (
	// ErrEmptyStreamID is returned when registering without an id.
	ErrEmptyStreamID = errors.New("stream id is empty")

	// ErrEmptyStreamSet is returned when registering a set without locales.
	ErrEmptyStreamSet = errors.New("stream set has no locales")
)

// InMemoryRepository is a concurrency-safe in-memory implementation of Repository.
// It uses a Store for persistence; by default that is an InMemoryStore.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store Store
}

// NewInMemoryRepository constructs a new repository with a default in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore())
}

// NewInMemoryRepositoryWithStore constructs a repository that uses the given Store.
func NewInMemoryRepositoryWithStore(store Store) *InMemoryRepository {
	return &InMemoryRepository{store: store}
}

// Register implements Repository.Register.
func (r *InMemoryRepository) Register(id StreamID, streams media.RawStreamSet) error {
	if id == "" {
		return ErrEmptyStreamID
	}
	if len(streams) == 0 {
		return ErrEmptyStreamSet
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Keep our own copy so later edits by the caller do not leak in.
	r.store.SetStream(&StreamState{ID: id, Streams: maps.Clone(streams)})
	return nil
}

// Streams implements Repository.Streams.
func (r *InMemoryRepository) Streams(id StreamID) (media.RawStreamSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.store.GetStream(id)
	if !ok {
		return nil, false
	}
	return maps.Clone(st.Streams), true
}

// Remove implements Repository.Remove.
func (r *InMemoryRepository) Remove(id StreamID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.store.DeleteStream(id)
}

// StreamCount implements Repository.StreamCount.
func (r *InMemoryRepository) StreamCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.store.ListStreamIDs())
}
