package outbox

import (
	"context"
	"sync"

	"github.com/firealert/firealert/internal/alert"
)

// MemoryStore is an in-memory Store. The queue is rebuilt empty on every
// process start; use the sqlite store for persistence across restarts.
type MemoryStore struct {
	mu     sync.Mutex
	order  []string
	drafts map[string]*alert.Draft
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[string]*alert.Draft)}
}

// Append adds the draft at the tail unless its ID is already queued.
func (s *MemoryStore) Append(_ context.Context, d *alert.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drafts[d.ID]; ok {
		return nil
	}
	s.order = append(s.order, d.ID)
	s.drafts[d.ID] = d
	return nil
}

// Remove deletes the entry with the given draft ID.
func (s *MemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drafts[id]; !ok {
		return ErrDraftNotFound
	}
	delete(s.drafts, id)
	for i, queued := range s.order {
		if queued == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns a snapshot of the queue in FIFO order.
func (s *MemoryStore) List(_ context.Context) ([]*alert.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*alert.Draft, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.drafts[id])
	}
	return out, nil
}

// Len returns the number of queued drafts.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order), nil
}
