package subscription

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is a thread-safe in-memory Store for tests and development.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]Subscription
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[uuid.UUID]Subscription)}
}

func (s *MemoryStore) Get(_ context.Context, teamID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[teamID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (s *MemoryStore) ListActionable(_ context.Context, interval Interval) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Subscription, 0)
	for _, sub := range s.subs {
		if sub.Interval == interval && sub.IsActionable() {
			out = append(out, sub)
		}
	}
	slices.SortFunc(out, func(a, b Subscription) int {
		return bytes.Compare(a.TeamID[:], b.TeamID[:])
	})
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, sub *Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs[sub.TeamID] = *sub
	return nil
}
