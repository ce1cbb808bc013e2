package usage

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/plans"
)

type counterKey struct {
	team   uuid.UUID
	metric plans.Metric
}

// MemoryStore is an in-process Store. One mutex serializes every write,
// which makes Add linearizable.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[counterKey][]*Tracking // sorted by PeriodStart
	now  func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[counterKey][]*Tracking),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Find(_ context.Context, teamID uuid.UUID, metric plans.Metric, at time.Time) (*Tracking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.containing(counterKey{teamID, metric}, at)
	if row == nil {
		return nil, ErrTrackingNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *MemoryStore) Add(_ context.Context, teamID uuid.UUID, metric plans.Metric, at time.Time, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.containing(counterKey{teamID, metric}, at)
	if row == nil {
		return 0, ErrTrackingNotFound
	}
	row.Usage = max(row.Usage+delta, 0)
	row.UpdatedAt = s.now()
	return row.Usage, nil
}

func (s *MemoryStore) Create(_ context.Context, t Tracking) (*Tracking, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := counterKey{t.TeamID, t.Metric}
	rows := s.rows[key]
	for _, row := range rows {
		if row.PeriodStart.Equal(t.PeriodStart) {
			cp := *row
			return &cp, false, nil
		}
		if row.Overlaps(t.PeriodStart, t.PeriodEnd) {
			return nil, false, ErrPeriodOverlap
		}
	}

	now := s.now()
	row := t
	row.ID = uuid.New()
	row.CreatedAt = now
	row.UpdatedAt = now

	i, _ := slices.BinarySearchFunc(rows, row.PeriodStart, func(r *Tracking, start time.Time) int {
		return r.PeriodStart.Compare(start)
	})
	s.rows[key] = slices.Insert(rows, i, &row)

	cp := row
	return &cp, true, nil
}

func (s *MemoryStore) containing(key counterKey, at time.Time) *Tracking {
	for _, row := range s.rows[key] {
		if row.Contains(at) {
			return row
		}
	}
	return nil
}
