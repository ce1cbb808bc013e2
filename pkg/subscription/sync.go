package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/logger"
)

// Sync applies normalized billing events to a Store. It is the only writer of
// subscriptions; the metering engine reads them through Reader.
type Sync struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// SyncOption configures Sync.
type SyncOption func(*Sync)

// WithSyncLogger sets the logger used by Sync.
func WithSyncLogger(l *slog.Logger) SyncOption {
	return func(s *Sync) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSyncClock overrides the time source, mostly for tests.
func WithSyncClock(now func() time.Time) SyncOption {
	return func(s *Sync) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSync creates a Sync writing to store.
func NewSync(store Store, opts ...SyncOption) *Sync {
	if store == nil {
		panic("subscription: Store is required")
	}
	s := &Sync{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply persists the state carried by ev.
// Events older than the stored subscription are ignored with ErrStaleEvent.
func (s *Sync) Apply(ctx context.Context, ev Event) error {
	if ev.TeamID == uuid.Nil {
		return ErrMissingTeamID
	}

	existing, err := s.store.Get(ctx, ev.TeamID)
	if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return fmt.Errorf("load subscription for team %s: %w", ev.TeamID, err)
	}

	updatedAt := ev.OccurredAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}
	if existing != nil && !ev.OccurredAt.IsZero() && existing.UpdatedAt.After(ev.OccurredAt) {
		s.logger.DebugContext(ctx, "skipping stale billing event",
			logger.TeamID(ev.TeamID),
			logger.EventType(ev.ProviderEvent))
		return ErrStaleEvent
	}

	var sub *Subscription
	switch ev.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionResumed:
		sub = existing
		if sub == nil {
			sub = &Subscription{TeamID: ev.TeamID, CreatedAt: updatedAt}
		}
		sub.PlanID = ev.PlanID
		sub.Status = ev.Status
		sub.ProviderSubID = ev.SubscriptionID
		if ev.Interval != "" {
			sub.Interval = ev.Interval
		}
		if !ev.PeriodStart.IsZero() && !ev.PeriodEnd.IsZero() {
			sub.CurrentPeriodStart = ev.PeriodStart.UTC()
			sub.CurrentPeriodEnd = ev.PeriodEnd.UTC()
		}
		if sub.Status != StatusCanceled {
			sub.CanceledAt = nil
		}

	case EventSubscriptionCanceled:
		if existing == nil {
			return fmt.Errorf("cancel for team %s: %w", ev.TeamID, ErrSubscriptionNotFound)
		}
		sub = existing
		sub.Status = StatusCanceled
		canceledAt := updatedAt
		sub.CanceledAt = &canceledAt

	case EventPaymentFailed:
		if existing == nil {
			// nothing to degrade yet; the created event will carry the status
			return nil
		}
		sub = existing
		sub.Status = StatusPastDue

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEvent, ev.ProviderEvent)
	}

	sub.UpdatedAt = updatedAt
	if err := s.store.Save(ctx, sub); err != nil {
		return fmt.Errorf("save subscription for team %s: %w", ev.TeamID, err)
	}

	s.logger.InfoContext(ctx, "subscription synced",
		logger.TeamID(ev.TeamID),
		logger.PlanID(sub.PlanID),
		logger.EventType(string(ev.Type)),
		slog.String("status", string(sub.Status)))
	return nil
}
