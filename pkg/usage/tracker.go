package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// Tracker is the single entry point for reading and mutating usage counters.
type Tracker struct {
	store      Store
	logger     *slog.Logger
	recorder   Recorder
	maxRetries uint64
	baseDelay  time.Duration
	maxDelay   time.Duration

	mu     sync.RWMutex
	gauges map[plans.Metric]GaugeFunc
}

// NewTracker creates a Tracker over store.
func NewTracker(store Store, opts ...TrackerOption) *Tracker {
	if store == nil {
		panic("usage: Store is required")
	}
	t := &Tracker{
		store:      store,
		logger:     slog.Default(),
		maxRetries: 3,
		baseDelay:  25 * time.Millisecond,
		maxDelay:   500 * time.Millisecond,
		gauges:     make(map[plans.Metric]GaugeFunc),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CurrentUsage returns the row whose period contains asOf.
func (t *Tracker) CurrentUsage(ctx context.Context, teamID uuid.UUID, metric plans.Metric, asOf time.Time) (*Tracking, error) {
	if err := checkCounter(teamID, metric); err != nil {
		return nil, err
	}

	var row *Tracking
	err := t.withRetry(ctx, "current_usage", func(ctx context.Context) error {
		var err error
		row, err = t.store.Find(ctx, teamID, metric, asOf.UTC())
		return err
	})
	if err != nil {
		return nil, t.fail(ctx, "current_usage", teamID, metric, err)
	}
	return row, nil
}

// UsageBefore returns the usage of the row covering the instant just before
// at, or 0 when there is none. Gauge metrics seed a new period from it.
func (t *Tracker) UsageBefore(ctx context.Context, teamID uuid.UUID, metric plans.Metric, at time.Time) (int64, error) {
	row, err := t.CurrentUsage(ctx, teamID, metric, at.Add(-time.Nanosecond))
	switch {
	case errors.Is(err, ErrTrackingNotFound):
		return 0, nil
	case err != nil:
		return 0, err
	}
	return row.Usage, nil
}

// Increment atomically adds delta to the counter of the period containing
// asOf and returns the new value. Negative deltas are accepted for gauge
// metrics only and never take the counter below zero.
func (t *Tracker) Increment(ctx context.Context, teamID uuid.UUID, metric plans.Metric, delta int64, asOf time.Time) (int64, error) {
	if err := checkCounter(teamID, metric); err != nil {
		return 0, err
	}
	if delta == 0 || (delta < 0 && !metric.IsGauge()) {
		return 0, fmt.Errorf("%w: %d for %s metric %s", ErrInvalidDelta, delta, metric.Kind(), metric)
	}

	var usage int64
	err := t.withRetry(ctx, "increment", func(ctx context.Context) error {
		var err error
		usage, err = t.store.Add(ctx, teamID, metric, asOf.UTC(), delta)
		return err
	})
	if err != nil {
		return 0, t.fail(ctx, "increment", teamID, metric, err)
	}

	if t.recorder != nil {
		t.recorder.RecordIncrement(metric, delta)
	}
	t.logger.DebugContext(ctx, "usage incremented",
		logger.TeamID(teamID),
		logger.Metric(metric),
		slog.Int64("delta", delta),
		slog.Int64("usage", usage))
	return usage, nil
}

// EnsurePeriod makes sure a row exists for the requested period. An existing
// row with the same start is returned unchanged with created=false.
func (t *Tracker) EnsurePeriod(ctx context.Context, p EnsureParams) (*Tracking, bool, error) {
	if err := p.validate(); err != nil {
		return nil, false, err
	}

	var (
		row     *Tracking
		created bool
	)
	err := t.withRetry(ctx, "ensure_period", func(ctx context.Context) error {
		var err error
		row, created, err = t.store.Create(ctx, p.tracking())
		return err
	})
	if err != nil {
		return nil, false, t.fail(ctx, "ensure_period", p.TeamID, p.Metric, err)
	}

	if created {
		t.logger.InfoContext(ctx, "tracking period created",
			logger.TeamID(p.TeamID),
			logger.Metric(p.Metric),
			logger.Period(row.PeriodStart, row.PeriodEnd),
			slog.Int64("limit", row.Limit),
			slog.Int64("initial_usage", row.Usage))
	}
	return row, created, nil
}

// OpenPeriod makes sure usage of p.Metric is tracked from p.PeriodStart to
// p.PeriodEnd and returns the row covering p.PeriodStart.
//
// When an earlier row still covers the requested start, for example after
// the billing anchor moved, the new row starts where that row ends. A period
// already covered in full returns the covering row with created=false.
// Gauge rows are seeded from the registered GaugeFunc, then from the row
// ending at the new start, then zero. Cumulative rows start at zero.
func (t *Tracker) OpenPeriod(ctx context.Context, p OpenParams) (*Tracking, bool, error) {
	if err := p.ensure(0).validate(); err != nil {
		return nil, false, err
	}

	start := p.PeriodStart.UTC()
	for {
		row, err := t.CurrentUsage(ctx, p.TeamID, p.Metric, start)
		if errors.Is(err, ErrTrackingNotFound) {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if row.PeriodStart.Equal(start) || !row.PeriodEnd.Before(p.PeriodEnd) {
			return row, false, nil
		}
		t.logger.InfoContext(ctx, "tracking period starts after previous row",
			logger.TeamID(p.TeamID),
			logger.Metric(p.Metric),
			logger.Period(start, p.PeriodEnd),
			slog.Time("previous_end", row.PeriodEnd))
		start = row.PeriodEnd
	}
	p.PeriodStart = start

	initial, err := t.seed(ctx, p.TeamID, p.Metric, start)
	if err != nil {
		return nil, false, err
	}
	return t.EnsurePeriod(ctx, p.ensure(initial))
}

func (t *Tracker) seed(ctx context.Context, teamID uuid.UUID, metric plans.Metric, start time.Time) (int64, error) {
	if !metric.IsGauge() {
		return 0, nil
	}
	if fn := t.gauge(metric); fn != nil {
		n, err := fn(ctx, teamID)
		if err != nil {
			err = fmt.Errorf("gauge %s: %w", metric, err)
			if !errors.Is(err, ErrStorageUnavailable) {
				err = errors.Join(ErrStorageUnavailable, err)
			}
			return 0, t.fail(ctx, "gauge", teamID, metric, err)
		}
		return max(n, 0), nil
	}
	return t.UsageBefore(ctx, teamID, metric, start)
}

func (t *Tracker) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	b := retry.WithMaxRetries(t.maxRetries, retry.WithCappedDuration(t.maxDelay, retry.NewExponential(t.baseDelay)))

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrStorageUnavailable) && !errors.Is(err, ErrWriteUncertain) && ctx.Err() == nil {
			t.logger.WarnContext(ctx, "usage storage unavailable, retrying",
				logger.Component("usage"),
				slog.String("op", op),
				logger.RetryCount(attempt),
				logger.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
}

// fail normalizes a storage error. A cancelled or expired caller context is
// reported as ErrStorageUnavailable so it is never mistaken for a decision.
func (t *Tracker) fail(ctx context.Context, op string, teamID uuid.UUID, metric plans.Metric, err error) error {
	if errors.Is(err, ErrTrackingNotFound) || errors.Is(err, ErrPeriodOverlap) {
		return err
	}
	if ctx.Err() != nil && !errors.Is(err, ErrStorageUnavailable) {
		err = errors.Join(ErrStorageUnavailable, err)
	}
	t.logger.ErrorContext(ctx, "usage storage operation failed",
		logger.Component("usage"),
		slog.String("op", op),
		logger.TeamID(teamID),
		logger.Metric(metric),
		logger.Error(err))
	return err
}

func checkCounter(teamID uuid.UUID, metric plans.Metric) error {
	if teamID == uuid.Nil {
		return ErrMissingTeamID
	}
	if !metric.Valid() {
		return fmt.Errorf("%w: %q", plans.ErrUnknownMetric, metric)
	}
	return nil
}
