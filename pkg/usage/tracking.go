package usage

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// Tracking is the consumption counter of one metric for one team over
// [PeriodStart, PeriodEnd). Limit is the plan ceiling captured when the row
// was created and is kept for audit.
type Tracking struct {
	ID          uuid.UUID
	TeamID      uuid.UUID
	Metric      plans.Metric
	Usage       int64
	Limit       int64
	PeriodStart time.Time
	PeriodEnd   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Contains reports whether at falls inside the row's half-open period.
func (t *Tracking) Contains(at time.Time) bool {
	return !at.Before(t.PeriodStart) && at.Before(t.PeriodEnd)
}

// Overlaps reports whether [start, end) intersects the row's period.
func (t *Tracking) Overlaps(start, end time.Time) bool {
	return start.Before(t.PeriodEnd) && t.PeriodStart.Before(end)
}

// EnsureParams describes the row EnsurePeriod creates when none exists.
type EnsureParams struct {
	TeamID       uuid.UUID
	Metric       plans.Metric
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Limit        int64
	InitialUsage int64
}

func (p EnsureParams) validate() error {
	if p.TeamID == uuid.Nil {
		return ErrMissingTeamID
	}
	if !p.Metric.Valid() {
		return fmt.Errorf("%w: %q", plans.ErrUnknownMetric, p.Metric)
	}
	if !p.PeriodStart.Before(p.PeriodEnd) {
		return fmt.Errorf("%w: start %s is not before end %s", ErrInvalidPeriod, p.PeriodStart, p.PeriodEnd)
	}
	if p.InitialUsage < 0 {
		return fmt.Errorf("%w: initial usage %d", ErrInvalidDelta, p.InitialUsage)
	}
	return nil
}

func (p EnsureParams) tracking() Tracking {
	return Tracking{
		TeamID:      p.TeamID,
		Metric:      p.Metric,
		Usage:       p.InitialUsage,
		Limit:       p.Limit,
		PeriodStart: p.PeriodStart.UTC(),
		PeriodEnd:   p.PeriodEnd.UTC(),
	}
}

// OpenParams describes the period OpenPeriod opens. The initial usage is
// derived by the tracker.
type OpenParams struct {
	TeamID      uuid.UUID
	Metric      plans.Metric
	PeriodStart time.Time
	PeriodEnd   time.Time
	Limit       int64
}

func (p OpenParams) ensure(initial int64) EnsureParams {
	return EnsureParams{
		TeamID:       p.TeamID,
		Metric:       p.Metric,
		PeriodStart:  p.PeriodStart,
		PeriodEnd:    p.PeriodEnd,
		Limit:        p.Limit,
		InitialUsage: initial,
	}
}
