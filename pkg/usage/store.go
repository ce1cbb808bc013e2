package usage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// Store persists tracking rows. Implementations must make Add atomic per row
// and must resolve concurrent Create calls for the same period start to a
// single row.
//
// Failures caused by the backend being unreachable are reported wrapped with
// ErrStorageUnavailable.
type Store interface {
	// Find returns the row containing at, or ErrTrackingNotFound.
	Find(ctx context.Context, teamID uuid.UUID, metric plans.Metric, at time.Time) (*Tracking, error)

	// Add adds delta to the row containing at and returns the new usage,
	// floored at zero. Returns ErrTrackingNotFound when no row contains at.
	Add(ctx context.Context, teamID uuid.UUID, metric plans.Metric, at time.Time, delta int64) (int64, error)

	// Create inserts t unless a row with the same team, metric and period
	// start exists, in which case that row is returned with created=false.
	// A row with a different start whose period intersects t's yields
	// ErrPeriodOverlap.
	Create(ctx context.Context, t Tracking) (*Tracking, bool, error)
}
