package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/meterkit/pkg/pg"
	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// GaugeFunc returns the authoritative live count of a gauge metric for a
// team, e.g. the number of currently published surveys.
type GaugeFunc func(ctx context.Context, teamID uuid.UUID) (int64, error)

// RegisterGauge sets the live counter that seeds new periods of a gauge
// metric. Without one, a new period carries over the previous row's value.
func (t *Tracker) RegisterGauge(metric plans.Metric, fn GaugeFunc) error {
	if !metric.Valid() || !metric.IsGauge() || fn == nil {
		return fmt.Errorf("%w: %q", ErrNotGaugeMetric, metric)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.gauges[metric]; exists {
		return fmt.Errorf("%w: %s", ErrGaugeAlreadyRegistered, metric)
	}
	t.gauges[metric] = fn
	return nil
}

func (t *Tracker) gauge(metric plans.Metric) GaugeFunc {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.gauges[metric]
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGGauge counts a gauge with query, which takes the team id as $1 and
// returns a single integer:
//
//	SELECT count(*) FROM surveys WHERE team_id = $1 AND published_at IS NOT NULL
//
// A NULL result counts as zero.
func PGGauge(db rowQuerier, query string) GaugeFunc {
	return func(ctx context.Context, teamID uuid.UUID) (int64, error) {
		var n *int64
		if err := db.QueryRow(ctx, query, teamID).Scan(&n); err != nil {
			if pg.IsNotFoundError(err) {
				return 0, nil
			}
			if pg.IsUnavailableError(err) {
				return 0, errors.Join(ErrStorageUnavailable, err)
			}
			return 0, err
		}
		if n == nil {
			return 0, nil
		}
		return *n, nil
	}
}
