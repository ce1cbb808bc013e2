package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/meterkit/pkg/pg"
	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// PGStore is a Store backed by the usage_tracking table.
type PGStore struct {
	db pg.Querier
}

// NewPGStore returns a Postgres-backed Store.
func NewPGStore(db pg.Querier) *PGStore {
	if db == nil {
		panic("usage: pg.Querier is required")
	}
	return &PGStore{db: db}
}

const trackingColumns = `id, team_id, metric, current_usage, limit_value, period_start, period_end, created_at, updated_at`

const findTrackingSQL = `SELECT ` + trackingColumns + ` FROM usage_tracking
	WHERE team_id = $1 AND metric = $2 AND period_start <= $3 AND period_end > $3
	ORDER BY period_start DESC
	LIMIT 1`

// The row lock taken by UPDATE serializes concurrent increments; the second
// writer re-evaluates current_usage after the first commits.
const addTrackingSQL = `UPDATE usage_tracking
	SET current_usage = GREATEST(current_usage + $4, 0), updated_at = now()
	WHERE id = (
		SELECT id FROM usage_tracking
		WHERE team_id = $1 AND metric = $2 AND period_start <= $3 AND period_end > $3
		ORDER BY period_start DESC
		LIMIT 1
	)
	RETURNING current_usage`

const overlapTrackingSQL = `SELECT EXISTS (
	SELECT 1 FROM usage_tracking
	WHERE team_id = $1 AND metric = $2 AND period_start <> $3
		AND period_start < $4 AND period_end > $3
)`

const insertTrackingSQL = `INSERT INTO usage_tracking
	(id, team_id, metric, current_usage, limit_value, period_start, period_end)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (team_id, metric, period_start) DO NOTHING
	RETURNING ` + trackingColumns

const getTrackingByStartSQL = `SELECT ` + trackingColumns + ` FROM usage_tracking
	WHERE team_id = $1 AND metric = $2 AND period_start = $3`

func scanTracking(row pgx.Row) (*Tracking, error) {
	var (
		t      Tracking
		metric string
	)
	if err := row.Scan(
		&t.ID, &t.TeamID, &metric, &t.Usage, &t.Limit,
		&t.PeriodStart, &t.PeriodEnd, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Metric = plans.Metric(metric)
	t.PeriodStart = t.PeriodStart.UTC()
	t.PeriodEnd = t.PeriodEnd.UTC()
	return &t, nil
}

func (s *PGStore) Find(ctx context.Context, teamID uuid.UUID, metric plans.Metric, at time.Time) (*Tracking, error) {
	t, err := scanTracking(s.db.QueryRow(ctx, findTrackingSQL, teamID, string(metric), at))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrTrackingNotFound
		}
		return nil, classifyPG(fmt.Errorf("find tracking: %w", err), false)
	}
	return t, nil
}

func (s *PGStore) Add(ctx context.Context, teamID uuid.UUID, metric plans.Metric, at time.Time, delta int64) (int64, error) {
	var usage int64
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, addTrackingSQL, teamID, string(metric), at, delta).Scan(&usage)
	})
	if err != nil {
		if pg.IsNotFoundError(err) {
			return 0, ErrTrackingNotFound
		}
		return 0, classifyPG(fmt.Errorf("increment tracking: %w", err), true)
	}
	return usage, nil
}

func (s *PGStore) Create(ctx context.Context, t Tracking) (*Tracking, bool, error) {
	var (
		row     *Tracking
		created bool
	)
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var overlaps bool
		if err := tx.QueryRow(ctx, overlapTrackingSQL,
			t.TeamID, string(t.Metric), t.PeriodStart, t.PeriodEnd,
		).Scan(&overlaps); err != nil {
			return err
		}
		if overlaps {
			return ErrPeriodOverlap
		}

		inserted, err := scanTracking(tx.QueryRow(ctx, insertTrackingSQL,
			uuid.New(), t.TeamID, string(t.Metric), t.Usage, t.Limit, t.PeriodStart, t.PeriodEnd,
		))
		switch {
		case err == nil:
			row, created = inserted, true
			return nil
		case !pg.IsNotFoundError(err):
			return err
		}

		// lost the race: the other writer's row is committed and visible now
		existing, err := scanTracking(tx.QueryRow(ctx, getTrackingByStartSQL,
			t.TeamID, string(t.Metric), t.PeriodStart,
		))
		if err != nil {
			return err
		}
		row = existing
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPeriodOverlap) {
			return nil, false, err
		}
		// creation is idempotent, so a lost reply is safe to retry
		return nil, false, classifyPG(fmt.Errorf("create tracking: %w", err), false)
	}
	return row, created, nil
}

// classifyPG marks connectivity failures as ErrStorageUnavailable. For writes
// a failure after the statement may have reached the server is also marked
// ErrWriteUncertain.
func classifyPG(err error, write bool) error {
	if !pg.IsUnavailableError(err) {
		return err
	}
	var pgErr *pgconn.PgError
	if write && !pgconn.SafeToRetry(err) && !errors.As(err, &pgErr) {
		return errors.Join(ErrStorageUnavailable, ErrWriteUncertain, err)
	}
	return errors.Join(ErrStorageUnavailable, err)
}
