package subscription

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/meterkit/pkg/pg"
)

// PGStore is a Store backed by the customer_subscriptions table.
type PGStore struct {
	db pg.Querier
}

// NewPGStore returns a Postgres-backed Store.
func NewPGStore(db pg.Querier) *PGStore {
	if db == nil {
		panic("subscription: pg.Querier is required")
	}
	return &PGStore{db: db}
}

const subscriptionColumns = `team_id, plan_id, status, billing_interval, current_period_start,
	current_period_end, provider_sub_id, created_at, updated_at, canceled_at`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var (
		sub      Subscription
		status   string
		interval string
	)
	if err := row.Scan(
		&sub.TeamID, &sub.PlanID, &status, &interval, &sub.CurrentPeriodStart,
		&sub.CurrentPeriodEnd, &sub.ProviderSubID, &sub.CreatedAt, &sub.UpdatedAt, &sub.CanceledAt,
	); err != nil {
		return nil, err
	}
	sub.Status = Status(status)
	sub.Interval = Interval(interval)
	return &sub, nil
}

func (s *PGStore) Get(ctx context.Context, teamID uuid.UUID) (*Subscription, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM customer_subscriptions WHERE team_id = $1`, teamID)

	sub, err := scanSubscription(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription %s: %w", teamID, err)
	}
	return sub, nil
}

func (s *PGStore) ListActionable(ctx context.Context, interval Interval) ([]Subscription, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM customer_subscriptions
		WHERE billing_interval = $1 AND status IN ($2, $3)
		ORDER BY team_id`,
		string(interval), string(StatusActive), string(StatusTrialing))
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	out := make([]Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return out, nil
}

func (s *PGStore) Save(ctx context.Context, sub *Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO customer_subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (team_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			billing_interval = EXCLUDED.billing_interval,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			provider_sub_id = EXCLUDED.provider_sub_id,
			updated_at = EXCLUDED.updated_at,
			canceled_at = EXCLUDED.canceled_at`,
		sub.TeamID, sub.PlanID, string(sub.Status), string(sub.Interval), sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd, sub.ProviderSubID, sub.CreatedAt, sub.UpdatedAt, sub.CanceledAt,
	)
	if err != nil {
		return fmt.Errorf("save subscription %s: %w", sub.TeamID, err)
	}
	return nil
}
