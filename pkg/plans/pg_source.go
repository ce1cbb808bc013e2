package plans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/meterkit/pkg/pg"
)

type pgSource struct {
	db pg.Querier
}

// NewPGSource returns a Source reading the subscription_plans table.
func NewPGSource(db pg.Querier) Source {
	if db == nil {
		panic("plans: Querier is required")
	}
	return &pgSource{db: db}
}

const selectPlansSQL = `SELECT id, name, description, tier, limits, features FROM subscription_plans`

func (s *pgSource) Load(ctx context.Context) (map[string]Plan, error) {
	rows, err := s.db.Query(ctx, selectPlansSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]Plan)
	for rows.Next() {
		var (
			plan     Plan
			tier     string
			rawLimit []byte
			features []string
		)
		if err := rows.Scan(&plan.ID, &plan.Name, &plan.Description, &tier, &rawLimit, &features); err != nil {
			return nil, err
		}
		plan.Tier = Tier(tier)

		var limits map[string]int64
		if err := json.Unmarshal(rawLimit, &limits); err != nil {
			return nil, fmt.Errorf("plan %s: decode limits: %w", plan.ID, err)
		}
		plan.Limits = make(map[Metric]int64, len(limits))
		for k, v := range limits {
			m, err := ParseMetric(k)
			if err != nil {
				return nil, fmt.Errorf("plan %s: %w", plan.ID, err)
			}
			plan.Limits[m] = v
		}
		for _, f := range features {
			plan.Features = append(plan.Features, Feature(f))
		}
		result[plan.ID] = plan
	}
	return result, rows.Err()
}

const upsertPlanSQL = `
INSERT INTO subscription_plans (id, name, description, tier, limits, features, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	tier = EXCLUDED.tier,
	limits = EXCLUDED.limits,
	features = EXCLUDED.features,
	updated_at = now()`

// Seed upserts every plan from src into the subscription_plans table in a
// single transaction. It is the only writer of catalog rows.
func Seed(ctx context.Context, db pg.Querier, src Source) error {
	loaded, err := src.Load(ctx)
	if err != nil {
		return errors.Join(ErrFailedToSeedPlans, err)
	}

	err = pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		for _, plan := range loaded {
			if err := plan.validate(); err != nil {
				return err
			}
			limits := make(map[string]int64, len(plan.Limits))
			for m, v := range plan.Limits {
				limits[string(m)] = v
			}
			rawLimits, err := json.Marshal(limits)
			if err != nil {
				return err
			}
			features := make([]string, 0, len(plan.Features))
			for _, f := range plan.Features {
				features = append(features, string(f))
			}
			if _, err := tx.Exec(ctx, upsertPlanSQL,
				plan.ID, plan.Name, plan.Description, string(plan.Tier), rawLimits, features,
			); err != nil {
				return fmt.Errorf("upsert plan %s: %w", plan.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return errors.Join(ErrFailedToSeedPlans, err)
	}
	return nil
}
