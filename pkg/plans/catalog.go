package plans

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
)

// Catalog is an immutable index of plans. Safe for concurrent use.
type Catalog struct {
	plans map[string]Plan
}

// NewCatalog loads and validates plans from the source.
func NewCatalog(ctx context.Context, src Source) (*Catalog, error) {
	if src == nil {
		panic("plans: Source is required")
	}

	loaded, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	c := &Catalog{plans: make(map[string]Plan, len(loaded))}
	for id, plan := range loaded {
		if plan.ID != id {
			return nil, fmt.Errorf("%w: plan ID mismatch: map key %s != plan.ID %s", ErrInvalidPlanConfiguration, id, plan.ID)
		}
		if err := plan.validate(); err != nil {
			return nil, err
		}
		c.plans[id] = plan.clone()
	}
	return c, nil
}

// Get returns the plan with the given id or ErrPlanNotFound.
func (c *Catalog) Get(id string) (Plan, error) {
	plan, ok := c.plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrPlanNotFound, id)
	}
	return plan.clone(), nil
}

// All returns every plan sorted by ID.
func (c *Catalog) All() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p.clone())
	}
	slices.SortFunc(out, func(a, b Plan) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Load implements Source so a Catalog can feed a seeder.
func (c *Catalog) Load(_ context.Context) (map[string]Plan, error) {
	out := make(map[string]Plan, len(c.plans))
	for id, p := range c.plans {
		out[id] = p.clone()
	}
	return out, nil
}
