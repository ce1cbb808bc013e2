package plans

import (
	"fmt"
	"maps"
	"slices"
)

// Plan describes a subscription plan and its resource/feature constraints.
// The ID should match the payment provider's price ID so webhook events map
// straight onto catalog entries.
type Plan struct {
	ID          string
	Name        string
	Description string
	Tier        Tier
	Limits      map[Metric]int64 // negative means unlimited
	Features    []Feature
}

// Has reports whether the plan grants the feature flag.
func (p Plan) Has(f Feature) bool {
	return slices.Contains(p.Features, f)
}

// LimitFor returns the ceiling the plan grants for the metric.
// Any negative stored value is reported as (Unlimited, true) so callers never
// compare against the sentinel themselves. A metric the plan does not list
// grants nothing (limit 0).
// Panics on a metric outside the closed set: that is a programmer error.
func LimitFor(plan Plan, m Metric) (limit int64, unlimited bool) {
	if !m.Valid() {
		panic(fmt.Sprintf("plans: unknown metric %q", string(m)))
	}
	v, ok := plan.Limits[m]
	if !ok {
		return 0, false
	}
	if v < 0 {
		return Unlimited, true
	}
	return v, false
}

// clone returns a deep copy so catalog internals never alias caller data.
func (p Plan) clone() Plan {
	cp := p
	cp.Limits = maps.Clone(p.Limits)
	cp.Features = slices.Clone(p.Features)
	return cp
}

func (p Plan) validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: plan without ID", ErrInvalidPlanConfiguration)
	}
	for m := range p.Limits {
		if !m.Valid() {
			return fmt.Errorf("%w: plan %s: %w %q", ErrInvalidPlanConfiguration, p.ID, ErrUnknownMetric, m)
		}
	}
	for _, f := range p.Features {
		switch f {
		case FeatureRemoveBranding, FeatureAPIAccess, FeatureExport, FeaturePublicPages:
		default:
			return fmt.Errorf("%w: plan %s: %w %q", ErrInvalidPlanConfiguration, p.ID, ErrUnknownFeature, f)
		}
	}
	return nil
}
