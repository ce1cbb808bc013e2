package plans_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/plans"
)

type failingSource struct{ err error }

func (s failingSource) Load(context.Context) (map[string]plans.Plan, error) { return nil, s.err }

type rawSource map[string]plans.Plan

func (s rawSource) Load(context.Context) (map[string]plans.Plan, error) { return s, nil }

func TestNewCatalog(t *testing.T) {
	t.Parallel()

	t.Run("loads and indexes plans", func(t *testing.T) {
		t.Parallel()

		catalog, err := plans.NewCatalog(context.Background(), plans.NewInMemSource(
			plans.Plan{ID: "free", Tier: plans.TierFree, Limits: map[plans.Metric]int64{plans.MetricActiveSurveys: 3}},
			plans.Plan{ID: "pro", Tier: plans.TierPro, Features: []plans.Feature{plans.FeatureExport}},
		))
		require.NoError(t, err)

		plan, err := catalog.Get("free")
		require.NoError(t, err)
		assert.Equal(t, plans.TierFree, plan.Tier)

		all := catalog.All()
		require.Len(t, all, 2)
		assert.Equal(t, "free", all[0].ID)
		assert.Equal(t, "pro", all[1].ID)
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()

		catalog, err := plans.NewCatalog(context.Background(), plans.NewInMemSource(plans.Plan{ID: "free"}))
		require.NoError(t, err)

		_, err = catalog.Get("gold")
		assert.ErrorIs(t, err, plans.ErrPlanNotFound)
	})

	t.Run("source error", func(t *testing.T) {
		t.Parallel()

		_, err := plans.NewCatalog(context.Background(), failingSource{err: errors.New("boom")})
		assert.ErrorIs(t, err, plans.ErrFailedToLoadPlans)
	})

	t.Run("id mismatch", func(t *testing.T) {
		t.Parallel()

		_, err := plans.NewCatalog(context.Background(), rawSource{"a": {ID: "b"}})
		assert.ErrorIs(t, err, plans.ErrInvalidPlanConfiguration)
	})

	t.Run("unknown feature", func(t *testing.T) {
		t.Parallel()

		_, err := plans.NewCatalog(context.Background(), rawSource{"a": {ID: "a", Features: []plans.Feature{"sso"}}})
		assert.ErrorIs(t, err, plans.ErrInvalidPlanConfiguration)
		assert.ErrorIs(t, err, plans.ErrUnknownFeature)
	})

	t.Run("returned plans are copies", func(t *testing.T) {
		t.Parallel()

		catalog, err := plans.NewCatalog(context.Background(), plans.NewInMemSource(
			plans.Plan{ID: "free", Limits: map[plans.Metric]int64{plans.MetricExports: 1}},
		))
		require.NoError(t, err)

		plan, err := catalog.Get("free")
		require.NoError(t, err)
		plan.Limits[plans.MetricExports] = 999

		again, err := catalog.Get("free")
		require.NoError(t, err)
		assert.Equal(t, int64(1), again.Limits[plans.MetricExports])
	})
}

func TestYAMLSource(t *testing.T) {
	t.Parallel()

	t.Run("valid catalog", func(t *testing.T) {
		t.Parallel()

		doc := `
plans:
  - id: pro_monthly
    name: Pro
    tier: pro
    limits:
      active_surveys: 50
      completed_responses: 5000
      api_calls: -1
    features: [export, api_access]
  - id: free
    tier: free
    limits:
      active_surveys: 3
`
		catalog, err := plans.NewCatalog(context.Background(), plans.NewYAMLReaderSource(strings.NewReader(doc)))
		require.NoError(t, err)

		pro, err := catalog.Get("pro_monthly")
		require.NoError(t, err)
		assert.Equal(t, plans.TierPro, pro.Tier)
		assert.True(t, pro.Has(plans.FeatureExport))
		assert.True(t, pro.Has(plans.FeatureAPIAccess))

		limit, unlimited := plans.LimitFor(pro, plans.MetricAPICalls)
		assert.True(t, unlimited)
		assert.Equal(t, plans.Unlimited, limit)

		limit, unlimited = plans.LimitFor(pro, plans.MetricCompletedResponses)
		assert.False(t, unlimited)
		assert.Equal(t, int64(5000), limit)
	})

	t.Run("unknown metric key", func(t *testing.T) {
		t.Parallel()

		doc := "plans:\n  - id: x\n    limits:\n      storage: 5\n"
		_, err := plans.NewCatalog(context.Background(), plans.NewYAMLReaderSource(strings.NewReader(doc)))
		assert.ErrorIs(t, err, plans.ErrUnknownMetric)
	})

	t.Run("duplicate plan", func(t *testing.T) {
		t.Parallel()

		doc := "plans:\n  - id: x\n  - id: x\n"
		_, err := plans.NewCatalog(context.Background(), plans.NewYAMLReaderSource(strings.NewReader(doc)))
		assert.ErrorIs(t, err, plans.ErrInvalidPlanConfiguration)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := plans.NewCatalog(context.Background(), plans.NewYAMLSource("/nonexistent/plans.yaml"))
		assert.ErrorIs(t, err, plans.ErrFailedToLoadPlans)
	})
}

func TestYAMLSource_ShippedCatalog(t *testing.T) {
	t.Parallel()

	catalog, err := plans.NewCatalog(context.Background(), plans.NewYAMLSource("../../configs/plans.yaml"))
	require.NoError(t, err)

	for _, plan := range catalog.All() {
		for _, m := range plans.Metrics() {
			assert.NotPanics(t, func() { plans.LimitFor(plan, m) })
		}
	}

	free, err := catalog.Get("free")
	require.NoError(t, err)
	assert.Empty(t, free.Features)
	limit, _ := plans.LimitFor(free, plans.MetricAPICalls)
	assert.Zero(t, limit)

	enterprise, err := catalog.Get("pri_enterprise_yearly")
	require.NoError(t, err)
	_, unlimited := plans.LimitFor(enterprise, plans.MetricProjects)
	assert.True(t, unlimited)
}
