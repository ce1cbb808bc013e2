package usage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/plans"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

var (
	april = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	may   = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	june  = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
)

func aprilRow(teamID uuid.UUID, metric plans.Metric) usage.Tracking {
	return usage.Tracking{
		TeamID:      teamID,
		Metric:      metric,
		Limit:       5000,
		PeriodStart: april,
		PeriodEnd:   may,
	}
}

// runStoreSuite checks the Store contract against any implementation.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) usage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("find missing", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		_, err := store.Find(ctx, uuid.New(), plans.MetricAPICalls, april)
		assert.ErrorIs(t, err, usage.ErrTrackingNotFound)
	})

	t.Run("create then find by containment", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		teamID := uuid.New()

		row, created, err := store.Create(ctx, aprilRow(teamID, plans.MetricCompletedResponses))
		require.NoError(t, err)
		require.True(t, created)
		assert.NotEqual(t, uuid.Nil, row.ID)
		assert.Equal(t, int64(5000), row.Limit)
		assert.Equal(t, int64(0), row.Usage)

		for _, at := range []time.Time{april, april.Add(15 * 24 * time.Hour), may.Add(-time.Second)} {
			got, err := store.Find(ctx, teamID, plans.MetricCompletedResponses, at)
			require.NoError(t, err, "at %s", at)
			assert.Equal(t, row.ID, got.ID)
			assert.True(t, got.PeriodStart.Equal(april))
			assert.True(t, got.PeriodEnd.Equal(may))
		}

		_, err = store.Find(ctx, teamID, plans.MetricCompletedResponses, may)
		assert.ErrorIs(t, err, usage.ErrTrackingNotFound, "end is exclusive")

		_, err = store.Find(ctx, teamID, plans.MetricCompletedResponses, april.Add(-time.Second))
		assert.ErrorIs(t, err, usage.ErrTrackingNotFound)

		_, err = store.Find(ctx, teamID, plans.MetricAPICalls, april)
		assert.ErrorIs(t, err, usage.ErrTrackingNotFound, "metrics are independent")
	})

	t.Run("create is idempotent", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		teamID := uuid.New()

		first, created, err := store.Create(ctx, aprilRow(teamID, plans.MetricExports))
		require.NoError(t, err)
		require.True(t, created)

		_, err = store.Add(ctx, teamID, plans.MetricExports, april, 3)
		require.NoError(t, err)

		again := aprilRow(teamID, plans.MetricExports)
		again.Usage = 99
		again.Limit = 1
		second, created, err := store.Create(ctx, again)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, int64(3), second.Usage, "existing row is returned unchanged")
		assert.Equal(t, int64(5000), second.Limit)
	})

	t.Run("adjacent periods do not overlap", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		teamID := uuid.New()

		_, _, err := store.Create(ctx, aprilRow(teamID, plans.MetricAPICalls))
		require.NoError(t, err)

		next := aprilRow(teamID, plans.MetricAPICalls)
		next.PeriodStart, next.PeriodEnd = may, june
		_, created, err := store.Create(ctx, next)
		require.NoError(t, err)
		assert.True(t, created)

		got, err := store.Find(ctx, teamID, plans.MetricAPICalls, may)
		require.NoError(t, err)
		assert.True(t, got.PeriodStart.Equal(may))
	})

	t.Run("overlapping period is rejected", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		teamID := uuid.New()

		_, _, err := store.Create(ctx, aprilRow(teamID, plans.MetricProjects))
		require.NoError(t, err)

		mid := aprilRow(teamID, plans.MetricProjects)
		mid.PeriodStart = april.AddDate(0, 0, 14)
		mid.PeriodEnd = may.AddDate(0, 0, 14)
		_, _, err = store.Create(ctx, mid)
		assert.ErrorIs(t, err, usage.ErrPeriodOverlap)

		before := aprilRow(teamID, plans.MetricProjects)
		before.PeriodStart = april.AddDate(0, 0, -10)
		before.PeriodEnd = april.AddDate(0, 0, 1)
		_, _, err = store.Create(ctx, before)
		assert.ErrorIs(t, err, usage.ErrPeriodOverlap)
	})

	t.Run("add without row", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		_, err := store.Add(ctx, uuid.New(), plans.MetricAPICalls, april, 1)
		assert.ErrorIs(t, err, usage.ErrTrackingNotFound)
	})

	t.Run("add floors at zero", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		teamID := uuid.New()

		row := aprilRow(teamID, plans.MetricActiveSurveys)
		row.Usage = 2
		_, _, err := store.Create(ctx, row)
		require.NoError(t, err)

		n, err := store.Add(ctx, teamID, plans.MetricActiveSurveys, april, -1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = store.Add(ctx, teamID, plans.MetricActiveSurveys, april, -5)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		got, err := store.Find(ctx, teamID, plans.MetricActiveSurveys, april)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.Usage)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		teamID := uuid.New()
		_, _, err := store.Create(ctx, aprilRow(teamID, plans.MetricCompletedResponses))
		require.NoError(t, err)

		const workers = 200
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seen = make(map[int64]bool, workers)
			errs []error
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := store.Add(ctx, teamID, plans.MetricCompletedResponses, april.Add(time.Hour), 1)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				seen[n] = true
			}()
		}
		wg.Wait()

		require.Empty(t, errs)
		assert.Len(t, seen, workers, "every increment observed a distinct value")

		got, err := store.Find(ctx, teamID, plans.MetricCompletedResponses, april)
		require.NoError(t, err)
		assert.Equal(t, int64(workers), got.Usage)
	})

	t.Run("concurrent creates yield one row", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		teamID := uuid.New()

		const callers = 20
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			ids     = make(map[uuid.UUID]bool)
			created int
			errs    []error
		)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				row, ok, err := store.Create(ctx, aprilRow(teamID, plans.MetricAPICalls))
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				ids[row.ID] = true
				if ok {
					created++
				}
			}()
		}
		wg.Wait()

		require.Empty(t, errs)
		assert.Len(t, ids, 1)
		assert.Equal(t, 1, created)
	})
}
