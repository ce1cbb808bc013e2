package rollover_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/plans"
	"github.com/dmitrymomot/meterkit/pkg/rollover"
	"github.com/dmitrymomot/meterkit/pkg/subscription"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var proYearly = plans.Plan{
	ID:   "pro_yearly",
	Name: "Pro (yearly)",
	Tier: plans.TierPro,
	Limits: map[plans.Metric]int64{
		plans.MetricActiveSurveys:      10,
		plans.MetricCompletedResponses: 5000,
		plans.MetricAPICalls:           plans.Unlimited,
		plans.MetricExports:            100,
		plans.MetricProjects:           5,
	},
}

type env struct {
	subs    *subscription.MemoryStore
	tracker *usage.Tracker
	catalog *plans.Catalog
}

func newEnv(t *testing.T) env {
	t.Helper()

	catalog, err := plans.NewCatalog(context.Background(), plans.NewInMemSource(proYearly))
	require.NoError(t, err)

	return env{
		subs:    subscription.NewMemoryStore(),
		tracker: usage.NewTracker(usage.NewMemoryStore()),
		catalog: catalog,
	}
}

func (e env) addYearly(t *testing.T, start time.Time, status subscription.Status) uuid.UUID {
	t.Helper()

	sub := &subscription.Subscription{
		TeamID:             uuid.New(),
		PlanID:             proYearly.ID,
		Status:             status,
		Interval:           subscription.IntervalYearly,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.AddDate(1, 0, 0),
	}
	require.NoError(t, e.subs.Save(context.Background(), sub))
	return sub.TeamID
}

func (e env) scheduler(now time.Time, opts ...rollover.Option) *rollover.Scheduler {
	opts = append(opts, rollover.WithClock(func() time.Time { return now }))
	return rollover.NewScheduler(e.subs, e.catalog, e.tracker, opts...)
}

func TestRunRollover_ClampsToBillingPeriod(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	teamID := e.addYearly(t, date(2025, 3, 15), subscription.StatusActive)

	res, err := e.scheduler(date(2025, 3, 20)).RunRollover(ctx)
	require.NoError(t, err)
	assert.Equal(t, rollover.Result{Processed: 1, Created: len(plans.Metrics())}, res)

	march, err := e.tracker.CurrentUsage(ctx, teamID, plans.MetricCompletedResponses, date(2025, 3, 20))
	require.NoError(t, err)
	assert.Equal(t, date(2025, 3, 15), march.PeriodStart)
	assert.Equal(t, date(2025, 4, 1), march.PeriodEnd)
	assert.Equal(t, int64(5000), march.Limit)

	_, err = e.scheduler(date(2025, 4, 2)).RunRollover(ctx)
	require.NoError(t, err)

	aprilRow, err := e.tracker.CurrentUsage(ctx, teamID, plans.MetricCompletedResponses, date(2025, 4, 30))
	require.NoError(t, err)
	assert.Equal(t, date(2025, 4, 1), aprilRow.PeriodStart)
	assert.Equal(t, date(2025, 5, 1), aprilRow.PeriodEnd)
	assert.NotEqual(t, march.ID, aprilRow.ID)

	api, err := e.tracker.CurrentUsage(ctx, teamID, plans.MetricAPICalls, date(2025, 4, 2))
	require.NoError(t, err)
	assert.Equal(t, plans.Unlimited, api.Limit)
}

func TestRunRollover_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	active := e.addYearly(t, date(2025, 1, 1), subscription.StatusActive)
	trialing := e.addYearly(t, date(2025, 2, 10), subscription.StatusTrialing)
	canceled := e.addYearly(t, date(2025, 1, 1), subscription.StatusCanceled)

	// The live count changes between passes; a second pass must not reseed.
	var published atomic.Int64
	published.Store(4)
	require.NoError(t, e.tracker.RegisterGauge(plans.MetricActiveSurveys, func(context.Context, uuid.UUID) (int64, error) {
		return published.Add(1), nil
	}))

	now := date(2025, 6, 10)
	sched := e.scheduler(now)
	metrics := len(plans.Metrics())

	first, err := sched.RunRollover(ctx)
	require.NoError(t, err)
	assert.Equal(t, rollover.Result{Processed: 2, Created: 2 * metrics}, first)
	before := e.snapshot(t, now, active, trialing, canceled)
	require.Len(t, before, 2*metrics)

	second, err := sched.RunRollover(ctx)
	require.NoError(t, err)
	assert.Equal(t, rollover.Result{Processed: 2, Skipped: 2 * metrics}, second)
	assert.Equal(t, before, e.snapshot(t, now, active, trialing, canceled))
}

type rowKey struct {
	team   uuid.UUID
	metric plans.Metric
}

type rowState struct {
	id         uuid.UUID
	start, end time.Time
	usage      int64
	limit      int64
}

// snapshot collects the rows covering at and the instant before its month,
// for every metric of the given teams.
func (e env) snapshot(t *testing.T, at time.Time, teams ...uuid.UUID) map[rowKey]rowState {
	t.Helper()

	monthStart, _ := usage.MonthWindow(at)
	out := make(map[rowKey]rowState)
	for _, team := range teams {
		for _, metric := range plans.Metrics() {
			_, err := e.tracker.CurrentUsage(context.Background(), team, metric, monthStart.Add(-time.Nanosecond))
			require.ErrorIs(t, err, usage.ErrTrackingNotFound)

			row, err := e.tracker.CurrentUsage(context.Background(), team, metric, at)
			if errors.Is(err, usage.ErrTrackingNotFound) {
				continue
			}
			require.NoError(t, err)
			out[rowKey{team, metric}] = rowState{row.ID, row.PeriodStart, row.PeriodEnd, row.Usage, row.Limit}
		}
	}
	return out
}

func TestRunRollover_SeedsGauges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	teamID := e.addYearly(t, date(2025, 1, 1), subscription.StatusActive)

	sched := e.scheduler(date(2025, 5, 3))
	require.NoError(t, e.tracker.RegisterGauge(plans.MetricActiveSurveys, func(_ context.Context, id uuid.UUID) (int64, error) {
		if id == teamID {
			return 7, nil
		}
		return 0, nil
	}))

	_, err := sched.RunRollover(ctx)
	require.NoError(t, err)

	surveys, err := e.tracker.CurrentUsage(ctx, teamID, plans.MetricActiveSurveys, date(2025, 5, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(7), surveys.Usage)

	responses, err := e.tracker.CurrentUsage(ctx, teamID, plans.MetricCompletedResponses, date(2025, 5, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(0), responses.Usage)
}

func TestRunRollover_CarriesGaugeWithoutCounter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	teamID := e.addYearly(t, date(2025, 1, 1), subscription.StatusActive)

	_, err := e.scheduler(date(2025, 4, 15)).RunRollover(ctx)
	require.NoError(t, err)

	_, err = e.tracker.Increment(ctx, teamID, plans.MetricProjects, 3, date(2025, 4, 20))
	require.NoError(t, err)
	_, err = e.tracker.Increment(ctx, teamID, plans.MetricCompletedResponses, 40, date(2025, 4, 20))
	require.NoError(t, err)

	_, err = e.scheduler(date(2025, 5, 1)).RunRollover(ctx)
	require.NoError(t, err)

	projects, err := e.tracker.CurrentUsage(ctx, teamID, plans.MetricProjects, date(2025, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(3), projects.Usage, "gauge carried over")

	responses, err := e.tracker.CurrentUsage(ctx, teamID, plans.MetricCompletedResponses, date(2025, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(0), responses.Usage, "cumulative counter reset")
}

func TestRunRollover_IsolatesFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	healthy := e.addYearly(t, date(2025, 1, 1), subscription.StatusActive)
	broken := e.addYearly(t, date(2025, 1, 1), subscription.StatusActive)

	orphan := &subscription.Subscription{
		TeamID:             uuid.New(),
		PlanID:             "retired_plan",
		Status:             subscription.StatusActive,
		Interval:           subscription.IntervalYearly,
		CurrentPeriodStart: date(2025, 1, 1),
		CurrentPeriodEnd:   date(2026, 1, 1),
	}
	require.NoError(t, e.subs.Save(ctx, orphan))

	sched := e.scheduler(date(2025, 7, 7))
	require.NoError(t, e.tracker.RegisterGauge(plans.MetricActiveSurveys, func(_ context.Context, id uuid.UUID) (int64, error) {
		if id == broken {
			return 0, errors.New("content service down")
		}
		return 1, nil
	}))

	res, err := sched.RunRollover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 2, res.Failed)

	_, err = e.tracker.CurrentUsage(ctx, healthy, plans.MetricActiveSurveys, date(2025, 7, 7))
	assert.NoError(t, err)

	// the broken team still gets rows for metrics that did not fail
	_, err = e.tracker.CurrentUsage(ctx, broken, plans.MetricCompletedResponses, date(2025, 7, 7))
	assert.NoError(t, err)
	_, err = e.tracker.CurrentUsage(ctx, broken, plans.MetricActiveSurveys, date(2025, 7, 7))
	assert.ErrorIs(t, err, usage.ErrTrackingNotFound)
}

func TestRunRollover_SkipsUncoveredPeriod(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	teamID := e.addYearly(t, date(2024, 1, 1), subscription.StatusActive)

	res, err := e.scheduler(date(2025, 2, 1)).RunRollover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rollover.Result{Processed: 1}, res)

	_, err = e.tracker.CurrentUsage(context.Background(), teamID, plans.MetricExports, date(2025, 2, 1))
	assert.ErrorIs(t, err, usage.ErrTrackingNotFound)
}

type listFailure struct{ subscription.Reader }

func (listFailure) ListActionable(context.Context, subscription.Interval) ([]subscription.Subscription, error) {
	return nil, errors.New("connection refused")
}

func TestRunRollover_ListFailure(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	sched := rollover.NewScheduler(listFailure{}, e.catalog, e.tracker)

	_, err := sched.RunRollover(context.Background())
	assert.ErrorIs(t, err, rollover.ErrFailedToListSubscriptions)
}

type outcomeRecorder struct {
	created, skipped, failed atomic.Int64
}

func (r *outcomeRecorder) RecordRollover(outcome string, n int) {
	switch outcome {
	case rollover.OutcomeCreated:
		r.created.Add(int64(n))
	case rollover.OutcomeSkipped:
		r.skipped.Add(int64(n))
	case rollover.OutcomeFailed:
		r.failed.Add(int64(n))
	}
}

func TestRunRollover_Recorder(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.addYearly(t, date(2025, 1, 1), subscription.StatusActive)

	rec := &outcomeRecorder{}
	sched := e.scheduler(date(2025, 3, 3), rollover.WithRecorder(rec))

	_, err := sched.RunRollover(context.Background())
	require.NoError(t, err)
	_, err = sched.RunRollover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(len(plans.Metrics())), rec.created.Load())
	assert.Equal(t, int64(len(plans.Metrics())), rec.skipped.Load())
	assert.Equal(t, int64(0), rec.failed.Load())
}

func TestRunRollover_AfterLazyCreation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	teamID := e.addYearly(t, date(2025, 3, 15), subscription.StatusActive)
	require.NoError(t, e.tracker.RegisterGauge(plans.MetricActiveSurveys, func(context.Context, uuid.UUID) (int64, error) {
		return 10, nil
	}))

	// A validation at 00:01 opened May before the daily pass ran.
	now := date(2025, 5, 1).Add(time.Minute)
	row, created, err := e.tracker.OpenPeriod(ctx, usage.OpenParams{
		TeamID:      teamID,
		Metric:      plans.MetricActiveSurveys,
		PeriodStart: date(2025, 5, 1),
		PeriodEnd:   date(2025, 6, 1),
		Limit:       10,
	})
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, int64(10), row.Usage)

	res, err := e.scheduler(now).RunRollover(ctx)
	require.NoError(t, err)
	assert.Equal(t, rollover.Result{Processed: 1, Created: len(plans.Metrics()) - 1, Skipped: 1}, res)

	after, err := e.tracker.CurrentUsage(ctx, teamID, plans.MetricActiveSurveys, now)
	require.NoError(t, err)
	assert.Equal(t, row.ID, after.ID)
	assert.Equal(t, int64(10), after.Usage)
}

func TestRunRollover_MovedAnchor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	teamID := e.addYearly(t, date(2025, 1, 1), subscription.StatusActive)

	_, err := e.scheduler(date(2025, 4, 3)).RunRollover(ctx)
	require.NoError(t, err)
	_, err = e.tracker.Increment(ctx, teamID, plans.MetricProjects, 2, date(2025, 4, 3))
	require.NoError(t, err)

	// Billing re-anchored the year to start mid-April.
	require.NoError(t, e.subs.Save(ctx, &subscription.Subscription{
		TeamID:             teamID,
		PlanID:             proYearly.ID,
		Status:             subscription.StatusActive,
		Interval:           subscription.IntervalYearly,
		CurrentPeriodStart: date(2025, 4, 12),
		CurrentPeriodEnd:   date(2026, 4, 12),
	}))

	res, err := e.scheduler(date(2025, 4, 20)).RunRollover(ctx)
	require.NoError(t, err)
	assert.Equal(t, rollover.Result{Processed: 1, Skipped: len(plans.Metrics())}, res)

	res, err = e.scheduler(date(2025, 5, 1)).RunRollover(ctx)
	require.NoError(t, err)
	assert.Equal(t, rollover.Result{Processed: 1, Created: len(plans.Metrics())}, res)

	projects, err := e.tracker.CurrentUsage(ctx, teamID, plans.MetricProjects, date(2025, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, date(2025, 5, 1), projects.PeriodStart)
	assert.Equal(t, int64(2), projects.Usage)
}

func TestRunRollover_LogsFailureOutcome(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	require.NoError(t, e.subs.Save(context.Background(), &subscription.Subscription{
		TeamID:             uuid.New(),
		PlanID:             "retired_plan",
		Status:             subscription.StatusActive,
		Interval:           subscription.IntervalYearly,
		CurrentPeriodStart: date(2025, 1, 1),
		CurrentPeriodEnd:   date(2026, 1, 1),
	}))

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf))
	res, err := e.scheduler(date(2025, 2, 2), rollover.WithLogger(log)).RunRollover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	var failure map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "rollover failed for subscription" {
			failure = entry
		}
	}
	require.NotNil(t, failure)
	assert.Equal(t, rollover.OutcomeFailed, failure["outcome"])
	assert.Contains(t, failure, "errors")
}
