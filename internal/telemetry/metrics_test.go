package telemetry_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/internal/telemetry"
	"github.com/dmitrymomot/meterkit/pkg/plans"
	"github.com/dmitrymomot/meterkit/pkg/quota"
	"github.com/dmitrymomot/meterkit/pkg/rollover"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

var (
	_ quota.Recorder    = (*telemetry.Metrics)(nil)
	_ usage.Recorder    = (*telemetry.Metrics)(nil)
	_ rollover.Recorder = (*telemetry.Metrics)(nil)
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := telemetry.New()
	m.RecordDecision(quota.ActionSubmitResponse, quota.CodeNone)
	m.RecordDecision(quota.ActionSubmitResponse, quota.CodeUsageLimitExceeded)
	m.RecordDecision(quota.ActionSubmitResponse, quota.CodeUsageLimitExceeded)
	m.RecordIncrement(plans.MetricCompletedResponses, 3)
	m.RecordIncrement(plans.MetricActiveSurveys, -1)
	m.RecordRollover(rollover.OutcomeCreated, 5)
	m.RecordRollover(rollover.OutcomeFailed, 0)

	count, err := testutil.GatherAndCount(m.Registry(),
		telemetry.MetricDecisionsTotal,
		telemetry.MetricIncrementsTotal,
		telemetry.MetricUsageUnitsTotal,
		telemetry.MetricRolloverRowsTotal)
	require.NoError(t, err)
	// 2 decision series, 2 increment series, 1 units series, 1 rollover series.
	assert.Equal(t, 6, count)
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := telemetry.New()
	m.RecordDecision(quota.ActionCallAPI, quota.CodeValidationError)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `meterkit_decisions_total{action="call_api",code="VALIDATION_ERROR"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
