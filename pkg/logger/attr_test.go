package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/logger"
)

func TestGroup(t *testing.T) {
	attr := logger.Group("req", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "req", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestErrors(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	empty := logger.Errors(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	empty := logger.Error(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestTeamID(t *testing.T) {
	attr := logger.TeamID("team-1")
	require.Equal(t, "team_id", attr.Key)
	assert.Equal(t, "team-1", attr.Value.Any())

	assert.True(t, logger.TeamID(nil).Equal(slog.Attr{}))
}

func TestDomainAttrs(t *testing.T) {
	type metric string
	type action string

	assert.Equal(t, slog.String("plan_id", "pro"), logger.PlanID("pro"))
	assert.Equal(t, slog.String("metric", "api_calls"), logger.Metric(metric("api_calls")))
	assert.Equal(t, slog.String("action", "create_survey"), logger.Action(action("create_survey")))
	assert.Equal(t, slog.String("code", "LIMIT_REACHED"), logger.Code("LIMIT_REACHED"))
	assert.Equal(t, slog.String("outcome", "created"), logger.Outcome("created"))
}

func TestPeriod(t *testing.T) {
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	attr := logger.Period(start, end)
	require.Equal(t, "period", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, start, g[0].Value.Time())
	assert.Equal(t, end, g[1].Value.Time())
}

func TestRequestID(t *testing.T) {
	attr := logger.RequestID("abc")
	require.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "abc", attr.Value.Any())
}
