package usage_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/meterkit/pkg/subscription"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMonthWindow(t *testing.T) {
	t.Parallel()

	start, end := usage.MonthWindow(time.Date(2025, 4, 30, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, date(2025, 4, 1), start)
	assert.Equal(t, date(2025, 5, 1), end)

	start, end = usage.MonthWindow(time.Date(2025, 12, 31, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, date(2025, 12, 1), start)
	assert.Equal(t, date(2026, 1, 1), end)

	// 2025-03-01 01:00 in UTC+3 is still February in UTC
	kyiv := time.FixedZone("UTC+3", 3*60*60)
	start, _ = usage.MonthWindow(time.Date(2025, 3, 1, 1, 0, 0, 0, kyiv))
	assert.Equal(t, date(2025, 2, 1), start)
}

func TestTrackingPeriod(t *testing.T) {
	t.Parallel()

	yearly := &subscription.Subscription{
		TeamID:             uuid.New(),
		Interval:           subscription.IntervalYearly,
		CurrentPeriodStart: date(2025, 3, 15),
		CurrentPeriodEnd:   date(2026, 3, 15),
	}
	monthly := &subscription.Subscription{
		TeamID:             uuid.New(),
		Interval:           subscription.IntervalMonthly,
		CurrentPeriodStart: date(2025, 4, 10),
		CurrentPeriodEnd:   date(2025, 5, 10),
	}

	tests := []struct {
		name      string
		sub       *subscription.Subscription
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
		wantOK    bool
	}{
		{"yearly partial first month", yearly, date(2025, 3, 20), date(2025, 3, 15), date(2025, 4, 1), true},
		{"yearly full month", yearly, date(2025, 4, 10), date(2025, 4, 1), date(2025, 5, 1), true},
		{"yearly partial last month", yearly, date(2026, 3, 5), date(2026, 3, 1), date(2026, 3, 15), true},
		{"yearly after end", yearly, date(2026, 3, 15), time.Time{}, time.Time{}, false},
		{"yearly before start", yearly, date(2025, 3, 14), time.Time{}, time.Time{}, false},
		{"monthly uses billing period", monthly, date(2025, 5, 1), date(2025, 4, 10), date(2025, 5, 10), true},
		{"monthly lapsed", monthly, date(2025, 5, 10), time.Time{}, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			start, end, ok := usage.TrackingPeriod(tt.sub, tt.now)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantStart, start)
				assert.Equal(t, tt.wantEnd, end)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	t.Parallel()

	_, _, ok := usage.Clamp(date(2025, 1, 1), date(2025, 2, 1), date(2025, 3, 1), date(2025, 4, 1))
	assert.False(t, ok)

	start, end, ok := usage.Clamp(date(2025, 1, 1), date(2025, 2, 1), date(2025, 1, 10), date(2025, 1, 20))
	assert.True(t, ok)
	assert.Equal(t, date(2025, 1, 10), start)
	assert.Equal(t, date(2025, 1, 20), end)
}
