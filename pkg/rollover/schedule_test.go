package rollover_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/meterkit/pkg/rollover"
)

func TestDailyAt(t *testing.T) {
	t.Parallel()

	s := rollover.DailyAt(0, 5)
	assert.Equal(t, "daily at 00:05 UTC", s.String())

	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{"before run time", time.Date(2025, 4, 30, 0, 1, 0, 0, time.UTC), time.Date(2025, 4, 30, 0, 5, 0, 0, time.UTC)},
		{"at run time", time.Date(2025, 4, 30, 0, 5, 0, 0, time.UTC), time.Date(2025, 5, 1, 0, 5, 0, 0, time.UTC)},
		{"after run time", time.Date(2025, 12, 31, 12, 0, 0, 0, time.UTC), time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC)},
		{"non utc input", time.Date(2025, 4, 30, 2, 0, 0, 0, time.FixedZone("UTC+3", 3*3600)), time.Date(2025, 4, 30, 0, 5, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.True(t, tt.want.Equal(s.Next(tt.from)), "got %s", s.Next(tt.from))
		})
	}
}

func TestDailyAt_Clamps(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "daily at 23:59 UTC", rollover.DailyAt(30, 99).String())
}

func TestEvery(t *testing.T) {
	t.Parallel()

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, from.Add(time.Hour), rollover.Every(time.Hour).Next(from))
	assert.Equal(t, from.Add(time.Minute), rollover.Every(0).Next(from))
}
