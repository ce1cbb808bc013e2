package rollover

import (
	"fmt"
	"time"
)

// Schedule determines when the next pass should run.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

type dailySchedule struct {
	hour   int
	minute int
}

func (s dailySchedule) Next(from time.Time) time.Time {
	from = from.UTC()
	next := time.Date(from.Year(), from.Month(), from.Day(), s.hour, s.minute, 0, 0, time.UTC)
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d UTC", s.hour, s.minute)
}

type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

// DailyAt runs once a day at hour:minute UTC. Out-of-range values are
// clamped.
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: min(max(hour, 0), 23), minute: min(max(minute, 0), 59)}
}

// Every runs at a fixed interval. Mostly useful in tests and local setups.
func Every(d time.Duration) Schedule {
	if d <= 0 {
		d = time.Minute
	}
	return intervalSchedule{every: d}
}
