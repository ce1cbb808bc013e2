package usage

import (
	"time"

	"github.com/dmitrymomot/meterkit/pkg/subscription"
)

// MonthWindow returns the UTC calendar month containing t as [start, end).
func MonthWindow(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Clamp intersects [start, end) with [lo, hi). ok is false when the
// intersection is empty.
func Clamp(start, end, lo, hi time.Time) (time.Time, time.Time, bool) {
	if start.Before(lo) {
		start = lo
	}
	if end.After(hi) {
		end = hi
	}
	return start, end, start.Before(end)
}

// TrackingPeriod returns the tracking period of sub that contains now.
//
// Monthly subscriptions are tracked over their billing period. Yearly ones
// are tracked per calendar month, clamped to the billing period so a partial
// first or last month never reaches outside what was paid for.
// ok is false when now lies outside the billing period.
func TrackingPeriod(sub *subscription.Subscription, now time.Time) (start, end time.Time, ok bool) {
	lo, hi := sub.CurrentPeriodStart.UTC(), sub.CurrentPeriodEnd.UTC()
	now = now.UTC()
	if now.Before(lo) || !now.Before(hi) {
		return time.Time{}, time.Time{}, false
	}

	if !sub.IsYearly() {
		return lo, hi, true
	}

	monthStart, monthEnd := MonthWindow(now)
	return Clamp(monthStart, monthEnd, lo, hi)
}
