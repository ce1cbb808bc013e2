// Package rollover guarantees that every active or trialing yearly
// subscription has a tracking row for the current calendar month.
//
// Scheduler.RunRollover does one idempotent pass over all such
// subscriptions. For each one it computes the month window clamped to the
// billing period and opens a row per metric through usage.Tracker.OpenPeriod,
// which seeds gauge metrics from the tracker's registered GaugeFunc. A
// failing subscription is logged and counted; the pass continues.
//
// Runner calls RunRollover on a Schedule, normally DailyAt:
//
//	_ = tracker.RegisterGauge(plans.MetricActiveSurveys, countPublishedSurveys)
//	sched := rollover.NewScheduler(subs, catalog, tracker)
//	runner := rollover.NewRunner(sched, rollover.DailyAt(0, 5))
//	go runner.Start(ctx)
//
// Monthly subscriptions need no pass: their tracking period is the billing
// period and it is created on first validation.
package rollover
