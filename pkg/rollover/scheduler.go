package rollover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/plans"
	"github.com/dmitrymomot/meterkit/pkg/subscription"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

// PlanResolver looks plans up by ID. *plans.Catalog implements it.
type PlanResolver interface {
	Get(id string) (plans.Plan, error)
}

// Tracker is the part of *usage.Tracker the scheduler needs.
type Tracker interface {
	OpenPeriod(ctx context.Context, p usage.OpenParams) (*usage.Tracking, bool, error)
}

// Result summarizes one pass. Processed and Failed count subscriptions,
// Created and Skipped count tracking rows.
type Result struct {
	Processed int
	Failed    int
	Created   int
	Skipped   int
}

// Scheduler runs rollover passes.
type Scheduler struct {
	subs     subscription.Reader
	plans    PlanResolver
	tracker  Tracker
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// NewScheduler creates a Scheduler. All dependencies are required.
func NewScheduler(subs subscription.Reader, resolver PlanResolver, tracker Tracker, opts ...Option) *Scheduler {
	if subs == nil || resolver == nil || tracker == nil {
		panic("rollover: subscription reader, plan resolver and tracker are required")
	}
	s := &Scheduler{
		subs:    subs,
		plans:   resolver,
		tracker: tracker,
		logger:  slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunRollover performs one pass. It only returns an error when the set of
// subscriptions cannot be listed; per-subscription failures are counted in
// Result.Failed. Running it again for the same month creates nothing.
func (s *Scheduler) RunRollover(ctx context.Context) (Result, error) {
	var res Result

	subs, err := s.subs.ListActionable(ctx, subscription.IntervalYearly)
	if err != nil {
		return res, errors.Join(ErrFailedToListSubscriptions, err)
	}

	now := s.now().UTC()
	started := time.Now()

	for i := range subs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		sub := &subs[i]
		created, skipped, err := s.rollSubscription(ctx, sub, now)
		res.Created += created
		res.Skipped += skipped
		if err != nil {
			res.Failed++
			continue
		}
		res.Processed++
	}

	if s.recorder != nil {
		s.recorder.RecordRollover(OutcomeCreated, res.Created)
		s.recorder.RecordRollover(OutcomeSkipped, res.Skipped)
		s.recorder.RecordRollover(OutcomeFailed, res.Failed)
	}

	s.logger.InfoContext(ctx, "rollover pass finished",
		logger.Component("rollover"),
		slog.Int("processed", res.Processed),
		slog.Int("failed", res.Failed),
		slog.Int("created", res.Created),
		slog.Int("skipped", res.Skipped),
		logger.Duration(time.Since(started)))
	return res, nil
}

func (s *Scheduler) rollSubscription(ctx context.Context, sub *subscription.Subscription, now time.Time) (created, skipped int, err error) {
	start, end, ok := usage.TrackingPeriod(sub, now)
	if !ok {
		// billing has not rolled the period forward yet; nothing to track
		s.logger.WarnContext(ctx, "subscription period does not cover now",
			logger.Component("rollover"),
			logger.TeamID(sub.TeamID),
			logger.Period(sub.CurrentPeriodStart, sub.CurrentPeriodEnd))
		return 0, 0, nil
	}

	plan, err := s.plans.Get(sub.PlanID)
	if err != nil {
		s.logFailure(ctx, sub, err)
		return 0, 0, errors.Join(ErrSubscriptionFailed, err)
	}

	var errs []error
	for _, metric := range plans.Metrics() {
		limit, _ := plans.LimitFor(plan, metric)

		_, ok, err := s.tracker.OpenPeriod(ctx, usage.OpenParams{
			TeamID:      sub.TeamID,
			Metric:      metric,
			PeriodStart: start,
			PeriodEnd:   end,
			Limit:       limit,
		})
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", metric, err))
		case ok:
			created++
		default:
			skipped++
		}
	}

	if len(errs) > 0 {
		s.logFailure(ctx, sub, errs...)
		return created, skipped, errors.Join(append([]error{ErrSubscriptionFailed}, errs...)...)
	}

	outcome := OutcomeSkipped
	if created > 0 {
		outcome = OutcomeCreated
	}
	s.logger.DebugContext(ctx, "subscription rolled over",
		logger.Component("rollover"),
		logger.TeamID(sub.TeamID),
		logger.Period(start, end),
		logger.Outcome(outcome))
	return created, skipped, nil
}

func (s *Scheduler) logFailure(ctx context.Context, sub *subscription.Subscription, errs ...error) {
	s.logger.ErrorContext(ctx, "rollover failed for subscription",
		logger.Component("rollover"),
		logger.TeamID(sub.TeamID),
		logger.PlanID(sub.PlanID),
		logger.Outcome(OutcomeFailed),
		logger.Errors(errs...))
}
