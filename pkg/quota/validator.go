package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/plans"
	"github.com/dmitrymomot/meterkit/pkg/subscription"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

// SubscriptionReader resolves a team's subscription.
// *subscription.PGStore and *subscription.MemoryStore implement it.
type SubscriptionReader interface {
	Get(ctx context.Context, teamID uuid.UUID) (*subscription.Subscription, error)
}

// PlanResolver looks plans up by ID. *plans.Catalog implements it.
type PlanResolver interface {
	Get(id string) (plans.Plan, error)
}

// Tracker is the part of *usage.Tracker the validator needs.
type Tracker interface {
	CurrentUsage(ctx context.Context, teamID uuid.UUID, metric plans.Metric, asOf time.Time) (*usage.Tracking, error)
	OpenPeriod(ctx context.Context, p usage.OpenParams) (*usage.Tracking, bool, error)
}

// Validator answers whether a team may perform a gated action.
type Validator struct {
	subs     SubscriptionReader
	plans    PlanResolver
	tracker  Tracker
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// NewValidator creates a Validator. All dependencies are required.
func NewValidator(subs SubscriptionReader, resolver PlanResolver, tracker Tracker, opts ...Option) *Validator {
	if subs == nil || resolver == nil || tracker == nil {
		panic("quota: subscription reader, plan resolver and tracker are required")
	}
	v := &Validator{
		subs:    subs,
		plans:   resolver,
		tracker: tracker,
		logger:  slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate decides whether teamID may perform action now.
//
// Decisions (admit or deny with a Code) come back with a nil error. A
// missing plan returns a Result with CodeInvalidPlan together with
// ErrInvalidPlan. Storage faults return usage.ErrStorageUnavailable and a
// nil Result: callers must never treat a fault as admit.
func (v *Validator) Validate(ctx context.Context, teamID uuid.UUID, action Action) (*Result, error) {
	if teamID == uuid.Nil {
		return nil, ErrMissingTeamID
	}
	metric, feature, ok := action.Requirement()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	now := v.now().UTC()
	res := &Result{Action: action, Metric: metric}

	sub, err := v.subscription(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if code, msg := standing(sub, now); code != CodeNone {
		return v.deny(ctx, teamID, res, code, msg), nil
	}
	res.PlanID = sub.PlanID

	plan, err := v.plans.Get(sub.PlanID)
	if err != nil {
		res.Code = CodeInvalidPlan
		res.Message = msgInvalidPlan
		v.record(action, res.Code)
		v.logger.ErrorContext(ctx, "subscription references unknown plan",
			logger.Component("quota"),
			logger.TeamID(teamID),
			logger.PlanID(sub.PlanID),
			logger.Action(action),
			logger.Error(err))
		return res, errors.Join(ErrInvalidPlan, err)
	}

	if feature != "" && !plan.Has(feature) {
		return v.deny(ctx, teamID, res, CodeValidationError, featureMessage(feature)), nil
	}

	if metric == "" {
		res.Usage = NewUsage(0, plans.Unlimited, true)
		return v.admit(ctx, teamID, res), nil
	}

	limit, unlimited := plans.LimitFor(plan, metric)
	row, err := v.currentRow(ctx, sub, metric, limit, now)
	if err != nil {
		v.logger.ErrorContext(ctx, "usage lookup failed",
			logger.Component("quota"),
			logger.TeamID(teamID),
			logger.PlanID(sub.PlanID),
			logger.Metric(metric),
			logger.Error(err))
		return nil, err
	}

	res.Usage = NewUsage(row.Usage, limit, unlimited)
	if unlimited || row.Usage < limit {
		return v.admit(ctx, teamID, res), nil
	}
	return v.deny(ctx, teamID, res, CodeUsageLimitExceeded, limitMessage(metric, res.Usage)), nil
}

// Overview returns the usage block of every metric for the team's current
// period. Metrics without a tracking row yet report zero usage. Overview
// never creates rows.
func (v *Validator) Overview(ctx context.Context, teamID uuid.UUID) (map[plans.Metric]Usage, error) {
	if teamID == uuid.Nil {
		return nil, ErrMissingTeamID
	}

	now := v.now().UTC()
	sub, err := v.subscription(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if code, _ := standing(sub, now); code != CodeNone {
		return nil, fmt.Errorf("%w: %s", ErrNoActiveSubscription, code)
	}

	plan, err := v.plans.Get(sub.PlanID)
	if err != nil {
		return nil, errors.Join(ErrInvalidPlan, err)
	}

	out := make(map[plans.Metric]Usage, len(plans.Metrics()))
	for _, metric := range plans.Metrics() {
		limit, unlimited := plans.LimitFor(plan, metric)

		var current int64
		row, err := v.tracker.CurrentUsage(ctx, teamID, metric, now)
		switch {
		case errors.Is(err, usage.ErrTrackingNotFound):
		case err != nil:
			return nil, err
		default:
			current = row.Usage
		}
		out[metric] = NewUsage(current, limit, unlimited)
	}
	return out, nil
}

// subscription returns nil without error when the team has none.
func (v *Validator) subscription(ctx context.Context, teamID uuid.UUID) (*subscription.Subscription, error) {
	sub, err := v.subs.Get(ctx, teamID)
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		return nil, nil
	case err != nil:
		v.logger.ErrorContext(ctx, "subscription lookup failed",
			logger.Component("quota"),
			logger.TeamID(teamID),
			logger.Error(err))
		return nil, errors.Join(usage.ErrStorageUnavailable, err)
	}
	return sub, nil
}

// standing maps a subscription to the code that blocks every action, or
// CodeNone when plan limits apply.
func standing(sub *subscription.Subscription, now time.Time) (Code, string) {
	switch {
	case sub == nil:
		return CodeNoActiveSubscription, msgNoSubscription
	case sub.Status == subscription.StatusExpired:
		return CodeSubscriptionExpired, expiredMessage(sub.CurrentPeriodEnd)
	case !sub.IsActionable():
		return CodeNoActiveSubscription, msgNoSubscription
	case sub.Lapsed(now):
		return CodeSubscriptionExpired, expiredMessage(sub.CurrentPeriodEnd)
	case now.Before(sub.CurrentPeriodStart):
		return CodeNoActiveSubscription, msgNoSubscription
	}
	return CodeNone, ""
}

// currentRow returns the tracking row containing now, opening it when the
// period has just started and the scheduler has not reached it yet. Opening
// goes through the same tracker path as the scheduler, so gauge seeding does
// not depend on which of the two runs first.
func (v *Validator) currentRow(ctx context.Context, sub *subscription.Subscription, metric plans.Metric, limit int64, now time.Time) (*usage.Tracking, error) {
	row, err := v.tracker.CurrentUsage(ctx, sub.TeamID, metric, now)
	if !errors.Is(err, usage.ErrTrackingNotFound) {
		return row, err
	}

	start, end, ok := usage.TrackingPeriod(sub, now)
	if !ok {
		return nil, fmt.Errorf("%w: no tracking period for team %s at %s", usage.ErrInvalidPeriod, sub.TeamID, now)
	}

	row, _, err = v.tracker.OpenPeriod(ctx, usage.OpenParams{
		TeamID:      sub.TeamID,
		Metric:      metric,
		PeriodStart: start,
		PeriodEnd:   end,
		Limit:       limit,
	})
	return row, err
}

func (v *Validator) admit(ctx context.Context, teamID uuid.UUID, res *Result) *Result {
	res.Admitted = true
	v.record(res.Action, CodeNone)
	v.logger.DebugContext(ctx, "action admitted",
		logger.TeamID(teamID),
		logger.Action(res.Action),
		logger.Metric(res.Metric),
		slog.Int64("usage", res.Usage.Current),
		slog.Int64("limit", res.Usage.Limit))
	return res
}

func (v *Validator) deny(ctx context.Context, teamID uuid.UUID, res *Result, code Code, msg string) *Result {
	res.Admitted = false
	res.Code = code
	res.Message = msg
	v.record(res.Action, code)
	v.logger.InfoContext(ctx, "action denied",
		logger.TeamID(teamID),
		logger.PlanID(res.PlanID),
		logger.Action(res.Action),
		logger.Code(code),
		logger.Metric(res.Metric))
	return res
}

func (v *Validator) record(action Action, code Code) {
	if v.recorder != nil {
		v.recorder.RecordDecision(action, code)
	}
}
