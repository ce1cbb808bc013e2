package subscription

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Subscription is a team's subscription to a catalog plan.
// Each team has at most one subscription at a time.
type Subscription struct {
	TeamID             uuid.UUID // primary key - one subscription per team
	PlanID             string
	Status             Status
	Interval           Interval
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	ProviderSubID      string // provider's subscription ID (empty for free plans)
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CanceledAt         *time.Time // set when subscription is canceled
}

// IsActionable reports whether plan limits apply to the subscription's
// status: only trialing and active subscriptions can admit gated actions.
func (s *Subscription) IsActionable() bool {
	return s.Status == StatusActive || s.Status == StatusTrialing
}

func (s *Subscription) IsTrialing() bool {
	return s.Status == StatusTrialing
}

func (s *Subscription) IsYearly() bool {
	return s.Interval == IntervalYearly
}

// Lapsed reports whether the current billing period ended before now without
// the billing collaborator rolling it forward.
func (s *Subscription) Lapsed(now time.Time) bool {
	return !now.Before(s.CurrentPeriodEnd)
}

// Validate checks the fields a store requires before persisting.
func (s *Subscription) Validate() error {
	var errs []error
	if s.TeamID == uuid.Nil {
		errs = append(errs, ErrMissingTeamID)
	}
	if s.PlanID == "" {
		errs = append(errs, errors.New("plan ID is required"))
	}
	if !s.Status.Valid() {
		errs = append(errs, fmt.Errorf("unknown status %q", s.Status))
	}
	if !s.Interval.Valid() {
		errs = append(errs, fmt.Errorf("unknown billing interval %q", s.Interval))
	}
	if !s.CurrentPeriodStart.Before(s.CurrentPeriodEnd) {
		errs = append(errs, errors.New("current period start must be before end"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidSubscription}, errs...)...)
	}
	return nil
}
