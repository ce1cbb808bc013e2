package quota

import "errors"

var (
	ErrUnknownAction        = errors.New("quota.errors.unknown_action")
	ErrInvalidPlan          = errors.New("quota.errors.invalid_plan")
	ErrNoActiveSubscription = errors.New("quota.errors.no_active_subscription")
	ErrMissingTeamID        = errors.New("quota.errors.missing_team_id")
)
