package quota

import (
	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// Code is the machine-readable reason attached to a decision.
type Code string

const (
	CodeNone                 Code = ""
	CodeNoActiveSubscription Code = "NO_ACTIVE_SUBSCRIPTION"
	CodeUsageLimitExceeded   Code = "USAGE_LIMIT_EXCEEDED"
	CodeValidationError      Code = "VALIDATION_ERROR"
	CodeSubscriptionExpired  Code = "SUBSCRIPTION_EXPIRED"
	CodeInvalidPlan          Code = "INVALID_PLAN"
)

// Result is the answer to Validate.
type Result struct {
	Admitted bool         `json:"admitted"`
	Code     Code         `json:"error_code,omitempty"`
	Action   Action       `json:"action"`
	Metric   plans.Metric `json:"metric,omitempty"`
	PlanID   string       `json:"plan_id,omitempty"`
	Usage    Usage        `json:"usage"`
	Message  string       `json:"message,omitempty"`
}

// Usage describes consumption of one metric in the current period.
// Remaining is plans.Unlimited and PercentageUsed is -1 for unlimited plans.
// OverLimit is set only when consumption exceeds the limit, e.g. after a
// downgrade. A team sitting exactly at its limit is denied but not over it.
type Usage struct {
	Current        int64 `json:"current"`
	Limit          int64 `json:"limit"`
	Remaining      int64 `json:"remaining"`
	PercentageUsed int   `json:"percentage_used"`
	OverLimit      bool  `json:"over_limit"`
	Unlimited      bool  `json:"unlimited"`
}

// NewUsage builds the usage block for current consumption against limit.
func NewUsage(current, limit int64, unlimited bool) Usage {
	if unlimited {
		return Usage{
			Current:        current,
			Limit:          plans.Unlimited,
			Remaining:      plans.Unlimited,
			PercentageUsed: -1,
			Unlimited:      true,
		}
	}

	u := Usage{
		Current:   current,
		Limit:     limit,
		Remaining: max(limit-current, 0),
		OverLimit: current > limit,
	}
	if limit <= 0 {
		u.PercentageUsed = 100
	} else {
		u.PercentageUsed = int(min(current*100/limit, 100))
	}
	return u
}
