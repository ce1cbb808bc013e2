package subscription

// Status represents the lifecycle state of a subscription.
type Status string

const (
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusExpired  Status = "expired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusPastDue, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

// Interval represents the billing frequency of a subscription.
type Interval string

const (
	IntervalMonthly Interval = "monthly"
	IntervalYearly  Interval = "yearly"
)

// Valid reports whether i is a known interval.
func (i Interval) Valid() bool {
	return i == IntervalMonthly || i == IntervalYearly
}
