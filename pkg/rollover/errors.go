package rollover

import "errors"

var (
	ErrFailedToListSubscriptions = errors.New("rollover.errors.failed_to_list_subscriptions")
	ErrSubscriptionFailed        = errors.New("rollover.errors.subscription_failed")
)
