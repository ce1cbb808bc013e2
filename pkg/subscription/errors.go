package subscription

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidSubscription  = errors.New("invalid subscription")
	ErrMissingTeamID        = errors.New("team ID is required")
	ErrUnsupportedEvent     = errors.New("unsupported billing event")
	ErrStaleEvent           = errors.New("billing event is older than stored subscription")

	ErrMissingWebhookSecret      = errors.New("billing provider webhook secret is required")
	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")
	ErrMalformedWebhook          = errors.New("malformed webhook payload")
)
