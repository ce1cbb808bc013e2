package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Reader is the read-only view the metering engine depends on.
type Reader interface {
	// Get retrieves a subscription by team ID.
	// Returns ErrSubscriptionNotFound if no subscription exists.
	Get(ctx context.Context, teamID uuid.UUID) (*Subscription, error)

	// ListActionable returns every trialing or active subscription billed on
	// the given interval.
	ListActionable(ctx context.Context, interval Interval) ([]Subscription, error)
}

// Store adds the write side used by the billing collaborator.
type Store interface {
	Reader

	// Save creates or updates a subscription keyed by TeamID.
	Save(ctx context.Context, sub *Subscription) error
}
