package subscription

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the normalized billing event type.
// Each provider parser maps its own events onto these.
type EventType string

const (
	EventSubscriptionCreated  EventType = "subscription_created"
	EventSubscriptionUpdated  EventType = "subscription_updated"
	EventSubscriptionCanceled EventType = "subscription_canceled"
	EventSubscriptionResumed  EventType = "subscription_resumed"
	EventPaymentFailed        EventType = "payment_failed"
)

// Event is a normalized billing event carrying the subscription state the
// provider reported.
type Event struct {
	Type           EventType
	ProviderEvent  string // original provider event name
	SubscriptionID string // provider's subscription ID
	TeamID         uuid.UUID
	PlanID         string // provider price ID, equal to the catalog plan ID
	Status         Status
	Interval       Interval
	PeriodStart    time.Time
	PeriodEnd      time.Time
	OccurredAt     time.Time
}
