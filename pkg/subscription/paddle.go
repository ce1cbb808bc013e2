package subscription

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"
)

// PaddleConfig holds configuration for the Paddle webhook parser.
type PaddleConfig struct {
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
}

// PaddleParser turns Paddle webhook deliveries into normalized Events.
// Signature checking is done entirely by the Paddle SDK verifier.
type PaddleParser struct {
	verifier *paddle.WebhookVerifier
}

// NewPaddleParser creates a parser for the given webhook secret.
func NewPaddleParser(cfg PaddleConfig) (*PaddleParser, error) {
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}
	return &PaddleParser{verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret)}, nil
}

// ParseRequest verifies the delivery and decodes it.
func (p *PaddleParser) ParseRequest(req *http.Request) (*Event, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("read webhook body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}
	if !valid {
		return nil, ErrWebhookVerificationFailed
	}

	return DecodePaddleEvent(body)
}

type paddlePayload struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       struct {
		ID             string         `json:"id"`
		SubscriptionID string         `json:"subscription_id"`
		Status         string         `json:"status"`
		CustomData     map[string]any `json:"custom_data"`
		Items          []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
			PriceID string `json:"price_id"`
		} `json:"items"`
		BillingCycle *struct {
			Interval  string `json:"interval"`
			Frequency int    `json:"frequency"`
		} `json:"billing_cycle"`
		CurrentBillingPeriod *struct {
			StartsAt time.Time `json:"starts_at"`
			EndsAt   time.Time `json:"ends_at"`
		} `json:"current_billing_period"`
	} `json:"data"`
}

// DecodePaddleEvent decodes an already verified Paddle payload.
// The team is taken from custom_data.team_id, set at checkout.
func DecodePaddleEvent(payload []byte) (*Event, error) {
	var p paddlePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errors.Join(ErrMalformedWebhook, err)
	}

	evType, ok := mapPaddleEventType(p.EventType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, p.EventType)
	}

	rawTeamID, _ := p.Data.CustomData["team_id"].(string)
	teamID, err := uuid.Parse(rawTeamID)
	if err != nil {
		return nil, errors.Join(ErrMalformedWebhook, fmt.Errorf("invalid team_id %q: %w", rawTeamID, err))
	}

	ev := &Event{
		Type:           evType,
		ProviderEvent:  p.EventType,
		SubscriptionID: p.Data.ID,
		TeamID:         teamID,
		Status:         mapPaddleStatus(p.Data.Status),
		OccurredAt:     p.OccurredAt.UTC(),
	}

	if strings.HasPrefix(p.EventType, "transaction.") {
		ev.SubscriptionID = p.Data.SubscriptionID
		ev.Status = ""
	}

	if len(p.Data.Items) > 0 {
		ev.PlanID = p.Data.Items[0].Price.ID
		if ev.PlanID == "" {
			ev.PlanID = p.Data.Items[0].PriceID
		}
	}

	if bc := p.Data.BillingCycle; bc != nil {
		switch bc.Interval {
		case "month":
			ev.Interval = IntervalMonthly
		case "year":
			ev.Interval = IntervalYearly
		}
	}

	if bp := p.Data.CurrentBillingPeriod; bp != nil {
		ev.PeriodStart = bp.StartsAt.UTC()
		ev.PeriodEnd = bp.EndsAt.UTC()
	}

	return ev, nil
}

func mapPaddleEventType(name string) (EventType, bool) {
	switch name {
	case "subscription.created":
		return EventSubscriptionCreated, true
	case "subscription.updated", "subscription.activated", "subscription.trialing", "subscription.past_due", "subscription.paused":
		return EventSubscriptionUpdated, true
	case "subscription.canceled":
		return EventSubscriptionCanceled, true
	case "subscription.resumed":
		return EventSubscriptionResumed, true
	case "transaction.payment_failed":
		return EventPaymentFailed, true
	default:
		return "", false
	}
}

func mapPaddleStatus(status string) Status {
	switch strings.ToLower(status) {
	case "trialing":
		return StatusTrialing
	case "active":
		return StatusActive
	case "past_due", "paused":
		return StatusPastDue
	case "canceled", "cancelled":
		return StatusCanceled
	case "expired":
		return StatusExpired
	default:
		return Status(status)
	}
}
