package metering

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/plans"
	"github.com/dmitrymomot/meterkit/pkg/quota"
	"github.com/dmitrymomot/meterkit/pkg/rollover"
	"github.com/dmitrymomot/meterkit/pkg/subscription"
)

// Validator is implemented by *quota.Validator.
type Validator interface {
	Validate(ctx context.Context, teamID uuid.UUID, action quota.Action) (*quota.Result, error)
	Overview(ctx context.Context, teamID uuid.UUID) (map[plans.Metric]quota.Usage, error)
}

// Incrementer is implemented by *usage.Tracker.
type Incrementer interface {
	Increment(ctx context.Context, teamID uuid.UUID, metric plans.Metric, delta int64, asOf time.Time) (int64, error)
}

// WebhookParser verifies and decodes a billing provider delivery.
// *subscription.PaddleParser implements it.
type WebhookParser interface {
	ParseRequest(r *http.Request) (*subscription.Event, error)
}

// EventApplier is implemented by *subscription.Sync.
type EventApplier interface {
	Apply(ctx context.Context, ev subscription.Event) error
}

// Service serves the metering API.
type Service struct {
	validator Validator
	tracker   Incrementer
	rollover  rollover.Pass
	parser    WebhookParser
	sync      EventApplier
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time used as asOf for increments.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBilling enables the Paddle webhook route.
func WithBilling(parser WebhookParser, sync EventApplier) Option {
	return func(s *Service) {
		s.parser = parser
		s.sync = sync
	}
}

// New creates a Service. Validator, tracker and rollover pass are required.
func New(validator Validator, tracker Incrementer, pass rollover.Pass, opts ...Option) *Service {
	if validator == nil || tracker == nil || pass == nil {
		panic("metering: validator, tracker and rollover pass are required")
	}
	s := &Service{
		validator: validator,
		tracker:   tracker,
		rollover:  pass,
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
