package usage

import (
	"log/slog"

	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// Recorder observes applied increments.
type Recorder interface {
	RecordIncrement(metric plans.Metric, delta int64)
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithRecorder registers a Recorder notified after each successful increment.
func WithRecorder(r Recorder) TrackerOption {
	return func(t *Tracker) {
		t.recorder = r
	}
}

// WithRetry overrides the retry policy for ErrStorageUnavailable.
// maxRetries of zero disables retries.
func WithRetry(cfg Config) TrackerOption {
	return func(t *Tracker) {
		t.maxRetries = cfg.MaxRetries
		if cfg.RetryBaseDelay > 0 {
			t.baseDelay = cfg.RetryBaseDelay
		}
		if cfg.RetryMaxDelay > 0 {
			t.maxDelay = cfg.RetryMaxDelay
		}
	}
}
