package rollover

import (
	"log/slog"
	"time"
)

// Recorder observes rollover outcomes.
type Recorder interface {
	RecordRollover(outcome string, n int)
}

// Outcome labels passed to Recorder.
const (
	OutcomeCreated = "created"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRecorder registers a Recorder notified after each pass.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) {
		s.recorder = r
	}
}
