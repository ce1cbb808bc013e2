package quota

import (
	"log/slog"
	"time"
)

// Recorder observes every decision Validate returns. Faults are recorded
// with the code they carry, CodeNone for admits.
type Recorder interface {
	RecordDecision(action Action, code Code)
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// WithRecorder registers a Recorder.
func WithRecorder(r Recorder) Option {
	return func(v *Validator) {
		v.recorder = r
	}
}
