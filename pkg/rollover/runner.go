package rollover

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/meterkit/pkg/logger"
)

// Config controls the in-process runner.
type Config struct {
	Enabled    bool `env:"ROLLOVER_ENABLED" envDefault:"true"`
	Hour       int  `env:"ROLLOVER_HOUR" envDefault:"0"`
	Minute     int  `env:"ROLLOVER_MINUTE" envDefault:"5"`
	RunOnStart bool `env:"ROLLOVER_RUN_ON_START" envDefault:"true"`
}

// Pass is implemented by *Scheduler.
type Pass interface {
	RunRollover(ctx context.Context) (Result, error)
}

// Runner triggers rollover passes on a Schedule until its context ends.
type Runner struct {
	pass       Pass
	schedule   Schedule
	runOnStart bool
	logger     *slog.Logger
	now        func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunOnStart runs a pass immediately when Start is called, so a process
// started after the scheduled time does not wait a whole day.
func WithRunOnStart(enabled bool) RunnerOption {
	return func(r *Runner) {
		r.runOnStart = enabled
	}
}

// WithRunnerLogger sets the logger. Nil is ignored.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(pass Pass, schedule Schedule, opts ...RunnerOption) *Runner {
	if pass == nil || schedule == nil {
		panic("rollover: pass and schedule are required")
	}
	r := &Runner{
		pass:     pass,
		schedule: schedule,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRunnerFromConfig builds a daily Runner from cfg.
func NewRunnerFromConfig(pass Pass, cfg Config, opts ...RunnerOption) *Runner {
	opts = append([]RunnerOption{WithRunOnStart(cfg.RunOnStart)}, opts...)
	return NewRunner(pass, DailyAt(cfg.Hour, cfg.Minute), opts...)
}

// Start blocks, running passes on schedule. It returns ctx.Err() on
// shutdown. Pass errors are logged and do not stop the runner; the next
// pass retries everything.
func (r *Runner) Start(ctx context.Context) error {
	r.logger.InfoContext(ctx, "rollover runner started",
		logger.Component("rollover"),
		slog.String("schedule", r.schedule.String()))

	if r.runOnStart {
		r.run(ctx)
	}

	for {
		next := r.schedule.Next(r.now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.InfoContext(ctx, "rollover runner shutting down", logger.Component("rollover"))
			return ctx.Err()
		case <-timer.C:
			r.run(ctx)
		}
	}
}

func (r *Runner) run(ctx context.Context) {
	res, err := r.pass.RunRollover(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "rollover pass failed",
			logger.Component("rollover"),
			logger.Error(err))
		return
	}
	if res.Failed > 0 {
		r.logger.WarnContext(ctx, "rollover pass finished with failures",
			logger.Component("rollover"),
			slog.Int("failed", res.Failed))
	}
}
