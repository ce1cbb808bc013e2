package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the slog handler used for output.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Environment profiles understood by Config.Env.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config is the environment-driven logger configuration of meterd.
type Config struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	Service   string `env:"APP_NAME" envDefault:"meterkit"`
	Level     string `env:"LOG_LEVEL"`
	Format    Format `env:"LOG_FORMAT"`
	AddSource bool   `env:"LOG_ADD_SOURCE" envDefault:"false"`
}

// Option tunes the logger built by New.
type Option func(*settings)

type settings struct {
	level      slog.Level
	format     Format
	out        io.Writer
	addSource  bool
	attrs      []slog.Attr
	extractors []ContextExtractor
}

func WithLevel(l slog.Level) Option {
	return func(s *settings) { s.level = l }
}

// WithFormat panics on anything other than FormatJSON or FormatText.
func WithFormat(f Format) Option {
	if f != FormatJSON && f != FormatText {
		panic(fmt.Errorf("logger: unsupported format %q, want %q or %q", f, FormatJSON, FormatText))
	}
	return func(s *settings) { s.format = f }
}

func WithJSONFormatter() Option { return WithFormat(FormatJSON) }

func WithTextFormatter() Option { return WithFormat(FormatText) }

// WithOutput redirects records to w. A nil writer keeps stdout.
func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.out = w
		}
	}
}

func WithSource(enabled bool) Option {
	return func(s *settings) { s.addSource = enabled }
}

// WithAttr attaches attrs to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(s *settings) { s.attrs = append(s.attrs, attrs...) }
}

// WithContextExtractors registers request-scoped attribute sources, such as
// requestid.LoggerExtractor. Nil entries are skipped.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(s *settings) {
		for _, ex := range extractors {
			if ex != nil {
				s.extractors = append(s.extractors, ex)
			}
		}
	}
}

// WithEnvironment applies the profile for env and tags every record with the
// service and env names. Unknown environments fall back to development.
// Staging and production log JSON at info; development logs text at debug.
func WithEnvironment(env, service string) Option {
	env = normalizeEnv(env)
	return func(s *settings) {
		if env == EnvDevelopment {
			s.level, s.format = slog.LevelDebug, FormatText
		} else {
			s.level, s.format = slog.LevelInfo, FormatJSON
		}
		if service != "" {
			s.attrs = append(s.attrs, slog.String("service", service))
		}
		s.attrs = append(s.attrs, slog.String("env", env))
	}
}

func normalizeEnv(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		return EnvProduction
	case "staging", "stage":
		return EnvStaging
	default:
		return EnvDevelopment
	}
}

// FromConfig builds the process logger. Level and Format, when set, win over
// the environment profile; opts are applied last.
func FromConfig(cfg Config, opts ...Option) *slog.Logger {
	all := []Option{WithEnvironment(cfg.Env, cfg.Service), WithSource(cfg.AddSource)}
	if cfg.Level != "" {
		all = append(all, WithLevel(ParseLevel(cfg.Level)))
	}
	if cfg.Format != "" {
		all = append(all, WithFormat(cfg.Format))
	}
	return New(append(all, opts...)...)
}

// New returns a logger writing JSON at info level to stdout unless opts say
// otherwise. Registered extractors run on every record.
func New(opts ...Option) *slog.Logger {
	s := &settings{level: slog.LevelInfo, format: FormatJSON, out: os.Stdout}
	for _, opt := range opts {
		opt(s)
	}

	hopts := &slog.HandlerOptions{Level: s.level, AddSource: s.addSource}
	var h slog.Handler = slog.NewJSONHandler(s.out, hopts)
	if s.format == FormatText {
		h = slog.NewTextHandler(s.out, hopts)
	}
	if len(s.attrs) > 0 {
		h = h.WithAttrs(s.attrs)
	}
	return slog.New(newContextHandler(h, s.extractors))
}

// ParseLevel maps debug, info, warn and error to slog levels.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func SetAsDefault(l *slog.Logger) {
	slog.SetDefault(l)
}
