package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// TeamID records the team identifier under the key "team_id".
// If id is nil, it returns an empty Attr.
func TeamID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("team_id", id)
}

// PlanID records the plan identifier under the key "plan_id".
func PlanID(id string) slog.Attr {
	return slog.String("plan_id", id)
}

// Metric records a usage metric name under the key "metric".
func Metric[T ~string](m T) slog.Attr {
	return slog.String("metric", string(m))
}

// Action records a gated action under the key "action".
func Action[T ~string](a T) slog.Attr {
	return slog.String("action", string(a))
}

// Code records a decision code under the key "code".
func Code[T ~string](c T) slog.Attr {
	return slog.String("code", string(c))
}

// Period records a half-open tracking window as a "period" group.
func Period(start, end time.Time) slog.Attr {
	return Group("period",
		slog.Time("start", start),
		slog.Time("end", end),
	)
}

// RequestID records the request identifier under the key "request_id".
// If id is nil, it returns an empty Attr.
func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}

// EventType records the event type under the key "event_type".
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

// RetryCount records the retry count under the key "retry_count".
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Outcome records a processing outcome under the key "outcome".
func Outcome(o string) slog.Attr {
	return slog.String("outcome", o)
}
