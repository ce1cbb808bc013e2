package metering

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/plans"
	"github.com/dmitrymomot/meterkit/pkg/quota"
	"github.com/dmitrymomot/meterkit/pkg/rollover"
	"github.com/dmitrymomot/meterkit/pkg/subscription"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

type envelope struct {
	Data  any          `json:"data,omitempty"`
	Error *errorDetail `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

// httpError maps an error to a status and a stable error code.
type httpError struct {
	status int
	code   string
}

var (
	errBadRequest         = httpError{http.StatusBadRequest, "bad_request"}
	errUnauthorized       = httpError{http.StatusUnauthorized, "unauthorized"}
	errPaymentRequired    = httpError{http.StatusPaymentRequired, string(quota.CodeNoActiveSubscription)}
	errConflict           = httpError{http.StatusConflict, "tracking_not_found"}
	errUnsupportedMedia   = httpError{http.StatusUnsupportedMediaType, "unsupported_media_type"}
	errUnprocessable      = httpError{http.StatusUnprocessableEntity, "unprocessable_entity"}
	errInvalidPlan        = httpError{http.StatusInternalServerError, string(quota.CodeInvalidPlan)}
	errInternal           = httpError{http.StatusInternalServerError, "internal_server_error"}
	errNotImplemented     = httpError{http.StatusNotImplemented, "not_implemented"}
	errServiceUnavailable = httpError{http.StatusServiceUnavailable, "storage_unavailable"}
	errNotFound           = httpError{http.StatusNotFound, "not_found"}
)

func classify(err error) httpError {
	switch {
	case errors.Is(err, usage.ErrStorageUnavailable),
		errors.Is(err, rollover.ErrFailedToListSubscriptions),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return errServiceUnavailable
	case errors.Is(err, ErrInvalidTeamID),
		errors.Is(err, ErrInvalidJSON),
		errors.Is(err, quota.ErrMissingTeamID),
		errors.Is(err, usage.ErrMissingTeamID),
		errors.Is(err, subscription.ErrMissingTeamID),
		errors.Is(err, subscription.ErrMalformedWebhook):
		return errBadRequest
	case errors.Is(err, ErrUnsupportedMediaType):
		return errUnsupportedMedia
	case errors.Is(err, quota.ErrUnknownAction), errors.Is(err, plans.ErrUnknownMetric):
		return errNotFound
	case errors.Is(err, usage.ErrInvalidDelta):
		return errUnprocessable
	case errors.Is(err, usage.ErrTrackingNotFound):
		return errConflict
	case errors.Is(err, quota.ErrNoActiveSubscription):
		return errPaymentRequired
	case errors.Is(err, quota.ErrInvalidPlan):
		return errInvalidPlan
	case errors.Is(err, subscription.ErrWebhookVerificationFailed):
		return errUnauthorized
	case errors.Is(err, ErrBillingDisabled):
		return errNotImplemented
	default:
		return errInternal
	}
}

// writeError answers with the classified status. Server faults are logged
// with the error, client faults at debug level.
func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error, data any) {
	he := classify(err)

	level := slog.LevelDebug
	if he.status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		logger.Component("metering"),
		slog.String("path", r.URL.Path),
		slog.Int("status", he.status),
		logger.Error(err))

	msg := err.Error()
	if he.status >= http.StatusInternalServerError {
		msg = http.StatusText(he.status)
	}
	writeJSON(w, he.status, envelope{Data: data, Error: &errorDetail{Code: he.code, Message: msg}})
}
