package usage

import "errors"

var (
	ErrTrackingNotFound   = errors.New("usage.errors.tracking_not_found")
	ErrStorageUnavailable = errors.New("usage.errors.storage_unavailable")
	ErrPeriodOverlap      = errors.New("usage.errors.period_overlap")
	ErrInvalidDelta       = errors.New("usage.errors.invalid_delta")
	ErrInvalidPeriod      = errors.New("usage.errors.invalid_period")
	ErrMissingTeamID      = errors.New("usage.errors.missing_team_id")

	ErrNotGaugeMetric         = errors.New("usage.errors.not_gauge_metric")
	ErrGaugeAlreadyRegistered = errors.New("usage.errors.gauge_already_registered")

	// ErrWriteUncertain marks a storage failure after which the write may
	// or may not have been applied. Such failures are never retried.
	ErrWriteUncertain = errors.New("usage.errors.write_uncertain")
)
