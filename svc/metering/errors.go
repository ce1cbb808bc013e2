package metering

import "errors"

var (
	ErrInvalidTeamID        = errors.New("invalid team ID")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrInvalidJSON          = errors.New("invalid JSON")
	ErrBillingDisabled      = errors.New("billing webhook is not configured")
)
