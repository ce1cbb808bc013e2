package config

import "errors"

var (
	ErrNilPointer     = errors.New("config: nil target")
	ErrParsingConfig  = errors.New("config: environment does not match struct tags")
	ErrLoadingEnvFile = errors.New("config: cannot read dotenv file")
)
