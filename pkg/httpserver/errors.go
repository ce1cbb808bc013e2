package httpserver

import "errors"

var (
	ErrStart          = errors.New("httpserver: listen failed")
	ErrShutdown       = errors.New("httpserver: graceful shutdown did not complete")
	ErrAlreadyRunning = errors.New("httpserver: Run called twice")
)
