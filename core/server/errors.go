package server

import "errors"

var (
	// ErrMissingAddress is returned when no listen address is configured.
	ErrMissingAddress = errors.New("server: address is required")

	// ErrAlreadyRunning is returned by Start when the server is running.
	ErrAlreadyRunning = errors.New("server: already running")

	// ErrLoadCertificate is returned when the TLS key pair cannot be read.
	ErrLoadCertificate = errors.New("server: failed to load certificate")
)
