package server

import "errors"

var (
	ErrMissingAddress       = errors.New("server address is required")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrFailedLoadCert       = errors.New("failed to load certificate")
	ErrEmptyCertPath        = errors.New("certificate or key file path cannot be empty")
)
