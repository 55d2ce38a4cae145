package server

import "errors"

// Server-specific errors
var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrClientNotFound       = errors.New("client not found")
	ErrSendBufferFull       = errors.New("client send buffer is full")
	ErrConnectionClosed     = errors.New("connection is closed")
	ErrListenerFailed       = errors.New("failed to create listener")
)
