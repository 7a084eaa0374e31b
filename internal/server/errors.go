package server

import "errors"

var (
	// ErrServerClosed is returned when starting a server that was closed.
	ErrServerClosed = errors.New("server is closed")
	// ErrServerAlreadyRunning is returned by a second Start.
	ErrServerAlreadyRunning = errors.New("server is already running")
	// ErrServerNotRunning is returned by Stop on a stopped server.
	ErrServerNotRunning = errors.New("server is not running")
	// ErrSessionClosed is returned when sending to a closed session.
	ErrSessionClosed = errors.New("session is closed")
)
