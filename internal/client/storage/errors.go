package storage

import "errors"

// Common client storage errors
var (
	// ErrSessionNotFound indicates that the client has no stored session
	ErrSessionNotFound = errors.New("session not found")
)
