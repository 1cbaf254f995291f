package backend

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrNotConfigured means no backend target has been set up yet.
	ErrNotConfigured = errors.New("backend not configured")
	// ErrAuthFailed means the backend rejected the configured credentials.
	ErrAuthFailed = errors.New("backend authentication failed")
	// ErrSessionExpired means a previously valid session is no longer
	// accepted and a fresh authentication is required.
	ErrSessionExpired = errors.New("backend session expired")
	// ErrInvalidResponse means the backend answered with a payload that
	// could not be decoded.
	ErrInvalidResponse = errors.New("invalid backend response")
)

// NetworkError wraps a transport-layer failure (DNS, dial, timeout).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// Error is a well-formed error the backend explicitly reported.
type Error struct {
	Message string
}

func (e *Error) Error() string { return "backend error: " + e.Message }

// IsTransient reports whether err is a connectivity-class failure worth
// retrying. HTTP error statuses and decode failures are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var nerr *NetworkError
	if errors.As(err, &nerr) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
