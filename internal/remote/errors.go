package remote

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the remote rejects the session's
// credentials (HTTP 401). It ends an authentication attempt; asking for new
// credentials is up to the caller.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is returned for any unexpected HTTP status other than 401.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: remote returned status %d", e.Method, e.URL, e.Code)
}

// TransportError wraps network-level failures: refused connections, DNS,
// timeouts. These are reported and never retried.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a logical error reported by the remote in the Error field of a
// successful (200) response envelope.
type APIError struct {
	Endpoint string
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("error in the call to %s: %s", e.Endpoint, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	if errors.Is(err, ErrUnauthorized) {
		return 401
	}
	return 0
}
