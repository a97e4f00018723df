// Package shield provides the HTTP middleware stack for the glamwatch
// API: security headers and per-request tracing.
package shield

import "net/http"

// DefaultStack returns the standard middleware stack for the read-only
// API. Order matters: tracing wraps everything so the request logger
// sees every response.
func DefaultStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		RequestID,
		SecurityHeaders(DefaultHeaders()),
	}
}
