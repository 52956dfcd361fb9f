package testutil

import (
	"context"
	"net/http"
	"time"

	"laurel/pkg/requestcontext"
)

// WithRole adds a caller role to the request context.
// This simulates what the auth middleware would do for authenticated requests.
func WithRole(req *http.Request, role requestcontext.CallerRole) *http.Request {
	ctx := requestcontext.WithRole(req.Context(), role)
	return req.WithContext(ctx)
}

// WithRequestID adds a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	return req.WithContext(ctx)
}

// WithFixedTime pins the request-scoped clock, keeping timestamps in
// assertions deterministic.
func WithFixedTime(req *http.Request, t time.Time) *http.Request {
	ctx := requestcontext.WithTime(req.Context(), t)
	return req.WithContext(ctx)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
