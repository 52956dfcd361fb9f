// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them. Keeping the package free of
// net/http lets services and workers import it without pulling in HTTP code.
//
// Usage in services (read values):
//
//	role := requestcontext.Role(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithRole(ctx, requestcontext.RoleCoordinator)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// CallerRole names a capability granted to the authenticated caller.
// Privileged operations check for an exact role rather than ambient trust.
type CallerRole string

const (
	// RoleCoordinator may submit contributions for certification.
	RoleCoordinator CallerRole = "coordinator"
	// RoleAnchorer may attach on-chain refs once a transaction finalizes.
	RoleAnchorer CallerRole = "anchorer"
	// RoleOperator may trigger governance actions such as an epoch advance.
	RoleOperator CallerRole = "operator"
)

// Context key types (unexported for encapsulation).
type (
	roleKey        struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyRole        = roleKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Role retrieves the caller's capability role from the context.
// Returns the empty role if not set.
func Role(ctx context.Context) CallerRole {
	if role, ok := ctx.Value(ContextKeyRole).(CallerRole); ok {
		return role
	}
	return ""
}

// WithRole injects a caller role into the context.
func WithRole(ctx context.Context, role CallerRole) context.Context {
	return context.WithValue(ctx, ContextKeyRole, role)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests and for workers that need a consistent time within a batch.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
