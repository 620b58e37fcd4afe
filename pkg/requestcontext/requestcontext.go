// Package requestcontext carries per-call values: the request ID, the clock,
// and the authenticated principal. Services read these instead of reaching for
// globals so every call stays independently testable.
package requestcontext

import (
	"context"
	"time"
)

type requestIDKey struct{}
type nowKey struct{}
type principalKey struct{}

// Principal identifies the authenticated caller of the current request.
// Kind names the principal's model (e.g. "user") for audit causer records.
type Principal struct {
	ID   string
	Kind string
	Name string
}

// WithRequestID attaches a correlation ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the correlation ID for the current call, or "".
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithNow fixes the clock for the current call. Tests use this to make
// timestamps deterministic.
func WithNow(ctx context.Context, now func() time.Time) context.Context {
	return context.WithValue(ctx, nowKey{}, now)
}

// Now returns the current time for this call, falling back to time.Now.
func Now(ctx context.Context) time.Time {
	if fn, ok := ctx.Value(nowKey{}).(func() time.Time); ok {
		return fn()
	}
	return time.Now().UTC()
}

// WithPrincipal attaches the authenticated principal to the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated principal, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
