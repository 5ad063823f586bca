package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds connection-scoped logging context.
//
// A LogContext is created when a connection is accepted and enriched as the
// authentication session progresses (mechanism selection, principal).
type LogContext struct {
	ConnID    string    // Connection identifier
	Listener  string    // Listener name the connection arrived on
	Mechanism string    // Negotiated SASL mechanism, once known
	ClientIP  string    // Client IP address (without port)
	Principal string    // Authenticated principal, once established
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a freshly accepted connection.
func NewLogContext(connID, listener, clientIP string) *LogContext {
	return &LogContext{
		ConnID:    connID,
		Listener:  listener,
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithMechanism returns a copy with the SASL mechanism set
func (lc *LogContext) WithMechanism(mechanism string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Mechanism = mechanism
	}
	return clone
}

// WithPrincipal returns a copy with the authenticated principal set
func (lc *LogContext) WithPrincipal(principal string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Principal = principal
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
