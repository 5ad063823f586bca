package logger

import "log/slog"

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that logs can be
// aggregated and queried per connection, mechanism, and listener.
const (
	// Connection identification
	KeyConnID     = "conn_id"     // Connection identifier
	KeyListener   = "listener"    // Listener name
	KeyClientIP   = "client_ip"   // Client IP address
	KeyClientPort = "client_port" // Client source port
	KeyLocalAddr  = "local_addr"  // Local (server) address

	// Authentication
	KeyMechanism = "mechanism" // SASL mechanism name
	KeyState     = "state"     // Authentication session state
	KeyPrincipal = "principal" // Authenticated principal
	KeyUsername  = "username"  // Username presented by the client
	KeySecurity  = "security"  // Security protocol of the listener

	// Protocol
	KeyAPIKey        = "api_key"        // Request API key
	KeyAPIVersion    = "api_version"    // Request API version
	KeyCorrelationID = "correlation_id" // Request correlation ID
	KeyFrameSize     = "frame_size"     // Frame payload size in bytes

	// Operation metadata
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Protocol error code
)

// ----------------------------------------------------------------------------
// Field constructors for type safety
// ----------------------------------------------------------------------------

// ConnID returns a slog.Attr for a connection identifier
func ConnID(id string) slog.Attr {
	return slog.String(KeyConnID, id)
}

// Listener returns a slog.Attr for a listener name
func Listener(name string) slog.Attr {
	return slog.String(KeyListener, name)
}

// ClientIP returns a slog.Attr for a client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Mechanism returns a slog.Attr for a SASL mechanism name
func Mechanism(name string) slog.Attr {
	return slog.String(KeyMechanism, name)
}

// State returns a slog.Attr for an authentication session state
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// Principal returns a slog.Attr for an authenticated principal
func Principal(p string) slog.Attr {
	return slog.String(KeyPrincipal, p)
}

// Username returns a slog.Attr for a client-presented username
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// APIKey returns a slog.Attr for a request API key
func APIKey(key int16) slog.Attr {
	return slog.Int(KeyAPIKey, int(key))
}

// CorrelationID returns a slog.Attr for a request correlation ID
func CorrelationID(id int32) slog.Attr {
	return slog.Int(KeyCorrelationID, int(id))
}

// FrameSize returns a slog.Attr for a frame payload size
func FrameSize(n int) slog.Attr {
	return slog.Int(KeyFrameSize, n)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a protocol error code
func ErrorCode(code int16) slog.Attr {
	return slog.Int(KeyErrorCode, int(code))
}
