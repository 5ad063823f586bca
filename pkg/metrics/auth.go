package metrics

import (
	"time"
)

// AuthMetrics provides observability for the authentication layer.
//
// Implementations collect metrics about connection lifecycle, handshake
// negotiation, and mechanism exchanges. The interface is optional; pass nil
// to disable collection with zero overhead.
type AuthMetrics interface {
	// RecordHandshake records a mechanism negotiation attempt.
	//
	// Parameters:
	//   - mechanism: The mechanism the client requested (e.g., "SCRAM-SHA-256")
	//   - errorCode: Protocol error name on rejection (e.g., "UNSUPPORTED_SASL_MECHANISM"),
	//     empty when the mechanism was accepted
	RecordHandshake(mechanism string, errorCode string)

	// RecordAuthentication records a finished authentication attempt with its
	// negotiated mechanism, total duration from accept to completion, and
	// outcome ("success" or a failure reason such as "invalid_credentials").
	RecordAuthentication(mechanism string, duration time.Duration, outcome string)

	// RecordLegacyFallback counts sessions that skipped negotiation and were
	// routed to the default mechanism.
	RecordLegacyFallback()

	// SetActiveSessions updates the number of connections currently inside
	// the authentication handshake.
	SetActiveSessions(count int32)

	// RecordConnectionAccepted increments the total accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed connections counter.
	RecordConnectionClosed()
}
