// Package auth implements the server-side SASL authentication session: the
// per-connection state machine that negotiates a mechanism with the client,
// drives the challenge/response exchange to completion, and derives the
// caller's principal.
//
// The session is re-entrant and non-blocking. The owner calls Authenticate
// whenever the transport reports readiness; each call performs at most one
// inbound frame transition and one outbound flush attempt, buffering partial
// frames across calls. Legacy clients that never send a handshake request are
// detected by request-parse failure on the first frame and routed to the
// default mechanism.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luckygong/streambus/internal/logger"
	"github.com/luckygong/streambus/internal/protocol"
	"github.com/luckygong/streambus/internal/transport"
	"github.com/luckygong/streambus/pkg/metrics"
	"github.com/luckygong/streambus/pkg/principal"
	"github.com/luckygong/streambus/pkg/sasl"
)

// DefaultLegacyMechanism is the hard-coded mechanism assumed for clients
// that begin the exchange without a handshake request.
const DefaultLegacyMechanism = "GSSAPI"

// DefaultMaxReceiveSize bounds inbound frame payloads.
const DefaultMaxReceiveSize = 512 * 1024

// State is the phase of an authentication session.
type State int

const (
	// StateInitialOrLegacy accepts either a protocol request or, for legacy
	// clients, the first raw token of the default mechanism.
	StateInitialOrLegacy State = iota
	// StateHandshake accepts protocol requests only; the legacy window has
	// closed.
	StateHandshake
	// StateAuthenticate feeds every inbound frame to the mechanism engine.
	StateAuthenticate
	// StateComplete is terminal success.
	StateComplete
	// StateFailed is terminal failure; the connection must close.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitialOrLegacy:
		return "INITIAL_OR_LEGACY"
	case StateHandshake:
		return "HANDSHAKE"
	case StateAuthenticate:
		return "AUTHENTICATE"
	case StateComplete:
		return "COMPLETE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// UnsupportedMechanismError reports a mechanism outside the enabled set,
// including the legacy fallback being unavailable. It is distinguished from
// generic protocol violations so callers can log and count it separately.
type UnsupportedMechanismError struct {
	Mechanism string
	Enabled   []string
}

func (e *UnsupportedMechanismError) Error() string {
	return fmt.Sprintf("auth: unsupported mechanism %q (enabled: %s)",
		e.Mechanism, strings.Join(e.Enabled, ", "))
}

func (e *UnsupportedMechanismError) Unwrap() error {
	return sasl.ErrUnsupportedMechanism
}

// ErrClosed is returned when a closed session is driven again.
var ErrClosed = errors.New("auth: session closed")

// ErrFailed is returned when a failed session is driven again.
var ErrFailed = errors.New("auth: session already failed")

// Config carries the construction parameters for an Authenticator.
type Config struct {
	// ConnectionID identifies the connection in logs and diagnostics.
	ConnectionID string
	// Listener names the listener the connection arrived on.
	Listener string
	// Transport is the byte channel the session is driven over.
	Transport transport.Transport
	// Registry holds the enabled mechanisms for this listener.
	Registry *sasl.Registry
	// PrincipalBuilder derives the caller identity on completion.
	// Defaults to principal.DefaultBuilder.
	PrincipalBuilder principal.Builder
	// LegacyMechanism overrides DefaultLegacyMechanism. Set only in tests.
	LegacyMechanism string
	// MaxReceiveSize bounds inbound frames. Defaults to DefaultMaxReceiveSize.
	MaxReceiveSize int
	// Metrics is optional; nil disables collection.
	Metrics metrics.AuthMetrics
}

// Authenticator is the authentication session for one connection.
//
// It is owned by the connection's driving goroutine and is not safe for
// concurrent use.
type Authenticator struct {
	connID          string
	listener        string
	transport       transport.Transport
	registry        *sasl.Registry
	builder         principal.Builder
	legacyMechanism string
	maxReceiveSize  int
	metrics         metrics.AuthMetrics

	state   State
	pending *State

	inbound  *transport.Receive
	outbound *transport.Send

	mechanism string
	engine    sasl.Server

	principal principal.Principal
	started   time.Time
	closed    bool
}

// NewAuthenticator builds a session in the initial state.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.Transport == nil {
		return nil, errors.New("auth: transport is required")
	}
	if cfg.Registry == nil || len(cfg.Registry.Mechanisms()) == 0 {
		return nil, errors.New("auth: at least one mechanism must be enabled")
	}

	builder := cfg.PrincipalBuilder
	if builder == nil {
		builder = principal.DefaultBuilder{}
	}
	legacy := cfg.LegacyMechanism
	if legacy == "" {
		legacy = DefaultLegacyMechanism
	}
	maxReceive := cfg.MaxReceiveSize
	if maxReceive <= 0 {
		maxReceive = DefaultMaxReceiveSize
	}

	return &Authenticator{
		connID:          cfg.ConnectionID,
		listener:        cfg.Listener,
		transport:       cfg.Transport,
		registry:        cfg.Registry,
		builder:         builder,
		legacyMechanism: legacy,
		maxReceiveSize:  maxReceive,
		metrics:         cfg.Metrics,
		state:           StateInitialOrLegacy,
		started:         time.Now(),
	}, nil
}

// Authenticate advances the session by one step. It never blocks beyond what
// the transport itself does: a partial inbound frame or a partial outbound
// flush returns nil and waits for the next readiness notification.
//
// A non-nil error is fatal; the caller must close the connection.
func (a *Authenticator) Authenticate() error {
	if a.closed {
		return ErrClosed
	}
	if a.state == StateFailed {
		return ErrFailed
	}

	// An in-flight outbound frame blocks all inbound processing. This keeps
	// one message per direction and guarantees the pending transition is
	// applied before the bytes that follow it are interpreted.
	if a.outbound != nil {
		if err := a.flush(); err != nil {
			a.state = StateFailed
			return fmt.Errorf("auth: flush to %s: %w", a.connID, err)
		}
		if a.outbound != nil {
			return nil
		}
	}

	if a.state == StateComplete {
		return nil
	}

	if a.inbound == nil {
		a.inbound = transport.NewReceive(a.maxReceiveSize, a.connID)
	}
	if _, err := a.inbound.ReadFrom(a.transport); err != nil {
		a.state = StateFailed
		return fmt.Errorf("auth: read from %s: %w", a.connID, err)
	}
	if !a.inbound.Complete() {
		return nil
	}

	payload := a.inbound.Payload()
	a.inbound = nil

	switch a.state {
	case StateInitialOrLegacy, StateHandshake:
		return a.handleRequest(payload)
	case StateAuthenticate:
		return a.handleToken(payload)
	default:
		return nil
	}
}

// Complete reports whether authentication finished successfully. While an
// engine's final challenge is still flushing, Complete stays false.
func (a *Authenticator) Complete() bool {
	return a.state == StateComplete
}

// State returns the session's current phase.
func (a *Authenticator) State() State {
	return a.state
}

// Mechanism returns the negotiated mechanism name, empty until negotiation
// settles.
func (a *Authenticator) Mechanism() string {
	return a.mechanism
}

// Principal returns the authenticated caller identity. Valid only once
// Complete reports true.
func (a *Authenticator) Principal() (principal.Principal, error) {
	if a.state != StateComplete {
		return principal.Principal{}, fmt.Errorf("auth: session %s not complete (state %s)", a.connID, a.state)
	}
	return a.principal, nil
}

// Close releases the mechanism engine. Idempotent; safe in any state.
func (a *Authenticator) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if a.engine != nil {
		return a.engine.Close()
	}
	return nil
}

// handleRequest interprets one frame as a protocol request, falling back to
// the legacy token path when the first frame does not parse as one.
func (a *Authenticator) handleRequest(payload []byte) error {
	header, body, err := protocol.ParseRequestHeader(payload)
	if err != nil {
		// Only malformed bytes are ambiguous with a raw mechanism token, and
		// only the very first frame may be one.
		if a.state == StateInitialOrLegacy && errors.Is(err, protocol.ErrInvalidRequest) {
			return a.legacyFallback(payload)
		}
		a.state = StateFailed
		return fmt.Errorf("auth: invalid request on %s: %w", a.connID, err)
	}

	// A parsed request closes the legacy window.
	a.state = StateHandshake

	switch header.APIKey {
	case protocol.APIKeyApiVersions:
		return a.handleApiVersions(header, body)
	case protocol.APIKeySaslHandshake:
		return a.handleHandshake(header, body)
	default:
		a.state = StateFailed
		return fmt.Errorf("auth: api %s not allowed before authentication on %s: illegal state",
			header.APIKey, a.connID)
	}
}

// handleApiVersions answers capability negotiation. An out-of-range request
// version gets an error response on the same connection so the client can
// retry with a version the server understands.
func (a *Authenticator) handleApiVersions(header *protocol.RequestHeader, body *protocol.Decoder) error {
	if !protocol.InRange(header.APIKey, header.APIVersion) {
		logger.Debug("Rejecting ApiVersions request version",
			logger.ConnID(a.connID),
			"api_version", header.APIVersion,
		)
		resp := &protocol.ApiVersionsResponse{ErrorCode: protocol.ErrUnsupportedVersion}
		return a.respond(header, resp.Encode())
	}

	if _, err := protocol.ParseApiVersionsRequest(body, header.APIVersion); err != nil {
		a.state = StateFailed
		return fmt.Errorf("auth: parse ApiVersions body on %s: %w", a.connID, err)
	}
	return a.respond(header, protocol.NewApiVersionsResponse().Encode())
}

// handleHandshake answers mechanism negotiation. Both the acceptance and the
// rejection echo the full enabled set.
func (a *Authenticator) handleHandshake(header *protocol.RequestHeader, body *protocol.Decoder) error {
	if !protocol.InRange(header.APIKey, header.APIVersion) {
		a.state = StateFailed
		return fmt.Errorf("auth: unsupported SaslHandshake version %d on %s", header.APIVersion, a.connID)
	}

	req, err := protocol.ParseSaslHandshakeRequest(body, header.APIVersion)
	if err != nil {
		a.state = StateFailed
		return fmt.Errorf("auth: parse SaslHandshake body on %s: %w", a.connID, err)
	}

	enabled := a.registry.Mechanisms()
	if !a.registry.Enabled(req.Mechanism) {
		if a.metrics != nil {
			a.metrics.RecordHandshake(req.Mechanism, protocol.ErrUnsupportedSaslMechanism.String())
		}
		resp := protocol.NewSaslHandshakeResponse(protocol.ErrUnsupportedSaslMechanism, enabled)
		// Best-effort flush of the rejection before the session fails; what
		// remains unflushed is abandoned with the connection.
		if err := a.respond(header, resp.Encode()); err != nil {
			return err
		}
		a.state = StateFailed
		a.pending = nil
		return &UnsupportedMechanismError{Mechanism: req.Mechanism, Enabled: enabled}
	}

	if err := a.createEngine(req.Mechanism); err != nil {
		a.state = StateFailed
		return err
	}
	if a.metrics != nil {
		a.metrics.RecordHandshake(req.Mechanism, "")
	}
	logger.Debug("Mechanism negotiated",
		logger.ConnID(a.connID),
		logger.Mechanism(req.Mechanism),
	)

	resp := protocol.NewSaslHandshakeResponse(protocol.ErrNone, enabled)
	if err := a.respond(header, resp.Encode()); err != nil {
		return err
	}
	a.transition(StateAuthenticate)
	return nil
}

// legacyFallback treats the first frame as the opening token of the default
// mechanism's exchange.
func (a *Authenticator) legacyFallback(token []byte) error {
	if !a.registry.Enabled(a.legacyMechanism) {
		a.state = StateFailed
		return &UnsupportedMechanismError{Mechanism: a.legacyMechanism, Enabled: a.registry.Mechanisms()}
	}

	if a.metrics != nil {
		a.metrics.RecordLegacyFallback()
	}
	logger.Debug("First frame is not a protocol request, assuming legacy client",
		logger.ConnID(a.connID),
		logger.Mechanism(a.legacyMechanism),
		logger.FrameSize(len(token)),
	)

	if err := a.createEngine(a.legacyMechanism); err != nil {
		a.state = StateFailed
		return err
	}
	a.state = StateAuthenticate
	return a.handleToken(token)
}

// handleToken feeds one raw token to the mechanism engine.
func (a *Authenticator) handleToken(token []byte) error {
	challenge, err := a.engine.Evaluate(token)
	if err != nil {
		a.state = StateFailed
		if a.metrics != nil {
			a.metrics.RecordAuthentication(a.mechanism, time.Since(a.started), "failed")
		}
		return fmt.Errorf("auth: %s evaluation on %s: %w", a.mechanism, a.connID, err)
	}

	if len(challenge) > 0 {
		if err := a.send(challenge); err != nil {
			return err
		}
	}

	if a.engine.Complete() {
		p, err := a.builder.Build(principal.Context{
			Mechanism:       a.mechanism,
			AuthorizationID: a.engine.AuthorizationID(),
			ClientAddr:      a.transport.RemoteAddr(),
			Listener:        a.listener,
		})
		if err != nil {
			a.state = StateFailed
			return fmt.Errorf("auth: build principal on %s: %w", a.connID, err)
		}
		a.principal = p
		// Completion is observable only after the final challenge is on the
		// wire; transition defers while the flush is in flight.
		a.transition(StateComplete)
		if a.metrics != nil {
			a.metrics.RecordAuthentication(a.mechanism, time.Since(a.started), "success")
		}
		logger.Info("Authentication complete",
			logger.ConnID(a.connID),
			logger.Mechanism(a.mechanism),
			logger.Principal(p.String()),
			logger.DurationMs(logger.Duration(a.started)),
		)
	}

	return nil
}

func (a *Authenticator) createEngine(mechanism string) error {
	engine, err := a.registry.NewServer(mechanism, a.listener)
	if err != nil {
		return fmt.Errorf("auth: create %s engine on %s: %w", mechanism, a.connID, err)
	}
	a.mechanism = mechanism
	a.engine = engine
	return nil
}

// respond frames a response to the given request and starts flushing it.
func (a *Authenticator) respond(header *protocol.RequestHeader, body []byte) error {
	return a.send(protocol.EncodeResponse(header, body))
}

// send enqueues one outbound frame and attempts a synchronous flush. The
// one-frame-per-direction invariant holds because frames are only produced
// while the outbound buffer is empty.
func (a *Authenticator) send(payload []byte) error {
	a.outbound = transport.NewSend(a.connID, payload)
	if err := a.flush(); err != nil {
		a.state = StateFailed
		return fmt.Errorf("auth: flush to %s: %w", a.connID, err)
	}
	return nil
}

// flush pushes the outbound frame as far as the transport allows. When the
// frame completes, any deferred state transition is applied.
func (a *Authenticator) flush() error {
	if _, err := a.outbound.WriteTo(a.transport); err != nil {
		return err
	}
	if !a.outbound.Completed() {
		a.transport.AddInterest(transport.InterestWrite)
		return nil
	}

	a.outbound = nil
	a.transport.RemoveInterest(transport.InterestWrite)
	if a.pending != nil {
		a.state = *a.pending
		a.pending = nil
	}
	return nil
}

// transition moves to next, deferring while an outbound frame is unflushed so
// the state change becomes observable only after its bytes are on the wire.
func (a *Authenticator) transition(next State) {
	if a.outbound != nil {
		a.pending = &next
		return
	}
	a.state = next
}
