// Package sasl provides the pluggable server-side SASL abstractions for
// StreamBus.
//
// This package defines:
//
//   - Server, the stateful challenge/response evaluator for one mechanism on
//     one connection
//   - Registry, mapping mechanism names to Server factories
//   - Standard error types for authentication failures
//
// Mechanism-specific logic (PLAIN credential checks, SCRAM proof
// verification, Kerberos AP-REQ acceptance) lives in the subpackages plain/,
// scram/ and gssapi/. The authentication session in internal/auth manages
// engines uniformly through the interfaces defined here.
package sasl

import (
	"errors"
	"fmt"
	"sort"
)

// Server is one mechanism's server-side challenge/response engine.
//
// A Server is created per connection once the mechanism is known and is
// exclusively owned by that connection's authentication session. It does not
// need to be safe for concurrent use.
type Server interface {
	// Mechanism returns the SASL mechanism name, e.g. "SCRAM-SHA-256".
	Mechanism() string

	// Evaluate processes one client token and returns the next challenge to
	// send, or nil when no reply is due. A non-nil error is fatal for the
	// session.
	Evaluate(response []byte) (challenge []byte, err error)

	// Complete reports whether the exchange has finished successfully and no
	// further tokens are expected from the client.
	Complete() bool

	// AuthorizationID returns the identity the client authenticated as.
	// Valid only once Complete reports true.
	AuthorizationID() string

	// Close releases any resources held by the engine. It must be idempotent
	// and safe to call in any state.
	Close() error
}

// Factory constructs a Server for one connection. serverHost is the
// listener's host name, available to mechanisms that bind to the service
// endpoint.
type Factory func(serverHost string) (Server, error)

// Standard authentication errors.
var (
	// ErrAuthenticationFailed indicates the client's token was rejected:
	// bad credentials, invalid proof, expired ticket.
	ErrAuthenticationFailed = errors.New("sasl: authentication failed")

	// ErrUnsupportedMechanism indicates a mechanism outside the enabled set
	// was requested, or the legacy fallback mechanism is not enabled.
	ErrUnsupportedMechanism = errors.New("sasl: unsupported mechanism")
)

// Registry maps enabled mechanism names to their factories.
//
// The enabled set is fixed at construction and read-only afterwards, so a
// Registry is safe for concurrent use by many sessions.
type Registry struct {
	factories map[string]Factory
	names     []string
}

// NewRegistry builds a registry from the given factories. At least one
// mechanism must be registered.
func NewRegistry(factories map[string]Factory) (*Registry, error) {
	if len(factories) == 0 {
		return nil, errors.New("sasl: no mechanisms enabled")
	}
	names := make([]string, 0, len(factories))
	copied := make(map[string]Factory, len(factories))
	for name, f := range factories {
		if f == nil {
			return nil, fmt.Errorf("sasl: nil factory for mechanism %q", name)
		}
		copied[name] = f
		names = append(names, name)
	}
	sort.Strings(names)
	return &Registry{factories: copied, names: names}, nil
}

// Enabled reports whether the mechanism is in the enabled set.
func (r *Registry) Enabled(mechanism string) bool {
	_, ok := r.factories[mechanism]
	return ok
}

// Mechanisms returns the enabled mechanism names in sorted order. The
// returned slice is shared and must not be mutated.
func (r *Registry) Mechanisms() []string {
	return r.names
}

// NewServer constructs the engine for the given mechanism.
func (r *Registry) NewServer(mechanism, serverHost string) (Server, error) {
	f, ok := r.factories[mechanism]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMechanism, mechanism)
	}
	srv, err := f(serverHost)
	if err != nil {
		return nil, fmt.Errorf("sasl: create %s server: %w", mechanism, err)
	}
	return srv, nil
}
