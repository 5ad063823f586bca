// Package plain implements the server side of the SASL PLAIN mechanism
// (RFC 4616), verifying the client's cleartext password against the bcrypt
// hash held in the credential store.
package plain

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/luckygong/streambus/pkg/identity"
	"github.com/luckygong/streambus/pkg/sasl"
)

// MechanismName is the SASL name of this mechanism.
const MechanismName = "PLAIN"

// Server evaluates the single PLAIN client response.
type Server struct {
	store identity.Store

	complete bool
	authzID  string
}

var _ sasl.Server = (*Server)(nil)

// NewServer returns a PLAIN engine backed by the given credential store.
func NewServer(store identity.Store) (*Server, error) {
	if store == nil {
		return nil, errors.New("plain: credential store is required")
	}
	return &Server{store: store}, nil
}

// NewFactory returns a sasl.Factory for the registry.
func NewFactory(store identity.Store) sasl.Factory {
	return func(string) (sasl.Server, error) {
		return NewServer(store)
	}
}

// Mechanism implements sasl.Server.
func (s *Server) Mechanism() string { return MechanismName }

// Evaluate implements sasl.Server. PLAIN completes in a single round: the
// token is authzid NUL authcid NUL password, and no challenge is ever
// returned.
func (s *Server) Evaluate(response []byte) ([]byte, error) {
	if s.complete {
		return nil, errors.New("plain: exchange already complete")
	}

	parts := bytes.Split(response, []byte{0})
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: malformed PLAIN token", sasl.ErrAuthenticationFailed)
	}
	authzid, authcid, password := string(parts[0]), string(parts[1]), string(parts[2])
	if authcid == "" {
		return nil, fmt.Errorf("%w: empty authentication identity", sasl.ErrAuthenticationFailed)
	}
	// Proxy authorization is not supported: a non-empty authzid must match
	// the authenticated identity.
	if authzid != "" && authzid != authcid {
		return nil, fmt.Errorf("%w: authzid %q does not match authcid", sasl.ErrAuthenticationFailed, authzid)
	}

	user, err := s.store.Lookup(context.Background(), authcid)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: unknown user %q", sasl.ErrAuthenticationFailed, authcid)
		}
		return nil, fmt.Errorf("plain: credential lookup: %w", err)
	}
	if !user.Enabled {
		return nil, fmt.Errorf("%w: user %q disabled", sasl.ErrAuthenticationFailed, authcid)
	}
	if user.PasswordHash == "" || !identity.VerifyPassword(user.PasswordHash, password) {
		return nil, fmt.Errorf("%w: invalid password for %q", sasl.ErrAuthenticationFailed, authcid)
	}

	s.complete = true
	s.authzID = authcid
	return nil, nil
}

// Complete implements sasl.Server.
func (s *Server) Complete() bool { return s.complete }

// AuthorizationID implements sasl.Server.
func (s *Server) AuthorizationID() string { return s.authzID }

// Close implements sasl.Server.
func (s *Server) Close() error { return nil }
