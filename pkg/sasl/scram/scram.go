// Package scram implements the server side of the SCRAM-SHA-256 and
// SCRAM-SHA-512 mechanisms (RFC 5802). Verification runs against stored
// credentials only; the cleartext password never reaches the server.
package scram

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"

	"github.com/luckygong/streambus/pkg/identity"
	"github.com/luckygong/streambus/pkg/sasl"
)

const (
	// MechanismSHA256 is the SASL name of the SHA-256 flavor.
	MechanismSHA256 = "SCRAM-SHA-256"
	// MechanismSHA512 is the SASL name of the SHA-512 flavor.
	MechanismSHA512 = "SCRAM-SHA-512"

	serverNonceLen = 18
)

type serverState int

const (
	stateClientFirst serverState = iota
	stateClientFinal
	stateComplete
	stateClosed
)

// Server evaluates a two round-trip SCRAM exchange for one mechanism flavor.
type Server struct {
	mechanism string
	newHash   func() hash.Hash
	store     identity.Store

	state      serverState
	username   string
	credential *identity.ScramCredential
	nonce      string
	// authPrefix accumulates client-first-bare + "," + server-first. The
	// client-final-without-proof is appended when the proof is checked.
	authPrefix string
}

// NewServer builds a SCRAM server for the given mechanism flavor backed by the
// credential store.
func NewServer(mechanism string, store identity.Store) (*Server, error) {
	if store == nil {
		return nil, errors.New("scram: credential store is required")
	}
	s := &Server{mechanism: mechanism, store: store}
	switch mechanism {
	case MechanismSHA256:
		s.newHash = sha256.New
	case MechanismSHA512:
		s.newHash = sha512.New
	default:
		return nil, fmt.Errorf("scram: %w: %s", sasl.ErrUnsupportedMechanism, mechanism)
	}
	return s, nil
}

// NewFactory returns a sasl.Factory producing servers for the given flavor.
func NewFactory(mechanism string, store identity.Store) sasl.Factory {
	return func(string) (sasl.Server, error) {
		return NewServer(mechanism, store)
	}
}

func (s *Server) Mechanism() string { return s.mechanism }

// Evaluate advances the exchange by one client token.
func (s *Server) Evaluate(token []byte) ([]byte, error) {
	switch s.state {
	case stateClientFirst:
		return s.evaluateClientFirst(token)
	case stateClientFinal:
		return s.evaluateClientFinal(token)
	case stateComplete:
		return nil, errors.New("scram: exchange already complete")
	default:
		return nil, errors.New("scram: server closed")
	}
}

func (s *Server) evaluateClientFirst(token []byte) ([]byte, error) {
	first, err := parseClientFirst(string(token))
	if err != nil {
		s.state = stateClosed
		return nil, err
	}

	user, err := s.store.Lookup(context.Background(), first.Username)
	if err != nil {
		s.state = stateClosed
		return nil, authFailedf("scram: user %q: %v", first.Username, err)
	}
	if !user.Enabled {
		s.state = stateClosed
		return nil, authFailedf("scram: user %q: %v", first.Username, identity.ErrUserDisabled)
	}
	cred, ok := user.Scram[s.mechanism]
	if !ok {
		s.state = stateClosed
		return nil, authFailedf("scram: user %q has no %s credential", first.Username, s.mechanism)
	}

	suffix, err := generateNonce()
	if err != nil {
		s.state = stateClosed
		return nil, err
	}

	s.username = first.Username
	s.credential = &cred
	s.nonce = first.Nonce + suffix

	serverFirst := serverFirstMessage(s.nonce, cred.Salt, cred.Iterations)
	s.authPrefix = first.Bare + "," + serverFirst
	s.state = stateClientFinal
	return []byte(serverFirst), nil
}

func (s *Server) evaluateClientFinal(token []byte) ([]byte, error) {
	final, err := parseClientFinal(string(token))
	if err != nil {
		s.state = stateClosed
		return nil, err
	}
	if final.Nonce != s.nonce {
		s.state = stateClosed
		return nil, authFailedf("scram: nonce mismatch")
	}
	// "biws" is base64("n,,"), the only gs2 header this server issues.
	if final.ChannelBinding != "biws" {
		s.state = stateClosed
		return nil, authFailedf("scram: unexpected channel binding %q", final.ChannelBinding)
	}

	authMessage := []byte(s.authPrefix + "," + final.WithoutProof)

	clientSignature := s.hmac(s.credential.StoredKey, authMessage)
	if len(final.Proof) != len(clientSignature) {
		s.state = stateClosed
		return nil, authFailedf("scram: proof length mismatch")
	}
	clientKey := make([]byte, len(final.Proof))
	for i := range clientKey {
		clientKey[i] = final.Proof[i] ^ clientSignature[i]
	}
	storedKey := s.hashSum(clientKey)
	if subtle.ConstantTimeCompare(storedKey, s.credential.StoredKey) != 1 {
		s.state = stateClosed
		return nil, authFailedf("scram: proof verification failed for %q", s.username)
	}

	serverSignature := s.hmac(s.credential.ServerKey, authMessage)
	s.state = stateComplete
	return []byte(serverFinalMessage(serverSignature)), nil
}

func (s *Server) Complete() bool { return s.state == stateComplete }

// AuthorizationID returns the authenticated username once the exchange is
// complete.
func (s *Server) AuthorizationID() string {
	if s.state != stateComplete {
		return ""
	}
	return s.username
}

func (s *Server) Close() error {
	s.state = stateClosed
	s.credential = nil
	return nil
}

func (s *Server) hmac(key, message []byte) []byte {
	mac := hmac.New(s.newHash, key)
	mac.Write(message)
	return mac.Sum(nil)
}

func (s *Server) hashSum(data []byte) []byte {
	h := s.newHash()
	h.Write(data)
	return h.Sum(nil)
}

func generateNonce() (string, error) {
	raw := make([]byte, serverNonceLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("scram: generating nonce: %w", err)
	}
	return base64.RawStdEncoding.EncodeToString(raw), nil
}
