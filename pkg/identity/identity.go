// Package identity provides the credential store backing the shared-secret
// SASL mechanisms.
//
// The store is read-mostly: authentication sessions only ever look
// credentials up, while an external admin path (the HTTP API in pkg/api or
// CLI tooling) populates it. Implementations must therefore be safe for
// concurrent reads during writes.
package identity

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned when no user exists with the given name.
var ErrUserNotFound = errors.New("identity: user not found")

// ErrUserDisabled is returned when the user exists but is disabled.
var ErrUserDisabled = errors.New("identity: user disabled")

// ScramCredential holds the server-side verifier material for one SCRAM
// hash family, per RFC 5802. The cleartext password is never stored.
type ScramCredential struct {
	Salt       []byte `json:"salt"`
	StoredKey  []byte `json:"stored_key"`
	ServerKey  []byte `json:"server_key"`
	Iterations int    `json:"iterations"`
}

// User is one credential-store entry.
type User struct {
	Username string `json:"username"`

	// PasswordHash is the bcrypt hash verified by the PLAIN mechanism.
	// Empty when the user has no password credential.
	PasswordHash string `json:"password_hash,omitempty"`

	// Scram maps mechanism names ("SCRAM-SHA-256", "SCRAM-SHA-512") to
	// their stored verifier material.
	Scram map[string]ScramCredential `json:"scram,omitempty"`

	Enabled bool `json:"enabled"`
}

// Store is the read side used by mechanism engines.
type Store interface {
	// Lookup returns the user with the given name, or ErrUserNotFound.
	Lookup(ctx context.Context, username string) (*User, error)
}

// Admin is the write side used by the external admin path.
type Admin interface {
	Store

	// Upsert creates or replaces a user entry.
	Upsert(ctx context.Context, user *User) error

	// Delete removes a user entry. Deleting an absent user returns
	// ErrUserNotFound.
	Delete(ctx context.Context, username string) error

	// List returns all usernames in unspecified order.
	List(ctx context.Context) ([]string, error)
}
