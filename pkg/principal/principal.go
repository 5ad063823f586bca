// Package principal resolves the identity a session acts as once
// authentication succeeds.
package principal

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// TypeUser is the principal type assigned to authenticated users.
const TypeUser = "User"

// Principal identifies an authenticated party.
type Principal struct {
	Type string
	Name string
}

// Anonymous is the principal assigned before authentication completes.
var Anonymous = Principal{Type: TypeUser, Name: "ANONYMOUS"}

func (p Principal) String() string {
	return p.Type + ":" + p.Name
}

// Context carries what is known about a session when its principal is built.
type Context struct {
	// Mechanism is the SASL mechanism the session authenticated with.
	Mechanism string
	// AuthorizationID is the identity the mechanism established. For
	// Kerberos it is the full "name@REALM" principal.
	AuthorizationID string
	// ClientAddr is the remote address of the connection.
	ClientAddr net.Addr
	// Listener names the listener the connection arrived on.
	Listener string
}

// Builder maps an authenticated session to a Principal. Implementations may
// apply site-specific rules such as certificate DN mapping or realm policies.
type Builder interface {
	Build(ctx Context) (Principal, error)
}

// DefaultBuilder derives the principal name directly from the authorization
// ID. Kerberos names are reduced to their primary component, so
// "alice/admin@EXAMPLE.COM" becomes "User:alice".
type DefaultBuilder struct{}

func (DefaultBuilder) Build(ctx Context) (Principal, error) {
	if ctx.AuthorizationID == "" {
		return Principal{}, errors.New("principal: empty authorization ID")
	}

	name := ctx.AuthorizationID
	if ctx.Mechanism == "GSSAPI" {
		name = kerberosShortName(name)
		if name == "" {
			return Principal{}, fmt.Errorf("principal: malformed kerberos name %q", ctx.AuthorizationID)
		}
	}
	return Principal{Type: TypeUser, Name: name}, nil
}

// kerberosShortName extracts the primary component of a Kerberos principal
// name, dropping the instance and realm.
func kerberosShortName(full string) string {
	name := full
	if idx := strings.IndexByte(name, '@'); idx >= 0 {
		name = name[:idx]
	}
	if idx := strings.IndexByte(name, '/'); idx >= 0 {
		name = name[:idx]
	}
	return name
}
