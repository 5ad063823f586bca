package gssapi

import (
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/jcmturner/gokrb5/v8/asn1tools"
	"github.com/jcmturner/gokrb5/v8/crypto"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/service"
	"github.com/jcmturner/gokrb5/v8/types"

	"github.com/luckygong/streambus/pkg/sasl"
)

// MechanismName is the SASL name of the Kerberos V5 mechanism.
const MechanismName = "GSSAPI"

// apOptionMutualRequired is bit 2 (MSB numbering) of the AP-REQ ap-options
// field (RFC 4120 section 5.5.1).
const apOptionMutualRequired = 0x20

// Server accepts a Kerberos context establishment exchange. The exchange is
// a single round trip: the client sends an AP-REQ and, when it requested
// mutual authentication, expects an AP-REP back.
type Server struct {
	provider *Provider

	complete  bool
	closed    bool
	principal string
}

// NewServer builds a GSSAPI server backed by the provider's keytab.
func NewServer(provider *Provider) (*Server, error) {
	if provider == nil {
		return nil, errors.New("gssapi: provider is required")
	}
	return &Server{provider: provider}, nil
}

// NewFactory returns a sasl.Factory producing GSSAPI servers.
func NewFactory(provider *Provider) sasl.Factory {
	return func(string) (sasl.Server, error) {
		return NewServer(provider)
	}
}

func (s *Server) Mechanism() string { return MechanismName }

// Evaluate verifies the client's initial context token. The response is the
// AP-REP MechToken when the client required mutual authentication, empty
// otherwise.
func (s *Server) Evaluate(token []byte) ([]byte, error) {
	if s.closed {
		return nil, errors.New("gssapi: server closed")
	}
	if s.complete {
		return nil, errors.New("gssapi: context already established")
	}

	apReqBytes, err := unwrapInitialToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: gssapi: %v", sasl.ErrAuthenticationFailed, err)
	}

	var apReq messages.APReq
	if err := apReq.Unmarshal(apReqBytes); err != nil {
		return nil, fmt.Errorf("%w: gssapi: unmarshal AP-REQ: %v", sasl.ErrAuthenticationFailed, err)
	}

	settings := service.NewSettings(
		s.provider.Keytab(),
		service.MaxClockSkew(s.provider.MaxClockSkew()),
		service.DecodePAC(false),
		service.KeytabPrincipal(s.provider.ServicePrincipal()),
	)
	ok, _, err := service.VerifyAPREQ(&apReq, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: gssapi: verify AP-REQ: %v", sasl.ErrAuthenticationFailed, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: gssapi: AP-REQ rejected", sasl.ErrAuthenticationFailed)
	}

	// The client identity lives in the decrypted ticket, not the credential
	// wrapper returned by verification.
	sessionKey := apReq.Ticket.DecryptedEncPart.Key
	s.principal = fmt.Sprintf("%s@%s",
		apReq.Ticket.DecryptedEncPart.CName.PrincipalNameString(),
		apReq.Ticket.DecryptedEncPart.CRealm,
	)

	// An AP-REP is sent only when the client required mutual authentication.
	// Clients that did not set the flag treat an unexpected reply token as a
	// protocol error.
	var response []byte
	if mutualRequired(apReq) {
		if err := apReq.DecryptAuthenticator(sessionKey); err != nil {
			return nil, fmt.Errorf("%w: gssapi: decrypt authenticator: %v", sasl.ErrAuthenticationFailed, err)
		}
		response, err = buildAPRep(apReq, sessionKey)
		if err != nil {
			return nil, fmt.Errorf("gssapi: build AP-REP: %w", err)
		}
	}

	s.complete = true
	return response, nil
}

func (s *Server) Complete() bool { return s.complete }

// AuthorizationID returns the client principal in "name@REALM" form once the
// context is established.
func (s *Server) AuthorizationID() string {
	if !s.complete {
		return ""
	}
	return s.principal
}

func (s *Server) Close() error {
	s.closed = true
	return nil
}

func mutualRequired(apReq messages.APReq) bool {
	return len(apReq.APOptions.Bytes) > 0 && apReq.APOptions.Bytes[0]&apOptionMutualRequired != 0
}

// buildAPRep constructs the mutual authentication reply (RFC 4120 section
// 5.5.2). Echoing ctime and cusec from the authenticator proves the broker
// decrypted the service ticket; a client subkey is echoed back so the client
// knows it was accepted.
func buildAPRep(apReq messages.APReq, sessionKey types.EncryptionKey) ([]byte, error) {
	encPart := messages.EncAPRepPart{
		CTime: apReq.Authenticator.CTime,
		Cusec: apReq.Authenticator.Cusec,
	}
	if apReq.Authenticator.SubKey.KeyType != 0 && len(apReq.Authenticator.SubKey.KeyValue) > 0 {
		encPart.Subkey = apReq.Authenticator.SubKey
	}

	encPartInner, err := asn1.Marshal(encPart)
	if err != nil {
		return nil, fmt.Errorf("marshal EncAPRepPart: %w", err)
	}
	encPartBytes := asn1tools.AddASNAppTag(encPartInner, 27)

	// Key usage 12 is the AP-REP encrypted part (RFC 4120 section 7.5.1).
	encrypted, err := crypto.GetEncryptedData(encPartBytes, sessionKey, 12, 0)
	if err != nil {
		return nil, fmt.Errorf("encrypt EncAPRepPart: %w", err)
	}

	apRep := messages.APRep{
		PVNO:    5,
		MsgType: 15,
		EncPart: encrypted,
	}
	apRepInner, err := asn1.Marshal(apRep)
	if err != nil {
		return nil, fmt.Errorf("marshal AP-REP: %w", err)
	}
	apRepBytes := asn1tools.AddASNAppTag(apRepInner, 15)

	return wrapToken(apRepBytes, tokenIDAPRep), nil
}
