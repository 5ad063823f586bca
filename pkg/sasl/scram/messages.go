package scram

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/luckygong/streambus/pkg/sasl"
)

// clientFirst is the parsed client-first-message (RFC 5802 §7).
type clientFirst struct {
	Username string
	Nonce    string
	// Bare is the client-first-message-bare, kept verbatim for the auth
	// message signature.
	Bare string
}

// clientFinal is the parsed client-final-message.
type clientFinal struct {
	ChannelBinding string
	Nonce          string
	Proof          []byte
	// WithoutProof is the client-final-message-without-proof, kept verbatim
	// for the auth message signature.
	WithoutProof string
}

func authFailedf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{sasl.ErrAuthenticationFailed}, args...)...)
}

// parseClientFirst parses "n,,n=<user>,r=<nonce>[,...]". Channel binding is
// not supported; only the "n" (no binding) gs2 flag is accepted, and an
// authzid is rejected because proxy authorization is not supported.
func parseClientFirst(msg string) (*clientFirst, error) {
	rest, ok := strings.CutPrefix(msg, "n,")
	if !ok {
		return nil, authFailedf("scram: channel binding not supported")
	}
	authzid, rest, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, authFailedf("scram: malformed gs2 header")
	}
	if authzid != "" {
		return nil, authFailedf("scram: authzid not supported")
	}

	out := &clientFirst{Bare: rest}
	attrs := strings.Split(rest, ",")
	if len(attrs) < 2 {
		return nil, authFailedf("scram: malformed client-first message")
	}
	for i, attr := range attrs {
		key, value, ok := strings.Cut(attr, "=")
		if !ok {
			return nil, authFailedf("scram: malformed attribute %q", attr)
		}
		switch {
		case i == 0 && key == "m":
			return nil, authFailedf("scram: mandatory extensions not supported")
		case i == 0 && key == "n":
			name, err := decodeSaslname(value)
			if err != nil {
				return nil, err
			}
			out.Username = name
		case i == 1 && key == "r":
			out.Nonce = value
		}
	}
	if out.Username == "" || out.Nonce == "" {
		return nil, authFailedf("scram: missing username or nonce")
	}
	return out, nil
}

// parseClientFinal parses "c=<b64 gs2>,r=<nonce>,...,p=<b64 proof>".
func parseClientFinal(msg string) (*clientFinal, error) {
	idx := strings.LastIndex(msg, ",p=")
	if idx < 0 {
		return nil, authFailedf("scram: missing proof")
	}
	out := &clientFinal{WithoutProof: msg[:idx]}

	proof, err := base64.StdEncoding.DecodeString(msg[idx+len(",p="):])
	if err != nil {
		return nil, authFailedf("scram: bad proof encoding")
	}
	out.Proof = proof

	for i, attr := range strings.Split(out.WithoutProof, ",") {
		key, value, ok := strings.Cut(attr, "=")
		if !ok {
			return nil, authFailedf("scram: malformed attribute %q", attr)
		}
		switch {
		case i == 0 && key == "c":
			out.ChannelBinding = value
		case i == 1 && key == "r":
			out.Nonce = value
		}
	}
	if out.ChannelBinding == "" || out.Nonce == "" {
		return nil, authFailedf("scram: missing channel binding or nonce")
	}
	return out, nil
}

// serverFirstMessage renders "r=<nonce>,s=<b64 salt>,i=<iterations>".
func serverFirstMessage(nonce string, salt []byte, iterations int) string {
	return fmt.Sprintf("r=%s,s=%s,i=%d", nonce, base64.StdEncoding.EncodeToString(salt), iterations)
}

// serverFinalMessage renders "v=<b64 server signature>".
func serverFinalMessage(signature []byte) string {
	return "v=" + base64.StdEncoding.EncodeToString(signature)
}

// decodeSaslname reverses the =2C / =3D escaping of RFC 5802 saslnames.
func decodeSaslname(value string) (string, error) {
	if !strings.Contains(value, "=") {
		return value, nil
	}
	replaced := strings.ReplaceAll(strings.ReplaceAll(value, "=2C", ","), "=3D", "=")
	if strings.Contains(strings.ReplaceAll(strings.ReplaceAll(value, "=2C", ""), "=3D", ""), "=") {
		return "", authFailedf("scram: invalid saslname escape in %q", value)
	}
	return replaced, nil
}
