// Package protocol implements the StreamBus binary RPC envelope: the request
// and response headers shared by every API, the primitive wire codec, and the
// two bootstrap request types the authentication layer understands
// (ApiVersions and SaslHandshake).
//
// Every logical message on the wire is carried inside a frame: a 4-byte
// big-endian length prefix followed by that many payload bytes. Frame
// assembly lives in internal/transport; this package only interprets frame
// payloads.
package protocol

// APIKey identifies a StreamBus request type.
type APIKey int16

const (
	APIKeyApiVersions   APIKey = 0
	APIKeySaslHandshake APIKey = 1
	APIKeyProduce       APIKey = 2
	APIKeyFetch         APIKey = 3
	APIKeyMetadata      APIKey = 4
)

// apiNames maps API keys to their wire-protocol names.
var apiNames = map[APIKey]string{
	APIKeyApiVersions:   "ApiVersions",
	APIKeySaslHandshake: "SaslHandshake",
	APIKeyProduce:       "Produce",
	APIKeyFetch:         "Fetch",
	APIKeyMetadata:      "Metadata",
}

// String returns the protocol name of the API key.
func (k APIKey) String() string {
	if name, ok := apiNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether the key names a request type this server knows about.
func (k APIKey) Valid() bool {
	_, ok := apiNames[k]
	return ok
}

// VersionRange is the inclusive range of request versions the server accepts
// for one API.
type VersionRange struct {
	Min int16
	Max int16
}

// SupportedVersions is the version table advertised in ApiVersions responses.
// The authentication layer only ever parses ApiVersions and SaslHandshake
// bodies, but it advertises the full table so clients can plan the
// post-authentication conversation.
var SupportedVersions = map[APIKey]VersionRange{
	APIKeyApiVersions:   {Min: 0, Max: 0},
	APIKeySaslHandshake: {Min: 0, Max: 0},
	APIKeyProduce:       {Min: 0, Max: 2},
	APIKeyFetch:         {Min: 0, Max: 2},
	APIKeyMetadata:      {Min: 0, Max: 1},
}

// InRange reports whether version v of API k is accepted by this server.
func InRange(k APIKey, v int16) bool {
	r, ok := SupportedVersions[k]
	return ok && v >= r.Min && v <= r.Max
}

// ErrorCode is a numeric error carried in response bodies.
type ErrorCode int16

const (
	ErrNone                     ErrorCode = 0
	ErrUnsupportedVersion       ErrorCode = 1
	ErrUnsupportedSaslMechanism ErrorCode = 2
	ErrIllegalSaslState         ErrorCode = 3
)

// String returns the symbolic name of the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrNone:
		return "NONE"
	case ErrUnsupportedVersion:
		return "UNSUPPORTED_VERSION"
	case ErrUnsupportedSaslMechanism:
		return "UNSUPPORTED_SASL_MECHANISM"
	case ErrIllegalSaslState:
		return "ILLEGAL_SASL_STATE"
	default:
		return "UNKNOWN"
	}
}
