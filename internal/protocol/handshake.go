package protocol

import "sort"

// SaslHandshakeRequest declares the client's chosen SASL mechanism.
//
// Body layout (v0): Mechanism string.
type SaslHandshakeRequest struct {
	Mechanism string
}

// ParseSaslHandshakeRequest decodes a SaslHandshake request body.
func ParseSaslHandshakeRequest(d *Decoder, version int16) (*SaslHandshakeRequest, error) {
	if version != 0 {
		return nil, invalidf("unsupported SaslHandshake version %d", version)
	}
	mechanism, err := d.String()
	if err != nil {
		return nil, err
	}
	return &SaslHandshakeRequest{Mechanism: mechanism}, nil
}

// SaslHandshakeResponse reports whether the requested mechanism was accepted
// and always echoes the full enabled-mechanism set so a rejected client can
// retry with a valid choice.
//
// Body layout: ErrorCode int16, then an int32-counted array of mechanism
// name strings.
type SaslHandshakeResponse struct {
	ErrorCode         ErrorCode
	EnabledMechanisms []string
}

// NewSaslHandshakeResponse builds a handshake response. The mechanism set is
// copied and sorted for a stable wire image.
func NewSaslHandshakeResponse(code ErrorCode, mechanisms []string) *SaslHandshakeResponse {
	sorted := make([]string, len(mechanisms))
	copy(sorted, mechanisms)
	sort.Strings(sorted)
	return &SaslHandshakeResponse{ErrorCode: code, EnabledMechanisms: sorted}
}

// Encode serializes the response body.
func (r *SaslHandshakeResponse) Encode() []byte {
	e := NewEncoder()
	e.Int16(int16(r.ErrorCode))
	e.Int32(int32(len(r.EnabledMechanisms)))
	for _, m := range r.EnabledMechanisms {
		e.String(m)
	}
	return e.Bytes()
}

// ParseSaslHandshakeResponse decodes a response body. Used by tests and
// client tooling.
func ParseSaslHandshakeResponse(payload []byte) (*SaslHandshakeResponse, error) {
	d := NewDecoder(payload)
	code, err := d.Int16()
	if err != nil {
		return nil, err
	}
	count, err := d.Int32()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, invalidf("negative array length %d", count)
	}
	resp := &SaslHandshakeResponse{ErrorCode: ErrorCode(code)}
	for i := int32(0); i < count; i++ {
		m, err := d.String()
		if err != nil {
			return nil, err
		}
		resp.EnabledMechanisms = append(resp.EnabledMechanisms, m)
	}
	return resp, nil
}
