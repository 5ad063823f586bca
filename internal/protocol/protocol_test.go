package protocol

import (
	"errors"
	"testing"
)

func buildRequest(t *testing.T, h *RequestHeader, body []byte) []byte {
	t.Helper()
	e := NewEncoder()
	EncodeRequestHeader(e, h)
	return append(e.Bytes(), body...)
}

// =============================================================================
// Request Header Tests
// =============================================================================

func TestParseRequestHeader_RoundTrip(t *testing.T) {
	in := &RequestHeader{
		APIKey:        APIKeySaslHandshake,
		APIVersion:    0,
		CorrelationID: 7,
		ClientID:      "client-1",
	}
	payload := buildRequest(t, in, nil)

	h, d, err := ParseRequestHeader(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.APIKey != in.APIKey || h.APIVersion != in.APIVersion ||
		h.CorrelationID != in.CorrelationID || h.ClientID != in.ClientID {
		t.Errorf("header mismatch: got %+v want %+v", h, in)
	}
	if d.Remaining() != 0 {
		t.Errorf("expected empty body, %d bytes remain", d.Remaining())
	}
}

func TestParseRequestHeader_NullClientID(t *testing.T) {
	in := &RequestHeader{APIKey: APIKeyApiVersions, CorrelationID: 1}
	payload := buildRequest(t, in, nil)

	h, _, err := ParseRequestHeader(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ClientID != "" {
		t.Errorf("expected empty client id, got %q", h.ClientID)
	}
}

func TestParseRequestHeader_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
	}{
		{"Empty", nil},
		{"Truncated", []byte{0x00}},
		{"HeaderUnderflow", []byte{0x00, 0x01, 0x00, 0x00}},
		// 0x6030 is far outside the API table; typical first byte of a
		// GSS-API initial context token.
		{"UnknownAPIKey", []byte{0x60, 0x30, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0xff, 0xff}},
		{"TruncatedClientID", []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x10, 'x'}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParseRequestHeader(tc.payload)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

// =============================================================================
// ApiVersions Tests
// =============================================================================

func TestApiVersionsResponse_RoundTrip(t *testing.T) {
	resp := NewApiVersionsResponse()
	if resp.ErrorCode != ErrNone {
		t.Fatalf("expected ErrNone, got %v", resp.ErrorCode)
	}

	parsed, err := ParseApiVersionsResponse(resp.Encode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed.Versions) != len(SupportedVersions) {
		t.Fatalf("expected %d versions, got %d", len(SupportedVersions), len(parsed.Versions))
	}
	for _, v := range parsed.Versions {
		r, ok := SupportedVersions[v.APIKey]
		if !ok {
			t.Errorf("unexpected api key %v in response", v.APIKey)
			continue
		}
		if v.MinVersion != r.Min || v.MaxVersion != r.Max {
			t.Errorf("%v: got [%d,%d] want [%d,%d]", v.APIKey, v.MinVersion, v.MaxVersion, r.Min, r.Max)
		}
	}

	// Sorted by API key.
	for i := 1; i < len(parsed.Versions); i++ {
		if parsed.Versions[i-1].APIKey >= parsed.Versions[i].APIKey {
			t.Errorf("versions not sorted at index %d", i)
		}
	}
}

// =============================================================================
// SaslHandshake Tests
// =============================================================================

func TestSaslHandshakeRequest_RoundTrip(t *testing.T) {
	e := NewEncoder()
	e.String("SCRAM-SHA-256")

	req, err := ParseSaslHandshakeRequest(NewDecoder(e.Bytes()), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Mechanism != "SCRAM-SHA-256" {
		t.Errorf("expected SCRAM-SHA-256, got %q", req.Mechanism)
	}
}

func TestSaslHandshakeRequest_TruncatedMechanism(t *testing.T) {
	_, err := ParseSaslHandshakeRequest(NewDecoder([]byte{0x00, 0x20, 'P'}), 0)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestSaslHandshakeResponse_RoundTrip(t *testing.T) {
	resp := NewSaslHandshakeResponse(ErrUnsupportedSaslMechanism, []string{"PLAIN", "GSSAPI"})

	parsed, err := ParseSaslHandshakeResponse(resp.Encode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.ErrorCode != ErrUnsupportedSaslMechanism {
		t.Errorf("expected UNSUPPORTED_SASL_MECHANISM, got %v", parsed.ErrorCode)
	}
	// Mechanism set is sorted on encode.
	want := []string{"GSSAPI", "PLAIN"}
	if len(parsed.EnabledMechanisms) != len(want) {
		t.Fatalf("expected %d mechanisms, got %d", len(want), len(parsed.EnabledMechanisms))
	}
	for i, m := range want {
		if parsed.EnabledMechanisms[i] != m {
			t.Errorf("mechanism[%d]: got %q want %q", i, parsed.EnabledMechanisms[i], m)
		}
	}
}

// =============================================================================
// Version Table Tests
// =============================================================================

func TestInRange(t *testing.T) {
	if !InRange(APIKeyApiVersions, 0) {
		t.Error("ApiVersions v0 should be in range")
	}
	if InRange(APIKeyApiVersions, 1) {
		t.Error("ApiVersions v1 should be out of range")
	}
	if InRange(APIKey(99), 0) {
		t.Error("unknown api key should never be in range")
	}
}

func TestEncodeResponse_EchoesCorrelationID(t *testing.T) {
	h := &RequestHeader{APIKey: APIKeyApiVersions, CorrelationID: 0x01020304}
	payload := EncodeResponse(h, []byte{0xAA})

	d := NewDecoder(payload)
	cid, err := d.Int32()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cid != 0x01020304 {
		t.Errorf("correlation id not echoed: got %#x", cid)
	}
	if d.Remaining() != 1 {
		t.Errorf("expected 1 body byte, got %d", d.Remaining())
	}
}
