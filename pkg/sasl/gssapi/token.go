package gssapi

import "fmt"

// krb5OID is the ASN.1 encoded OID for the krb5 mechanism
// (1.2.840.113554.1.2.2), including its tag and length bytes.
var krb5OID = []byte{0x06, 0x09, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x12, 0x01, 0x02, 0x02}

// RFC 1964 inner token IDs.
const (
	tokenIDAPReq uint16 = 0x0100
	tokenIDAPRep uint16 = 0x0200
)

// unwrapInitialToken strips the GSS-API initial context token wrapper
// (RFC 2743 section 3.1) and the RFC 1964 two-byte token ID, returning the
// raw AP-REQ bytes. A token that does not start with the 0x60 application
// tag is treated as a raw AP-REQ.
func unwrapInitialToken(token []byte) ([]byte, error) {
	if len(token) < 2 {
		return nil, fmt.Errorf("token too short: %d bytes", len(token))
	}
	if token[0] != 0x60 {
		return token, nil
	}

	offset := 1
	length, lengthBytes, err := parseASN1Length(token[offset:])
	if err != nil {
		return nil, fmt.Errorf("parse token length: %w", err)
	}
	offset += lengthBytes
	if offset+length > len(token) {
		return nil, fmt.Errorf("token truncated: expected %d bytes, have %d", offset+length, len(token))
	}

	if offset >= len(token) || token[offset] != 0x06 {
		return nil, fmt.Errorf("expected OID tag at offset %d", offset)
	}
	offset++
	if offset >= len(token) {
		return nil, fmt.Errorf("truncated OID length")
	}
	oidLen := int(token[offset])
	offset++
	offset += oidLen
	if offset > len(token) {
		return nil, fmt.Errorf("truncated after OID")
	}

	if offset+2 > len(token) {
		return nil, fmt.Errorf("truncated token ID")
	}
	tokenID := uint16(token[offset])<<8 | uint16(token[offset+1])
	if tokenID != tokenIDAPReq {
		return nil, fmt.Errorf("unexpected krb5 token ID 0x%04x, want AP-REQ", tokenID)
	}
	offset += 2

	return token[offset:], nil
}

// wrapToken wraps a Kerberos message in a GSS-API MechToken:
// 0x60, ASN.1 length, krb5 OID, token ID, inner token.
func wrapToken(inner []byte, tokenID uint16) []byte {
	content := make([]byte, 0, len(krb5OID)+2+len(inner))
	content = append(content, krb5OID...)
	content = append(content, byte(tokenID>>8), byte(tokenID))
	content = append(content, inner...)

	lengthBytes := encodeASN1Length(len(content))
	out := make([]byte, 0, 1+len(lengthBytes)+len(content))
	out = append(out, 0x60)
	out = append(out, lengthBytes...)
	out = append(out, content...)
	return out
}

func encodeASN1Length(length int) []byte {
	if length < 128 {
		return []byte{byte(length)}
	}
	var out []byte
	for length > 0 {
		out = append([]byte{byte(length)}, out...)
		length >>= 8
	}
	return append([]byte{byte(0x80 | len(out))}, out...)
}

func parseASN1Length(data []byte) (int, int, error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("empty length field")
	}

	first := data[0]
	if first < 0x80 {
		return int(first), 1, nil
	}

	numBytes := int(first & 0x7f)
	if numBytes == 0 || numBytes > 4 {
		return 0, 0, fmt.Errorf("invalid ASN.1 length of %d bytes", numBytes)
	}
	if 1+numBytes > len(data) {
		return 0, 0, fmt.Errorf("truncated ASN.1 length")
	}

	length := 0
	for i := 1; i <= numBytes; i++ {
		length = length<<8 | int(data[i])
	}
	return length, 1 + numBytes, nil
}
