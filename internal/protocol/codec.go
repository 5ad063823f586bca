package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidRequest marks payload bytes that do not form a well-formed
// StreamBus request: header underflow, negative or truncated string lengths,
// or an API key outside the known table.
//
// The authentication session treats this error class as ambiguous with a raw
// legacy mechanism token on the very first frame of a connection. Errors that
// occur after a header has parsed cleanly (disallowed API key, unsupported
// version) are deliberately NOT wrapped in ErrInvalidRequest: a clean header
// proves the client speaks the framed protocol, so no fallback applies.
var ErrInvalidRequest = errors.New("protocol: invalid request")

// invalidf wraps a decode failure so it matches ErrInvalidRequest.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidRequest}, args...)...)
}

// Decoder reads primitive values from a request payload.
//
// All multi-byte integers are big-endian. Strings are int16 length-prefixed
// UTF-8; a length of -1 denotes a null string where the schema allows it.
// Every decode failure satisfies errors.Is(err, ErrInvalidRequest).
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder returns a Decoder positioned at the start of buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.off
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, invalidf("need %d bytes, have %d", n, d.Remaining())
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

// Int16 decodes a big-endian int16.
func (d *Decoder) Int16() (int16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

// Int32 decodes a big-endian int32.
func (d *Decoder) Int32() (int32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// String decodes a non-null length-prefixed string.
func (d *Decoder) String() (string, error) {
	n, err := d.Int16()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", invalidf("null string where non-null required")
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// NullableString decodes a length-prefixed string that may be null (-1).
func (d *Decoder) NullableString() (*string, error) {
	n, err := d.Int16()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	if n < 0 {
		return nil, invalidf("negative string length %d", n)
	}
	b, err := d.take(int(n))
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

// Encoder appends primitive values to a response payload.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the encoded payload.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Int16 appends a big-endian int16.
func (e *Encoder) Int16(v int16) {
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(v))
}

// Int32 appends a big-endian int32.
func (e *Encoder) Int32(v int32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
}

// String appends an int16 length-prefixed string.
func (e *Encoder) String(s string) {
	e.Int16(int16(len(s)))
	e.buf = append(e.buf, s...)
}
