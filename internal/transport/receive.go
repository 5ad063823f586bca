package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Receive accumulates one length-prefixed inbound frame across multiple
// non-blocking reads.
//
// The wire format is a 4-byte big-endian payload length N followed by
// exactly N opaque payload bytes. A Receive holds at most one frame; the
// owner discards it once the payload has been consumed.
type Receive struct {
	maxSize int
	source  string

	sizeBuf  [4]byte
	sizeRead int

	payload     []byte
	payloadRead int
}

// NewReceive returns a Receive that rejects frames larger than maxSize
// bytes. source identifies the connection in error messages.
func NewReceive(maxSize int, source string) *Receive {
	return &Receive{maxSize: maxSize, source: source}
}

// ReadFrom pulls whatever bytes the transport can deliver right now into the
// frame, first completing the size prefix and then the payload. It returns
// the number of bytes consumed. A (0, nil) read from the transport ends the
// call; the caller waits for the next read-readiness notification.
func (r *Receive) ReadFrom(t io.Reader) (int, error) {
	var total int

	for r.sizeRead < len(r.sizeBuf) {
		n, err := t.Read(r.sizeBuf[r.sizeRead:])
		total += n
		r.sizeRead += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
	}

	if r.payload == nil {
		size := binary.BigEndian.Uint32(r.sizeBuf[:])
		if int64(size) > int64(r.maxSize) {
			return total, fmt.Errorf("frame from %s too large: %d bytes (limit %d)", r.source, size, r.maxSize)
		}
		r.payload = make([]byte, size)
	}

	for r.payloadRead < len(r.payload) {
		n, err := t.Read(r.payload[r.payloadRead:])
		total += n
		r.payloadRead += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
	}

	return total, nil
}

// Complete reports whether a full frame has been assembled.
func (r *Receive) Complete() bool {
	return r.payload != nil && r.payloadRead == len(r.payload)
}

// Payload returns the assembled frame payload. Valid only once Complete
// reports true; an empty frame yields an empty (non-nil) slice.
func (r *Receive) Payload() []byte {
	return r.payload
}
