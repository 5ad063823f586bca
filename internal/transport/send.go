package transport

import (
	"encoding/binary"
	"io"
)

// Send buffers one length-prefixed outbound frame and flushes it across
// multiple non-blocking writes.
type Send struct {
	destination string
	buf         []byte
	written     int
}

// NewSend frames payload with its 4-byte big-endian length prefix.
// destination identifies the connection in diagnostics.
func NewSend(destination string, payload []byte) *Send {
	buf := make([]byte, 0, 4+len(payload))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	return &Send{destination: destination, buf: buf}
}

// WriteTo pushes as much of the remaining frame as the transport accepts
// right now and returns the number of bytes written. A (0, nil) write ends
// the call; the caller registers write interest and retries on the next
// readiness notification.
func (s *Send) WriteTo(t io.Writer) (int, error) {
	var total int
	for s.written < len(s.buf) {
		n, err := t.Write(s.buf[s.written:])
		total += n
		s.written += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
	}
	return total, nil
}

// Completed reports whether the whole frame has been flushed.
func (s *Send) Completed() bool {
	return s.written == len(s.buf)
}

// Destination returns the connection identifier this frame is bound for.
func (s *Send) Destination() string {
	return s.destination
}
