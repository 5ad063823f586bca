// Package transport provides the non-blocking byte-channel abstraction the
// authentication session is driven over, together with the length-prefixed
// frame buffers that assemble inbound messages and flush outbound messages
// across partial reads and writes.
package transport

import (
	"net"
	"time"
)

// InterestFlag is a readiness-event subscription bit.
type InterestFlag int

const (
	InterestRead InterestFlag = 1 << iota
	InterestWrite
)

// Transport is a raw byte channel with interest-flag signaling.
//
// Read and Write follow a non-blocking contract: they transfer whatever the
// channel can accept right now and return (0, nil) when no progress is
// possible. Callers register interest in the corresponding readiness event
// and are resumed by their event loop.
//
// Implementations backed by blocking sockets may block in Read; the frame
// buffers only require that each call makes bounded progress.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)

	// AddInterest registers for a readiness event.
	AddInterest(flag InterestFlag)
	// RemoveInterest deregisters from a readiness event.
	RemoveInterest(flag InterestFlag)

	// LocalAddr returns the local endpoint address.
	LocalAddr() net.Addr
	// RemoteAddr returns the peer endpoint address.
	RemoteAddr() net.Addr
}

// NetTransport adapts a net.Conn to the Transport contract for the
// per-connection-goroutine server. Interest flags are no-ops because the
// goroutine itself is the readiness notification: a blocked Read or Write is
// a parked goroutine, not a stalled event loop.
type NetTransport struct {
	conn        net.Conn
	idleTimeout time.Duration
}

// NewNetTransport wraps conn. If idleTimeout is non-zero every Read and
// Write arms a deadline, enforcing the connection-level idle timeout that
// the authentication session itself deliberately does not own.
func NewNetTransport(conn net.Conn, idleTimeout time.Duration) *NetTransport {
	return &NetTransport{conn: conn, idleTimeout: idleTimeout}
}

func (t *NetTransport) Read(p []byte) (int, error) {
	if t.idleTimeout > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.idleTimeout)); err != nil {
			return 0, err
		}
	}
	return t.conn.Read(p)
}

func (t *NetTransport) Write(p []byte) (int, error) {
	if t.idleTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.idleTimeout)); err != nil {
			return 0, err
		}
	}
	return t.conn.Write(p)
}

func (t *NetTransport) AddInterest(InterestFlag)    {}
func (t *NetTransport) RemoveInterest(InterestFlag) {}

func (t *NetTransport) LocalAddr() net.Addr  { return t.conn.LocalAddr() }
func (t *NetTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }
