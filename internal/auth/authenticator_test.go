package auth

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"testing"

	"github.com/luckygong/streambus/internal/protocol"
	"github.com/luckygong/streambus/internal/transport"
	"github.com/luckygong/streambus/pkg/sasl"
)

// ============================================================================
// Test Doubles
// ============================================================================

// fakeTransport is a scripted in-memory transport. Reads drain the inbound
// buffer, writes append to the outbound buffer, and writes can be rationed
// through a byte budget to exercise partial flushes.
type fakeTransport struct {
	inbound []byte
	out     bytes.Buffer

	// limitWrites switches Write to budget mode: each Write accepts at most
	// writeBudget bytes, decrementing it, and would-block at zero.
	limitWrites bool
	writeBudget int

	interests transport.InterestFlag
	readErr   error
}

func (t *fakeTransport) Read(p []byte) (int, error) {
	if t.readErr != nil {
		return 0, t.readErr
	}
	if len(t.inbound) == 0 {
		return 0, nil
	}
	n := copy(p, t.inbound)
	t.inbound = t.inbound[n:]
	return n, nil
}

func (t *fakeTransport) Write(p []byte) (int, error) {
	n := len(p)
	if t.limitWrites {
		if t.writeBudget <= 0 {
			return 0, nil
		}
		if n > t.writeBudget {
			n = t.writeBudget
		}
		t.writeBudget -= n
	}
	t.out.Write(p[:n])
	return n, nil
}

func (t *fakeTransport) AddInterest(flag transport.InterestFlag)    { t.interests |= flag }
func (t *fakeTransport) RemoveInterest(flag transport.InterestFlag) { t.interests &^= flag }

func (t *fakeTransport) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9092}
}

func (t *fakeTransport) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 54321}
}

// fakeEngine is a scripted mechanism engine. Each Evaluate call records the
// token, emits the next scripted challenge, and completes once the script is
// exhausted.
type fakeEngine struct {
	mechanism  string
	challenges [][]byte
	failErr    error

	received [][]byte
	calls    int
	complete bool
	closed   int
}

func (e *fakeEngine) Mechanism() string { return e.mechanism }

func (e *fakeEngine) Evaluate(token []byte) ([]byte, error) {
	if e.failErr != nil {
		return nil, e.failErr
	}
	e.received = append(e.received, append([]byte(nil), token...))
	var challenge []byte
	if e.calls < len(e.challenges) {
		challenge = e.challenges[e.calls]
	}
	e.calls++
	if e.calls >= len(e.challenges) {
		e.complete = true
	}
	return challenge, nil
}

func (e *fakeEngine) Complete() bool { return e.complete }

func (e *fakeEngine) AuthorizationID() string {
	if !e.complete {
		return ""
	}
	return "alice"
}

func (e *fakeEngine) Close() error {
	e.closed++
	return nil
}

func engineFactory(engine *fakeEngine) sasl.Factory {
	return func(string) (sasl.Server, error) {
		return engine, nil
	}
}

// ============================================================================
// Frame Helpers
// ============================================================================

func frame(payload []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(len(payload)))
	return append(out, payload...)
}

func handshakeRequest(t *testing.T, version int16, mechanism string) []byte {
	t.Helper()
	e := protocol.NewEncoder()
	protocol.EncodeRequestHeader(e, &protocol.RequestHeader{
		APIKey:        protocol.APIKeySaslHandshake,
		APIVersion:    version,
		CorrelationID: 1,
		ClientID:      "test-client",
	})
	e.String(mechanism)
	return e.Bytes()
}

func apiVersionsRequest(t *testing.T, version int16, correlationID int32) []byte {
	t.Helper()
	e := protocol.NewEncoder()
	protocol.EncodeRequestHeader(e, &protocol.RequestHeader{
		APIKey:        protocol.APIKeyApiVersions,
		APIVersion:    version,
		CorrelationID: correlationID,
		ClientID:      "test-client",
	})
	return e.Bytes()
}

// popFrame splits one length-prefixed frame off the outbound capture and
// returns its payload with the correlation id already consumed.
func popFrame(t *testing.T, out *bytes.Buffer) (int32, []byte) {
	t.Helper()
	raw := out.Bytes()
	if len(raw) < 8 {
		t.Fatalf("outbound capture too short: %d bytes", len(raw))
	}
	size := binary.BigEndian.Uint32(raw[:4])
	if len(raw) < 4+int(size) {
		t.Fatalf("outbound frame truncated: prefix %d, have %d", size, len(raw)-4)
	}
	payload := raw[4 : 4+size]
	out.Next(4 + int(size))
	correlationID := int32(binary.BigEndian.Uint32(payload[:4]))
	return correlationID, payload[4:]
}

func newTestAuthenticator(t *testing.T, tr transport.Transport, factories map[string]sasl.Factory, legacy string) *Authenticator {
	t.Helper()
	registry, err := sasl.NewRegistry(factories)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	a, err := NewAuthenticator(Config{
		ConnectionID:    "conn-1",
		Listener:        "broker.test",
		Transport:       tr,
		Registry:        registry,
		LegacyMechanism: legacy,
	})
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	return a
}

// ============================================================================
// Negotiation Tests
// ============================================================================

func TestAuthenticator_HandshakeThenAuthenticate(t *testing.T) {
	engine := &fakeEngine{mechanism: "FAKE", challenges: [][]byte{[]byte("server-final")}}
	tr := &fakeTransport{}
	a := newTestAuthenticator(t, tr, map[string]sasl.Factory{
		"PLAIN": engineFactory(&fakeEngine{mechanism: "PLAIN"}),
		"FAKE":  engineFactory(engine),
	}, "FAKE")

	tr.inbound = frame(handshakeRequest(t, 0, "FAKE"))
	if err := a.Authenticate(); err != nil {
		t.Fatalf("handshake step: %v", err)
	}

	if a.State() != StateAuthenticate {
		t.Fatalf("state = %s, want AUTHENTICATE", a.State())
	}
	if a.Mechanism() != "FAKE" {
		t.Fatalf("mechanism = %q, want FAKE", a.Mechanism())
	}

	_, body := popFrame(t, &tr.out)
	resp, err := protocol.ParseSaslHandshakeResponse(body)
	if err != nil {
		t.Fatalf("parse handshake response: %v", err)
	}
	if resp.ErrorCode != protocol.ErrNone {
		t.Fatalf("error code = %s, want NONE", resp.ErrorCode)
	}
	want := []string{"FAKE", "PLAIN"}
	if len(resp.EnabledMechanisms) != 2 || resp.EnabledMechanisms[0] != want[0] || resp.EnabledMechanisms[1] != want[1] {
		t.Fatalf("enabled mechanisms = %v, want %v", resp.EnabledMechanisms, want)
	}

	// First token completes the exchange.
	tr.inbound = frame([]byte("client-token"))
	if err := a.Authenticate(); err != nil {
		t.Fatalf("token step: %v", err)
	}
	if !a.Complete() {
		t.Fatal("session not complete")
	}
	p, err := a.Principal()
	if err != nil {
		t.Fatalf("Principal: %v", err)
	}
	if p.String() != "User:alice" {
		t.Fatalf("principal = %q, want User:alice", p.String())
	}
	if string(engine.received[0]) != "client-token" {
		t.Fatalf("engine received %q", engine.received[0])
	}
}

func TestAuthenticator_UnsupportedMechanism(t *testing.T) {
	tr := &fakeTransport{}
	a := newTestAuthenticator(t, tr, map[string]sasl.Factory{
		"A": engineFactory(&fakeEngine{mechanism: "A"}),
		"B": engineFactory(&fakeEngine{mechanism: "B"}),
	}, "A")

	tr.inbound = frame(handshakeRequest(t, 0, "C"))
	err := a.Authenticate()

	var unsupported *UnsupportedMechanismError
	if !errors.As(err, &unsupported) {
		t.Fatalf("error = %v, want UnsupportedMechanismError", err)
	}
	if unsupported.Mechanism != "C" {
		t.Fatalf("rejected mechanism = %q", unsupported.Mechanism)
	}
	if !errors.Is(err, sasl.ErrUnsupportedMechanism) {
		t.Fatal("error does not unwrap to ErrUnsupportedMechanism")
	}
	if a.State() != StateFailed {
		t.Fatalf("state = %s, want FAILED", a.State())
	}

	// The rejection still reaches the client with the full enabled set.
	_, body := popFrame(t, &tr.out)
	resp, err := protocol.ParseSaslHandshakeResponse(body)
	if err != nil {
		t.Fatalf("parse handshake response: %v", err)
	}
	if resp.ErrorCode != protocol.ErrUnsupportedSaslMechanism {
		t.Fatalf("error code = %s, want UNSUPPORTED_SASL_MECHANISM", resp.ErrorCode)
	}
	if len(resp.EnabledMechanisms) != 2 || resp.EnabledMechanisms[0] != "A" || resp.EnabledMechanisms[1] != "B" {
		t.Fatalf("enabled mechanisms = %v, want [A B]", resp.EnabledMechanisms)
	}

	if err := a.Authenticate(); !errors.Is(err, ErrFailed) {
		t.Fatalf("driving failed session: %v, want ErrFailed", err)
	}
}

func TestAuthenticator_ApiVersionsNegotiation(t *testing.T) {
	engine := &fakeEngine{mechanism: "FAKE", challenges: [][]byte{nil}}
	tr := &fakeTransport{}
	a := newTestAuthenticator(t, tr, map[string]sasl.Factory{"FAKE": engineFactory(engine)}, "FAKE")

	t.Run("unsupported version gets error response", func(t *testing.T) {
		tr.inbound = frame(apiVersionsRequest(t, 9, 7))
		if err := a.Authenticate(); err != nil {
			t.Fatalf("Authenticate: %v", err)
		}
		correlationID, body := popFrame(t, &tr.out)
		if correlationID != 7 {
			t.Fatalf("correlation id = %d, want 7", correlationID)
		}
		resp, err := protocol.ParseApiVersionsResponse(body)
		if err != nil {
			t.Fatalf("parse response: %v", err)
		}
		if resp.ErrorCode != protocol.ErrUnsupportedVersion {
			t.Fatalf("error code = %s, want UNSUPPORTED_VERSION", resp.ErrorCode)
		}
		if a.State() != StateHandshake {
			t.Fatalf("state = %s, want HANDSHAKE", a.State())
		}
	})

	t.Run("v0 retry advertises version table", func(t *testing.T) {
		tr.inbound = frame(apiVersionsRequest(t, 0, 8))
		if err := a.Authenticate(); err != nil {
			t.Fatalf("Authenticate: %v", err)
		}
		correlationID, body := popFrame(t, &tr.out)
		if correlationID != 8 {
			t.Fatalf("correlation id = %d, want 8", correlationID)
		}
		resp, err := protocol.ParseApiVersionsResponse(body)
		if err != nil {
			t.Fatalf("parse response: %v", err)
		}
		if resp.ErrorCode != protocol.ErrNone {
			t.Fatalf("error code = %s, want NONE", resp.ErrorCode)
		}
		if len(resp.Versions) != len(protocol.SupportedVersions) {
			t.Fatalf("advertised %d apis, want %d", len(resp.Versions), len(protocol.SupportedVersions))
		}
	})

	t.Run("handshake still possible afterwards", func(t *testing.T) {
		tr.inbound = frame(handshakeRequest(t, 0, "FAKE"))
		if err := a.Authenticate(); err != nil {
			t.Fatalf("Authenticate: %v", err)
		}
		if a.State() != StateAuthenticate {
			t.Fatalf("state = %s, want AUTHENTICATE", a.State())
		}
	})
}

func TestAuthenticator_DisallowedAPIBeforeAuth(t *testing.T) {
	// A valid header with a disallowed key is an unambiguous protocol
	// request; the legacy window must not swallow it.
	tr := &fakeTransport{}
	a := newTestAuthenticator(t, tr, map[string]sasl.Factory{
		"FAKE": engineFactory(&fakeEngine{mechanism: "FAKE"}),
	}, "FAKE")

	e := protocol.NewEncoder()
	protocol.EncodeRequestHeader(e, &protocol.RequestHeader{
		APIKey:        protocol.APIKeyProduce,
		APIVersion:    0,
		CorrelationID: 3,
	})
	tr.inbound = frame(e.Bytes())

	if err := a.Authenticate(); err == nil {
		t.Fatal("expected error for Produce before authentication")
	}
	if a.State() != StateFailed {
		t.Fatalf("state = %s, want FAILED", a.State())
	}
	if tr.out.Len() != 0 {
		t.Fatal("no response expected for disallowed api")
	}
}

// ============================================================================
// Legacy Fallback Tests
// ============================================================================

func TestAuthenticator_LegacyFallback(t *testing.T) {
	engine := &fakeEngine{mechanism: "FAKE", challenges: [][]byte{[]byte("ap-rep")}}
	tr := &fakeTransport{}
	a := newTestAuthenticator(t, tr, map[string]sasl.Factory{"FAKE": engineFactory(engine)}, "FAKE")

	// 0x60 is a GSS initial context token tag; as an int16 api key it is
	// far out of range, so header parsing fails and the frame is treated as
	// the first mechanism token.
	legacyToken := []byte{0x60, 0x42, 0x06, 0x09, 0x01, 0x02}
	tr.inbound = frame(legacyToken)
	if err := a.Authenticate(); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if !a.Complete() {
		t.Fatal("session not complete after legacy exchange")
	}
	if a.Mechanism() != "FAKE" {
		t.Fatalf("mechanism = %q, want FAKE", a.Mechanism())
	}
	if len(engine.received) != 1 || !bytes.Equal(engine.received[0], legacyToken) {
		t.Fatalf("engine received %v, want the raw first frame", engine.received)
	}

	// The challenge went out as a plain frame with no response header.
	raw := tr.out.Bytes()
	size := binary.BigEndian.Uint32(raw[:4])
	if string(raw[4:4+size]) != "ap-rep" {
		t.Fatalf("outbound token = %q, want ap-rep", raw[4:4+size])
	}
}

func TestAuthenticator_LegacyAndHandshakePathsConverge(t *testing.T) {
	// The same mechanism reached via fallback or via explicit handshake must
	// land in the same authenticated state given the same tokens.
	run := func(t *testing.T, legacyPath bool) *Authenticator {
		engine := &fakeEngine{mechanism: "FAKE", challenges: [][]byte{nil}}
		tr := &fakeTransport{}
		a := newTestAuthenticator(t, tr, map[string]sasl.Factory{"FAKE": engineFactory(engine)}, "FAKE")

		if legacyPath {
			tr.inbound = frame([]byte{0x60, 0x01, 0x02})
		} else {
			tr.inbound = frame(handshakeRequest(t, 0, "FAKE"))
			if err := a.Authenticate(); err != nil {
				t.Fatalf("handshake: %v", err)
			}
			if a.State() != StateAuthenticate {
				t.Fatalf("state = %s, want AUTHENTICATE", a.State())
			}
			tr.inbound = frame([]byte{0x60, 0x01, 0x02})
		}
		if err := a.Authenticate(); err != nil {
			t.Fatalf("token: %v", err)
		}
		return a
	}

	legacy := run(t, true)
	negotiated := run(t, false)

	for _, a := range []*Authenticator{legacy, negotiated} {
		if !a.Complete() {
			t.Fatal("session not complete")
		}
		p, err := a.Principal()
		if err != nil {
			t.Fatalf("Principal: %v", err)
		}
		if p.String() != "User:alice" {
			t.Fatalf("principal = %q", p.String())
		}
	}
}

func TestAuthenticator_LegacyFallbackUnavailable(t *testing.T) {
	constructed := false
	factories := map[string]sasl.Factory{
		"PLAIN": func(string) (sasl.Server, error) {
			constructed = true
			return &fakeEngine{mechanism: "PLAIN"}, nil
		},
	}
	tr := &fakeTransport{}
	a := newTestAuthenticator(t, tr, factories, "GSSAPI")

	tr.inbound = frame([]byte{0x60, 0x01, 0x02})
	err := a.Authenticate()

	var unsupported *UnsupportedMechanismError
	if !errors.As(err, &unsupported) {
		t.Fatalf("error = %v, want UnsupportedMechanismError", err)
	}
	if unsupported.Mechanism != "GSSAPI" {
		t.Fatalf("mechanism = %q, want GSSAPI", unsupported.Mechanism)
	}
	if a.State() != StateFailed {
		t.Fatalf("state = %s, want FAILED", a.State())
	}
	if constructed {
		t.Fatal("engine constructed despite unavailable fallback")
	}
}

// ============================================================================
// Partial I/O Tests
// ============================================================================

func TestAuthenticator_ByteAtATimeDelivery(t *testing.T) {
	engine := &fakeEngine{mechanism: "FAKE", challenges: [][]byte{nil}}
	tr := &fakeTransport{}
	a := newTestAuthenticator(t, tr, map[string]sasl.Factory{"FAKE": engineFactory(engine)}, "FAKE")

	full := frame(handshakeRequest(t, 0, "FAKE"))
	for i, b := range full {
		tr.inbound = []byte{b}
		if err := a.Authenticate(); err != nil {
			t.Fatalf("byte %d: %v", i, err)
		}
		if i < len(full)-1 && a.State() != StateInitialOrLegacy {
			t.Fatalf("state advanced to %s after %d of %d bytes", a.State(), i+1, len(full))
		}
	}

	if a.State() != StateAuthenticate {
		t.Fatalf("state = %s, want AUTHENTICATE", a.State())
	}
	_, body := popFrame(t, &tr.out)
	resp, err := protocol.ParseSaslHandshakeResponse(body)
	if err != nil {
		t.Fatalf("parse handshake response: %v", err)
	}
	if resp.ErrorCode != protocol.ErrNone {
		t.Fatalf("error code = %s", resp.ErrorCode)
	}
}

func TestAuthenticator_SlowWriterDefersCompletion(t *testing.T) {
	engine := &fakeEngine{mechanism: "FAKE", challenges: [][]byte{[]byte("final-token")}}
	tr := &fakeTransport{limitWrites: true}
	a := newTestAuthenticator(t, tr, map[string]sasl.Factory{"FAKE": engineFactory(engine)}, "FAKE")

	tr.inbound = frame([]byte("client-token"))
	if err := a.Authenticate(); err != nil {
		t.Fatalf("token step: %v", err)
	}

	// The engine is done but its final token is stuck in the outbound
	// buffer, so completion must not be observable yet.
	if a.Complete() {
		t.Fatal("complete before final token flushed")
	}
	if tr.interests&transport.InterestWrite == 0 {
		t.Fatal("write interest not registered while flush pending")
	}

	// Drain one byte per call. No new inbound data may be touched, no byte
	// may be written twice, and completion becomes visible exactly when the
	// frame finishes.
	tr.inbound = frame([]byte("must-not-be-read"))
	wantOut := frame([]byte("final-token"))
	for i := 0; i < len(wantOut); i++ {
		if a.Complete() {
			t.Fatalf("complete after %d of %d bytes flushed", i, len(wantOut))
		}
		tr.writeBudget = 1
		if err := a.Authenticate(); err != nil {
			t.Fatalf("flush step %d: %v", i, err)
		}
	}

	if !a.Complete() {
		t.Fatal("not complete after full flush")
	}
	if !bytes.Equal(tr.out.Bytes(), wantOut) {
		t.Fatalf("outbound = %x, want %x", tr.out.Bytes(), wantOut)
	}
	if tr.interests&transport.InterestWrite != 0 {
		t.Fatal("write interest not cleared after flush")
	}
	if len(engine.received) != 1 {
		t.Fatalf("engine evaluated %d tokens while flush pending, want 1", len(engine.received))
	}
}

func TestAuthenticator_ChallengesFlushedInOrder(t *testing.T) {
	engine := &fakeEngine{mechanism: "FAKE", challenges: [][]byte{[]byte("one"), []byte("two")}}
	tr := &fakeTransport{limitWrites: true}
	a := newTestAuthenticator(t, tr, map[string]sasl.Factory{"FAKE": engineFactory(engine)}, "FAKE")

	// Both client tokens are queued up front; the session must still flush
	// challenge one completely before it reads the second token.
	tr.inbound = append(frame([]byte("t1")), frame([]byte("t2"))...)
	for i := 0; i < 128 && !a.Complete(); i++ {
		tr.writeBudget = 1
		if err := a.Authenticate(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	if !a.Complete() {
		t.Fatal("session not complete")
	}
	want := append(frame([]byte("one")), frame([]byte("two"))...)
	if !bytes.Equal(tr.out.Bytes(), want) {
		t.Fatalf("outbound = %x, want %x", tr.out.Bytes(), want)
	}
	if len(engine.received) != 2 {
		t.Fatalf("engine evaluated %d tokens, want 2", len(engine.received))
	}
}

// ============================================================================
// Failure and Lifecycle Tests
// ============================================================================

func TestAuthenticator_EvaluationFailure(t *testing.T) {
	engine := &fakeEngine{mechanism: "FAKE", failErr: sasl.ErrAuthenticationFailed}
	tr := &fakeTransport{}
	a := newTestAuthenticator(t, tr, map[string]sasl.Factory{"FAKE": engineFactory(engine)}, "FAKE")

	tr.inbound = frame(handshakeRequest(t, 0, "FAKE"))
	if err := a.Authenticate(); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	tr.inbound = frame([]byte("bad-token"))
	if err := a.Authenticate(); !errors.Is(err, sasl.ErrAuthenticationFailed) {
		t.Fatalf("error = %v, want ErrAuthenticationFailed", err)
	}
	if a.State() != StateFailed {
		t.Fatalf("state = %s, want FAILED", a.State())
	}
}

func TestAuthenticator_GarbageAfterHandshakeStateIsFatal(t *testing.T) {
	// The legacy window only covers the very first frame.
	tr := &fakeTransport{}
	a := newTestAuthenticator(t, tr, map[string]sasl.Factory{
		"FAKE": engineFactory(&fakeEngine{mechanism: "FAKE"}),
	}, "FAKE")

	tr.inbound = frame(apiVersionsRequest(t, 0, 1))
	if err := a.Authenticate(); err != nil {
		t.Fatalf("ApiVersions: %v", err)
	}
	popFrame(t, &tr.out)

	tr.inbound = frame([]byte{0x60, 0x01, 0x02})
	if err := a.Authenticate(); err == nil {
		t.Fatal("expected error for garbage after handshake began")
	}
	if a.State() != StateFailed {
		t.Fatalf("state = %s, want FAILED", a.State())
	}
}

func TestAuthenticator_ReadError(t *testing.T) {
	tr := &fakeTransport{readErr: errors.New("connection reset")}
	a := newTestAuthenticator(t, tr, map[string]sasl.Factory{
		"FAKE": engineFactory(&fakeEngine{mechanism: "FAKE"}),
	}, "FAKE")

	if err := a.Authenticate(); err == nil {
		t.Fatal("expected read error")
	}
	if a.State() != StateFailed {
		t.Fatalf("state = %s, want FAILED", a.State())
	}
}

func TestAuthenticator_CloseReleasesEngine(t *testing.T) {
	engine := &fakeEngine{mechanism: "FAKE", challenges: [][]byte{nil}}
	tr := &fakeTransport{}
	a := newTestAuthenticator(t, tr, map[string]sasl.Factory{"FAKE": engineFactory(engine)}, "FAKE")

	tr.inbound = frame(handshakeRequest(t, 0, "FAKE"))
	if err := a.Authenticate(); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if engine.closed != 1 {
		t.Fatalf("engine closed %d times, want 1", engine.closed)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if engine.closed != 1 {
		t.Fatal("Close is not idempotent")
	}

	if err := a.Authenticate(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Authenticate after Close: %v, want ErrClosed", err)
	}
	if engine.calls != 0 {
		t.Fatal("engine touched after Close")
	}
}

func TestNewAuthenticator_Validation(t *testing.T) {
	registry, err := sasl.NewRegistry(map[string]sasl.Factory{
		"FAKE": engineFactory(&fakeEngine{mechanism: "FAKE"}),
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	t.Run("nil transport", func(t *testing.T) {
		if _, err := NewAuthenticator(Config{Registry: registry}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("nil registry", func(t *testing.T) {
		if _, err := NewAuthenticator(Config{Transport: &fakeTransport{}}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("empty registry rejected at registry construction", func(t *testing.T) {
		if _, err := sasl.NewRegistry(nil); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestAuthenticator_PrincipalBeforeCompletion(t *testing.T) {
	tr := &fakeTransport{}
	a := newTestAuthenticator(t, tr, map[string]sasl.Factory{
		"FAKE": engineFactory(&fakeEngine{mechanism: "FAKE"}),
	}, "FAKE")

	if _, err := a.Principal(); err == nil {
		t.Fatal("expected error before completion")
	}
}
