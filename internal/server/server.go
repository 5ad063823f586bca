// Package server accepts broker connections and drives each one through the
// authentication handshake before handing it to the post-authentication
// handler. One goroutine owns each connection for its whole lifetime; the
// non-blocking session contract is satisfied trivially because a parked
// goroutine is its own readiness notification.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/luckygong/streambus/internal/auth"
	"github.com/luckygong/streambus/internal/logger"
	"github.com/luckygong/streambus/internal/transport"
	"github.com/luckygong/streambus/pkg/metrics"
	"github.com/luckygong/streambus/pkg/principal"
	"github.com/luckygong/streambus/pkg/sasl"
)

// DefaultMaxConnections bounds concurrent connections per listener.
const DefaultMaxConnections = 1024

// Handler consumes a connection once authentication succeeds. The handler
// owns the connection and must close it.
type Handler interface {
	ServeConn(conn net.Conn, p principal.Principal, mechanism string)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(conn net.Conn, p principal.Principal, mechanism string)

func (f HandlerFunc) ServeConn(conn net.Conn, p principal.Principal, mechanism string) {
	f(conn, p, mechanism)
}

// Config holds the listener configuration.
type Config struct {
	// BindAddr is the TCP address to listen on, e.g. ":9092".
	BindAddr string

	// ListenerName identifies this listener in logs and principal contexts.
	ListenerName string

	// Registry holds the mechanisms enabled on this listener.
	Registry *sasl.Registry

	// PrincipalBuilder derives caller identities; nil uses the default.
	PrincipalBuilder principal.Builder

	// Handler receives authenticated connections. nil closes them, which is
	// useful for tests that only exercise the handshake.
	Handler Handler

	// IdleTimeout bounds silence on a connection during authentication.
	IdleTimeout time.Duration

	// MaxReceiveSize bounds inbound frame payloads during authentication.
	MaxReceiveSize int

	// MaxConnections bounds concurrent connections; 0 uses the default.
	MaxConnections int

	// Metrics is optional; nil disables collection.
	Metrics metrics.AuthMetrics
}

// Server is one authenticating TCP listener.
type Server struct {
	config   Config
	listener net.Listener

	shutdown      chan struct{}
	shutdownOnce  sync.Once
	listenerReady chan struct{}
	connSemaphore chan struct{}
	wg            sync.WaitGroup
	activeConns   atomic.Int32
}

// NewServer validates cfg and builds a Server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.BindAddr == "" {
		return nil, errors.New("server: bind address is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("server: mechanism registry is required")
	}
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = DefaultMaxConnections
	}
	return &Server{
		config:        cfg,
		shutdown:      make(chan struct{}),
		listenerReady: make(chan struct{}),
		connSemaphore: make(chan struct{}, maxConns),
	}, nil
}

// Serve binds the listener and accepts connections until the context is
// cancelled or Stop is called.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.BindAddr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.config.BindAddr, err)
	}
	s.listener = listener
	close(s.listenerReady)

	logger.Info("Listener started",
		logger.Listener(s.config.ListenerName),
		"address", listener.Addr().String(),
		"mechanisms", s.config.Registry.Mechanisms(),
	)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.shutdown:
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				s.wg.Wait()
				return nil
			default:
				s.wg.Wait()
				return fmt.Errorf("server: accept: %w", err)
			}
		}

		select {
		case s.connSemaphore <- struct{}{}:
		default:
			logger.Warn("Connection limit reached, rejecting",
				logger.Listener(s.config.ListenerName),
				logger.ClientIP(conn.RemoteAddr().String()),
			)
			_ = conn.Close()
			continue
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer func() { <-s.connSemaphore }()
			s.handleConn(c)
		}(conn)
	}
}

// WaitReady returns a channel closed once the listener is bound. The
// listener address is valid afterwards.
func (s *Server) WaitReady() <-chan struct{} {
	return s.listenerReady
}

// Addr returns the bound listener address. Valid only after WaitReady.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop closes the listener and stops accepting. Safe to call multiple times.
func (s *Server) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// ActiveConnections returns the number of connections currently being served.
func (s *Server) ActiveConnections() int32 {
	return s.activeConns.Load()
}

// handleConn drives one connection through authentication and hands it off.
func (s *Server) handleConn(conn net.Conn) {
	connID := uuid.NewString()
	clientAddr := conn.RemoteAddr().String()

	active := s.activeConns.Add(1)
	if s.config.Metrics != nil {
		s.config.Metrics.RecordConnectionAccepted()
		s.config.Metrics.SetActiveSessions(active)
	}
	defer func() {
		active := s.activeConns.Add(-1)
		if s.config.Metrics != nil {
			s.config.Metrics.RecordConnectionClosed()
			s.config.Metrics.SetActiveSessions(active)
		}
	}()

	logger.Debug("Connection accepted",
		logger.ConnID(connID),
		logger.Listener(s.config.ListenerName),
		logger.ClientIP(clientAddr),
	)

	session, err := auth.NewAuthenticator(auth.Config{
		ConnectionID:     connID,
		Listener:         s.config.ListenerName,
		Transport:        transport.NewNetTransport(conn, s.config.IdleTimeout),
		Registry:         s.config.Registry,
		PrincipalBuilder: s.config.PrincipalBuilder,
		MaxReceiveSize:   s.config.MaxReceiveSize,
		Metrics:          s.config.Metrics,
	})
	if err != nil {
		logger.Error("Failed to create authentication session",
			logger.ConnID(connID),
			logger.Err(err),
		)
		_ = conn.Close()
		return
	}
	defer func() { _ = session.Close() }()

	// A blocking transport makes every Authenticate call progress, so the
	// loop terminates on completion or error.
	for !session.Complete() {
		if err := session.Authenticate(); err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Info("Authentication failed",
					logger.ConnID(connID),
					logger.ClientIP(clientAddr),
					logger.Mechanism(session.Mechanism()),
					logger.Err(err),
				)
			}
			_ = conn.Close()
			return
		}
	}

	p, err := session.Principal()
	if err != nil {
		logger.Error("Principal unavailable after completion",
			logger.ConnID(connID),
			logger.Err(err),
		)
		_ = conn.Close()
		return
	}

	if s.config.Handler == nil {
		_ = conn.Close()
		return
	}
	s.config.Handler.ServeConn(conn, p, session.Mechanism())
}
