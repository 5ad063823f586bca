package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/luckygong/streambus/internal/logger"
	"github.com/luckygong/streambus/internal/server"
	"github.com/luckygong/streambus/pkg/api"
	"github.com/luckygong/streambus/pkg/config"
	"github.com/luckygong/streambus/pkg/identity"
	"github.com/luckygong/streambus/pkg/metrics"
	metricsprom "github.com/luckygong/streambus/pkg/metrics/prometheus"
	"github.com/luckygong/streambus/pkg/principal"
	"github.com/luckygong/streambus/pkg/sasl"
	"github.com/luckygong/streambus/pkg/sasl/gssapi"
	"github.com/luckygong/streambus/pkg/sasl/plain"
	"github.com/luckygong/streambus/pkg/sasl/scram"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the broker",
	Long: `Start the broker listener with the specified configuration.

Examples:
  # Start with the default config location
  streambus start

  # Start with a custom config file
  streambus start --config /etc/streambus/config.yaml

  # Override config values through the environment
  STREAMBUS_LOGGING_LEVEL=DEBUG streambus start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Configuration loaded",
		"listener", cfg.Listener.BindAddr,
		"mechanisms", cfg.SASL.EnabledMechanisms,
		"store", cfg.Store.Backend,
	)

	// Metrics endpoint (if enabled)
	var authMetrics metrics.AuthMetrics
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		authMetrics = metricsprom.NewAuthMetrics()

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.BindAddr, Handler: mux}
		go func() {
			logger.Info("Metrics endpoint listening", "addr", cfg.Metrics.BindAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", "error", err)
			}
		}()
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Credential store
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("Credential store close error", "error", err)
		}
	}()

	// Mechanism registry
	factories, err := buildFactories(cfg, store)
	if err != nil {
		return err
	}
	registry, err := sasl.NewRegistry(factories)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(server.Config{
		BindAddr:         cfg.Listener.BindAddr,
		ListenerName:     cfg.Listener.Name,
		Registry:         registry,
		PrincipalBuilder: principal.DefaultBuilder{},
		Handler:          server.HandlerFunc(serveAuthenticated),
		IdleTimeout:      cfg.Listener.IdleTimeout,
		MaxReceiveSize:   int(cfg.Listener.MaxReceiveSize),
		MaxConnections:   cfg.Listener.MaxConnections,
		Metrics:          authMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	// Admin API (if enabled)
	var adminServer *http.Server
	if cfg.Admin.Enabled {
		router, err := api.NewRouter(store, cfg.SASL.ScramIterations)
		if err != nil {
			return fmt.Errorf("failed to create admin API: %w", err)
		}
		adminServer = &http.Server{Addr: cfg.Admin.BindAddr, Handler: router}
		go func() {
			logger.Info("Admin API listening", "addr", cfg.Admin.BindAddr)
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Admin API server error", "error", err)
			}
		}()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Broker is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Listener shutdown error", "error", err)
		}

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Listener error", "error", err)
			shutdownHTTPServers(cfg.ShutdownTimeout, metricsServer, adminServer)
			return err
		}
	}

	shutdownHTTPServers(cfg.ShutdownTimeout, metricsServer, adminServer)
	logger.Info("Broker stopped")
	return nil
}

// serveAuthenticated receives connections once the handshake completes.
// Request-plane processing lives behind this hook; until it is wired the
// broker logs the identity and closes.
func serveAuthenticated(conn net.Conn, p principal.Principal, mechanism string) {
	logger.Info("Authenticated connection ready",
		"principal", p.String(),
		"mechanism", mechanism,
		"remote_addr", conn.RemoteAddr().String(),
	)
	_ = conn.Close()
}

// buildFactories constructs one mechanism factory per enabled mechanism.
func buildFactories(cfg *config.Config, store identity.Store) (map[string]sasl.Factory, error) {
	factories := make(map[string]sasl.Factory, len(cfg.SASL.EnabledMechanisms))
	for _, mechanism := range cfg.SASL.EnabledMechanisms {
		switch mechanism {
		case plain.MechanismName:
			factories[mechanism] = plain.NewFactory(store)
		case scram.MechanismSHA256, scram.MechanismSHA512:
			factories[mechanism] = scram.NewFactory(mechanism, store)
		case gssapi.MechanismName:
			provider, err := gssapi.NewProvider(gssapi.ProviderConfig{
				KeytabPath:       cfg.Kerberos.KeytabPath,
				ServicePrincipal: cfg.Kerberos.ServicePrincipal,
				Krb5ConfPath:     cfg.Kerberos.Krb5ConfPath,
				MaxClockSkew:     cfg.Kerberos.MaxClockSkew,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to initialize Kerberos: %w", err)
			}
			factories[mechanism] = gssapi.NewFactory(provider)
		default:
			return nil, fmt.Errorf("unknown mechanism: %s", mechanism)
		}
	}
	return factories, nil
}

func shutdownHTTPServers(timeout time.Duration, servers ...*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, s := range servers {
		if s == nil {
			continue
		}
		if err := s.Shutdown(ctx); err != nil {
			logger.Error("HTTP server shutdown error", "addr", s.Addr, "error", err)
		}
	}
}
