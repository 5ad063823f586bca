package config

import (
	"strings"
	"time"
)

// Default values applied to unspecified configuration fields.
const (
	DefaultListenerName    = "sasl"
	DefaultBindAddr        = "0.0.0.0:9092"
	DefaultIdleTimeout     = 10 * time.Minute
	DefaultMaxReceiveSize  = 512 * 1024
	DefaultMaxConnections  = 1024
	DefaultScramIterations = 4096
	DefaultMaxClockSkew    = 5 * time.Minute
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsAddr     = "127.0.0.1:9090"
	DefaultAdminAddr       = "127.0.0.1:9091"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyListenerDefaults(&cfg.Listener)
	applySASLDefaults(&cfg.SASL)
	applyKerberosDefaults(&cfg.Kerberos)
	applyStoreDefaults(&cfg.Store)
	applyMetricsDefaults(&cfg.Metrics)
	applyAdminDefaults(&cfg.Admin)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent comparison.
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyListenerDefaults(cfg *ListenerConfig) {
	if cfg.Name == "" {
		cfg.Name = DefaultListenerName
	}
	if cfg.BindAddr == "" {
		cfg.BindAddr = DefaultBindAddr
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.MaxReceiveSize == 0 {
		cfg.MaxReceiveSize = DefaultMaxReceiveSize
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
}

func applySASLDefaults(cfg *SASLConfig) {
	if len(cfg.EnabledMechanisms) == 0 {
		cfg.EnabledMechanisms = []string{"SCRAM-SHA-256", "SCRAM-SHA-512"}
	}
	if cfg.ScramIterations == 0 {
		cfg.ScramIterations = DefaultScramIterations
	}
}

func applyKerberosDefaults(cfg *KerberosConfig) {
	if cfg.MaxClockSkew == 0 {
		cfg.MaxClockSkew = DefaultMaxClockSkew
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in).
	if cfg.BindAddr == "" {
		cfg.BindAddr = DefaultMetricsAddr
	}
}

func applyAdminDefaults(cfg *AdminConfig) {
	// Enabled defaults to false (opt-in).
	if cfg.BindAddr == "" {
		cfg.BindAddr = DefaultAdminAddr
	}
}

// GetDefaultConfig returns a fully defaulted configuration.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
