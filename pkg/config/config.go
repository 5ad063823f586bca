// Package config handles loading, validation, and defaults for broker
// configuration from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the broker.
type Config struct {
	// Logging controls log level, format, and destination.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Listener configures the authenticated client-facing TCP listener.
	Listener ListenerConfig `mapstructure:"listener" yaml:"listener"`

	// SASL selects which authentication mechanisms clients may use.
	SASL SASLConfig `mapstructure:"sasl" yaml:"sasl"`

	// Kerberos configures the GSSAPI mechanism. Only consulted when
	// GSSAPI appears in SASL.EnabledMechanisms.
	Kerberos KerberosConfig `mapstructure:"kerberos" yaml:"kerberos"`

	// Store configures where user credentials are persisted.
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Metrics configures the Prometheus metrics endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Admin configures the HTTP credential administration API.
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`

	// ShutdownTimeout bounds how long the broker waits for in-flight
	// connections to drain on shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LoggingConfig controls structured logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, or ERROR.
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR"`

	// Format selects the log encoder: text or json.
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output is the log destination: stdout, stderr, or a file path.
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ListenerConfig configures the client-facing TCP listener.
type ListenerConfig struct {
	// Name identifies this listener in logs and metrics.
	Name string `mapstructure:"name" yaml:"name" validate:"required"`

	// BindAddr is the host:port the listener binds to.
	BindAddr string `mapstructure:"bind_addr" yaml:"bind_addr" validate:"required,hostname_port"`

	// IdleTimeout closes connections with no handshake progress.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"min=0"`

	// MaxReceiveSize caps the size of a single inbound frame in bytes.
	MaxReceiveSize int32 `mapstructure:"max_receive_size" yaml:"max_receive_size" validate:"min=0"`

	// MaxConnections caps concurrently accepted connections.
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections" validate:"min=0"`
}

// SASLConfig selects enabled authentication mechanisms.
type SASLConfig struct {
	// EnabledMechanisms lists the mechanisms clients may negotiate.
	// At least one must be configured.
	EnabledMechanisms []string `mapstructure:"enabled_mechanisms" yaml:"enabled_mechanisms" validate:"min=1,dive,oneof=PLAIN SCRAM-SHA-256 SCRAM-SHA-512 GSSAPI"`

	// ScramIterations is the PBKDF2 iteration count used when the admin
	// API provisions SCRAM credentials.
	ScramIterations int `mapstructure:"scram_iterations" yaml:"scram_iterations" validate:"min=0"`
}

// KerberosConfig configures the GSSAPI mechanism.
type KerberosConfig struct {
	// KeytabPath points at the service keytab file.
	KeytabPath string `mapstructure:"keytab_path" yaml:"keytab_path"`

	// ServicePrincipal is the broker's Kerberos principal, for example
	// "broker/host.example.com@EXAMPLE.COM".
	ServicePrincipal string `mapstructure:"service_principal" yaml:"service_principal"`

	// Krb5ConfPath overrides the krb5.conf location. Empty uses
	// /etc/krb5.conf.
	Krb5ConfPath string `mapstructure:"krb5_conf" yaml:"krb5_conf,omitempty"`

	// MaxClockSkew bounds acceptable clock drift during ticket
	// verification.
	MaxClockSkew time.Duration `mapstructure:"max_clock_skew" yaml:"max_clock_skew" validate:"min=0"`
}

// StoreConfig configures credential persistence.
type StoreConfig struct {
	// Backend selects the credential store: memory or badger.
	Backend string `mapstructure:"backend" yaml:"backend" validate:"required,oneof=memory badger"`

	// Path is the badger database directory. Required for the badger
	// backend.
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns metrics collection and the /metrics endpoint on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// BindAddr is the host:port for the metrics HTTP server.
	BindAddr string `mapstructure:"bind_addr" yaml:"bind_addr"`
}

// AdminConfig configures the HTTP credential administration API.
type AdminConfig struct {
	// Enabled turns the admin API on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// BindAddr is the host:port for the admin HTTP server.
	BindAddr string `mapstructure:"bind_addr" yaml:"bind_addr"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (STREAMBUS_*)
//  2. Configuration file
//  3. Default values
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	// No config file means pure defaults.
	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig writes the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Config files may reference keytabs and credential stores, so keep
	// them owner-only.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures environment variable support and the config
// file search path.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the STREAMBUS_ prefix with underscores.
	// Example: STREAMBUS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("STREAMBUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if present. A missing
// file is not an error.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		// Explicit config paths surface as os.PathError instead.
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns the combined decode hook for custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook converts config strings like "30s" or "5m" to
// time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Raw integers are taken as nanoseconds.
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64.
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory, honoring
// XDG_CONFIG_HOME.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "streambus")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "streambus")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
