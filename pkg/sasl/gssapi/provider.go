// Package gssapi implements the server side of the GSSAPI SASL mechanism
// using Kerberos V5 tickets. The broker acts as a GSS acceptor: it verifies
// the client's AP-REQ against the service keytab and, when the client asks
// for mutual authentication, answers with an AP-REP.
package gssapi

import (
	"fmt"
	"os"
	"sync"
	"time"

	krb5config "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/keytab"
)

// ProviderConfig carries the Kerberos material needed to accept tickets.
type ProviderConfig struct {
	// KeytabPath is the path to the service keytab file.
	KeytabPath string
	// ServicePrincipal is the principal the broker accepts tickets for,
	// e.g. "streambus/broker1.example.com".
	ServicePrincipal string
	// Krb5ConfPath is the path to krb5.conf. Defaults to /etc/krb5.conf.
	Krb5ConfPath string
	// MaxClockSkew bounds the acceptable authenticator timestamp drift.
	MaxClockSkew time.Duration
}

// Provider holds the shared Kerberos state for all GSSAPI sessions.
//
// All methods are safe for concurrent use. The keytab can be swapped at
// runtime via ReloadKeytab without disrupting sessions already verified.
type Provider struct {
	keytab           *keytab.Keytab
	krb5Conf         *krb5config.Config
	servicePrincipal string
	maxClockSkew     time.Duration
	keytabPath       string
	mu               sync.RWMutex
}

// NewProvider loads the keytab and krb5.conf named by cfg.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.KeytabPath == "" {
		return nil, fmt.Errorf("gssapi: keytab path not configured")
	}
	if cfg.ServicePrincipal == "" {
		return nil, fmt.Errorf("gssapi: service principal not configured")
	}

	krb5ConfPath := cfg.Krb5ConfPath
	if krb5ConfPath == "" {
		krb5ConfPath = "/etc/krb5.conf"
	}

	kt, err := loadKeytab(cfg.KeytabPath)
	if err != nil {
		return nil, fmt.Errorf("gssapi: load keytab %s: %w", cfg.KeytabPath, err)
	}
	krbCfg, err := krb5config.Load(krb5ConfPath)
	if err != nil {
		return nil, fmt.Errorf("gssapi: load krb5.conf %s: %w", krb5ConfPath, err)
	}

	return &Provider{
		keytab:           kt,
		krb5Conf:         krbCfg,
		servicePrincipal: cfg.ServicePrincipal,
		maxClockSkew:     cfg.MaxClockSkew,
		keytabPath:       cfg.KeytabPath,
	}, nil
}

// Keytab returns the current keytab.
func (p *Provider) Keytab() *keytab.Keytab {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.keytab
}

// ServicePrincipal returns the configured service principal name.
func (p *Provider) ServicePrincipal() string {
	return p.servicePrincipal
}

// MaxClockSkew returns the maximum allowed clock skew.
func (p *Provider) MaxClockSkew() time.Duration {
	return p.maxClockSkew
}

// Krb5Config returns the loaded Kerberos configuration.
func (p *Provider) Krb5Config() *krb5config.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.krb5Conf
}

// ReloadKeytab re-reads the keytab file and atomically swaps it, enabling
// keytab rotation without a broker restart. Sessions already verified keep
// their established identity; new sessions use the new keytab.
func (p *Provider) ReloadKeytab() error {
	kt, err := loadKeytab(p.keytabPath)
	if err != nil {
		return fmt.Errorf("gssapi: reload keytab %s: %w", p.keytabPath, err)
	}

	p.mu.Lock()
	p.keytab = kt
	p.mu.Unlock()
	return nil
}

func loadKeytab(path string) (*keytab.Keytab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keytab file: %w", err)
	}

	kt := keytab.New()
	if err := kt.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("parse keytab: %w", err)
	}
	return kt, nil
}
