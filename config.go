package goGuardian

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// TransportMode selects how backend events reach a transaction.
type TransportMode string

const (
	// TransportSocket streams events over a websocket.
	TransportSocket TransportMode = "socket"
	// TransportPolling polls the transaction state endpoint.
	TransportPolling TransportMode = "polling"
	// TransportManual connects nowhere; events are injected with [Transaction.HandleEvent].
	TransportManual TransportMode = "manual"
)

// Config defines a public type used by goGuardian APIs.
//
// Config instances are intended to be configured during initialization and then treated
// as immutable.
type Config struct {
	ServiceURL   string        `env:"SERVICE_URL"`
	Issuer       Issuer        `envPrefix:"ISSUER_"`
	AccountLabel string        `env:"ACCOUNT_LABEL"`
	Transport    TransportMode `env:"TRANSPORT"`
	Polling      PollingConfig `envPrefix:"POLLING_"`
	Socket       SocketConfig  `envPrefix:"SOCKET_"`
	HTTP         HTTPConfig    `envPrefix:"HTTP_"`
	Store        StoreConfig   `envPrefix:"STORE_"`
	Audit        AuditConfig   `envPrefix:"AUDIT_"`
	Metrics      MetricsConfig `envPrefix:"METRICS_"`
}

// PollingConfig controls the polling transport.
type PollingConfig struct {
	Interval time.Duration `env:"INTERVAL"`
}

// SocketConfig controls the websocket transport.
type SocketConfig struct {
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT"`
}

// HTTPConfig controls the service HTTP client.
type HTTPConfig struct {
	Timeout time.Duration `env:"TIMEOUT"`
}

// StoreConfig controls transaction persistence in Redis.
type StoreConfig struct {
	KeyPrefix string `env:"KEY_PREFIX"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when nothing is overridden. ServiceURL
// must still be set.
func DefaultConfig() Config {
	return Config{
		Transport: TransportSocket,
		Polling: PollingConfig{
			Interval: 5 * time.Second,
		},
		Socket: SocketConfig{
			HandshakeTimeout: 10 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout: 15 * time.Second,
		},
		Store: StoreConfig{
			KeyPrefix: "ggtx",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

// LoadConfigFromEnv describes the loadconfigfromenv operation and its observable behavior.
//
// LoadConfigFromEnv starts from [DefaultConfig] and overrides every field whose
// GUARDIAN_* variable is set, e.g. GUARDIAN_SERVICE_URL, GUARDIAN_ISSUER_NAME,
// GUARDIAN_POLLING_INTERVAL or GUARDIAN_METRICS_ENABLED. The result is validated.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "GUARDIAN_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.ServiceURL == "" {
		return errors.New("ServiceURL is required")
	}
	u, err := url.Parse(c.ServiceURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("ServiceURL must be an absolute http or https URL")
	}

	switch c.Transport {
	case TransportSocket, TransportPolling, TransportManual:
	default:
		return fmt.Errorf("unsupported Transport %q", c.Transport)
	}
	if c.Transport == TransportPolling && c.Polling.Interval <= 0 {
		return errors.New("Polling Interval must be > 0")
	}
	if c.Socket.HandshakeTimeout < 0 {
		return errors.New("Socket HandshakeTimeout must be >= 0")
	}
	if c.HTTP.Timeout < 0 {
		return errors.New("HTTP Timeout must be >= 0")
	}
	if c.Store.KeyPrefix == "" {
		return errors.New("Store KeyPrefix must not be empty")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	return nil
}
