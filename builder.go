package goGuardian

import (
	"errors"
	"time"

	"github.com/MrEthical07/goGuardian/httpclient"
	"github.com/MrEthical07/goGuardian/store"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by goGuardian APIs.
//
// A Builder is used once: configure it, then call Build.
type Builder struct {
	config     Config
	http       HTTPClient
	transports TransportFactory
	redis      *redis.Client
	auditSink  AuditSink
	now        func() time.Time

	built bool
}

// New returns a builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithHTTPClient replaces the service client built from ServiceURL.
func (b *Builder) WithHTTPClient(c HTTPClient) *Builder {
	b.http = c
	return b
}

// WithTransportFactory replaces the transport selected by Config.Transport.
func (b *Builder) WithTransportFactory(f TransportFactory) *Builder {
	b.transports = f
	return b
}

// WithRedis enables [Guardian.Save], [Guardian.Load] and [Guardian.Forget].
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the sink receiving audit records. Records are only produced when
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces the wall clock used for token expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms enables the step latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration and wires the HTTP client, transport factory,
// metrics and optional store.
func (b *Builder) Build() (*Guardian, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := b.http
	if client == nil {
		c, err := httpclient.New(cfg.ServiceURL, httpclient.WithTimeout(cfg.HTTP.Timeout))
		if err != nil {
			return nil, err
		}
		client = c
	}

	transports := b.transports
	if transports == nil {
		transports = defaultTransportFactory(cfg)
	}

	g := &Guardian{
		config:     cfg,
		http:       client,
		transports: transports,
		metrics:    NewMetrics(cfg.Metrics),
		auditor:    newAuditDispatcher(cfg.Audit, b.auditSink),
		now:        b.now,
		active:     make(map[*Transaction]struct{}),
	}
	if b.redis != nil {
		g.store = store.New(b.redis, cfg.Store.KeyPrefix)
	}

	b.built = true
	return g, nil
}
