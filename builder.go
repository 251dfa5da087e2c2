package psyclient

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	internalaudit "github.com/deineapp/psyclient/internal/audit"
	internalmetrics "github.com/deineapp/psyclient/internal/metrics"
	"github.com/deineapp/psyclient/store"
)

// Builder defines a public type used by psyclient APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	httpClient *http.Client
	tokenStore store.Store
	redis      *redis.Client
	logger     zerolog.Logger
	auditSink  AuditSink

	built bool
}

// New creates a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL overrides the API base URL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.API.BaseURL = baseURL
	return b
}

// WithHTTPClient supplies the underlying HTTP client. Its transport becomes
// the pipeline's base; its timeout applies to every call.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithTokenStore supplies a token persistence backend, overriding
// Config.Storage.
func (b *Builder) WithTokenStore(s store.Store) *Builder {
	b.tokenStore = s
	return b
}

// WithRedis supplies the Redis client for the StorageRedis backend.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithLogger supplies the SDK logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink enables audit dispatch into the given sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithMetricsEnabled toggles in-process metrics collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles request latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and assembles the client. A Builder is
// single-use.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if err := b.config.validate(); err != nil {
		return nil, err
	}

	tokenStore, err := b.resolveStore()
	if err != nil {
		return nil, err
	}

	base := http.DefaultTransport
	if b.httpClient != nil && b.httpClient.Transport != nil {
		base = b.httpClient.Transport
	}

	m := internalmetrics.New(internalmetrics.Config{
		Enabled:       b.config.Metrics.Enabled,
		EnableLatency: b.config.Metrics.EnableLatencyHistograms,
	})
	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    b.config.Audit.Enabled,
		BufferSize: b.config.Audit.BufferSize,
		DropIfFull: b.config.Audit.DropIfFull,
	}, b.auditSink)

	bare := &http.Client{
		Timeout:   b.config.API.Timeout,
		Transport: base,
	}
	session := newSessionManager(b.config, tokenStore, bare, b.logger, dispatcher, m)

	pipe := newPipeline(base, session, b.logger, m)
	pipe.userAgent = b.config.API.UserAgent

	client := &Client{
		config:  b.config,
		session: session,
		http: &http.Client{
			Timeout:   b.config.API.Timeout,
			Transport: pipe,
		},
		audit:   dispatcher,
		metrics: m,
		log:     b.logger,
	}
	session.fetchUser = client.fetchMe

	b.built = true
	return client, nil
}

func (b *Builder) resolveStore() (store.Store, error) {
	if b.tokenStore != nil {
		return b.tokenStore, nil
	}
	switch b.config.Storage.Backend {
	case StorageMemory:
		return store.NewMemory(), nil
	case StorageFile:
		return store.NewFile(b.config.Storage.FilePath), nil
	case StorageRedis:
		if b.redis == nil {
			return nil, errors.New("StorageRedis requires WithRedis")
		}
		return store.NewRedis(b.redis, b.config.Storage.RedisPrefix), nil
	}
	return nil, errors.New("unknown storage backend")
}
