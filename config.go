package psyclient

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config defines a public type used by psyclient APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	API     APIConfig
	Session SessionConfig
	Storage StorageConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig defines a public type used by psyclient APIs.
//
// APIConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type APIConfig struct {
	BaseURL   string // default https://api.deineapp.de/api/v1
	Timeout   time.Duration
	UserAgent string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by psyclient APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	// ExpiryLeeway widens the client-side expiry check: a token within
	// leeway of its exp claim is refreshed early instead of raced against
	// the server clock.
	ExpiryLeeway time.Duration
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageBackend defines a public type used by psyclient APIs.
type StorageBackend int

const (
	// StorageMemory is an exported constant or variable used by the API client.
	StorageMemory StorageBackend = iota
	// StorageFile is an exported constant or variable used by the API client.
	StorageFile
	// StorageRedis is an exported constant or variable used by the API client.
	StorageRedis
)

// StorageConfig defines a public type used by psyclient APIs.
//
// StorageConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StorageConfig struct {
	Backend     StorageBackend
	FilePath    string // StorageFile only; default ".psyclient-tokens.json"
	RedisPrefix string // StorageRedis only; default "psyclient"
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by psyclient APIs.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by psyclient APIs.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:   "https://api.deineapp.de/api/v1",
			Timeout:   30 * time.Second,
			UserAgent: "psyclient-go",
		},
		Session: SessionConfig{
			ExpiryLeeway: 10 * time.Second,
		},
		Storage: StorageConfig{
			Backend:     StorageFile,
			FilePath:    ".psyclient-tokens.json",
			RedisPrefix: "psyclient",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are value types today; the clone exists so Builder callers
	// cannot mutate a built client's config through a retained pointer.
	return cfg
}

func (c Config) validate() error {
	base := strings.TrimSpace(c.API.BaseURL)
	if base == "" {
		return errors.New("API.BaseURL is required")
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("API.BaseURL must be an absolute http(s) URL")
	}
	if c.API.Timeout < 0 {
		return errors.New("API.Timeout must not be negative")
	}
	if c.Session.ExpiryLeeway < 0 || c.Session.ExpiryLeeway > 5*time.Minute {
		return errors.New("Session.ExpiryLeeway out of range")
	}
	switch c.Storage.Backend {
	case StorageMemory, StorageRedis:
	case StorageFile:
		if strings.TrimSpace(c.Storage.FilePath) == "" {
			return errors.New("Storage.FilePath is required for the file backend")
		}
	default:
		return errors.New("unknown storage backend")
	}
	return nil
}
