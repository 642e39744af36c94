package graph

import "time"

// Default connection parameters for a local Neo4j instance.
const (
	DefaultURI      = "bolt://localhost:7687"
	DefaultUsername = "neo4j"
	DefaultDatabase = "neo4j"

	DefaultMaxRetries = 3
	DefaultRetryBase  = 1 * time.Second

	DefaultMaxConnectionPool   = 50
	DefaultAcquisitionTimeout  = 60 * time.Second
	DefaultConnectivityTimeout = 30 * time.Second
)

// Config holds connection parameters for the graph store.
type Config struct {
	URI      string
	Username string
	Password string
	Database string

	// MaxRetries bounds attempts for connectivity failures. Server-side
	// errors are never retried; a lost write race surfaces on the first
	// attempt.
	MaxRetries int
	// RetryBase is the first backoff delay; it doubles per attempt.
	RetryBase time.Duration

	MaxConnectionPool  int
	AcquisitionTimeout time.Duration
}

// DefaultConfig returns a Config for a local unauthenticated-password setup.
func DefaultConfig() Config {
	return Config{
		URI:        DefaultURI,
		Username:   DefaultUsername,
		Database:   DefaultDatabase,
		MaxRetries: DefaultMaxRetries,
		RetryBase:  DefaultRetryBase,

		MaxConnectionPool:  DefaultMaxConnectionPool,
		AcquisitionTimeout: DefaultAcquisitionTimeout,
	}
}

// withDefaults fills zero fields so a partially populated Config still dials.
func (c Config) withDefaults() Config {
	if c.URI == "" {
		c.URI = DefaultURI
	}
	if c.Username == "" {
		c.Username = DefaultUsername
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBase <= 0 {
		c.RetryBase = DefaultRetryBase
	}
	if c.MaxConnectionPool <= 0 {
		c.MaxConnectionPool = DefaultMaxConnectionPool
	}
	if c.AcquisitionTimeout <= 0 {
		c.AcquisitionTimeout = DefaultAcquisitionTimeout
	}
	return c
}
