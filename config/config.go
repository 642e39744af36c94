// Package config loads and persists lore configuration. Sources merge in
// precedence order: system file, user file, project file, then LORE_*
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/teranos/lore/graph"
)

// Config is the root lore configuration.
type Config struct {
	Graph  GraphConfig  `mapstructure:"graph"`
	Log    LogConfig    `mapstructure:"log"`
	Ingest IngestConfig `mapstructure:"ingest"`
}

// GraphConfig configures the Neo4j connection.
type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"` // usually set via LORE_GRAPH_PASSWORD
	Database string `mapstructure:"database"`

	MaxRetries                int `mapstructure:"max_retries"`                 // connectivity retries per statement (0 = default 3)
	RetryBaseMS               int `mapstructure:"retry_base_ms"`               // backoff base in milliseconds (0 = default 1000)
	MaxConnectionPool         int `mapstructure:"max_connection_pool"`         // driver pool size (0 = default 50)
	AcquisitionTimeoutSeconds int `mapstructure:"acquisition_timeout_seconds"` // pool acquisition timeout (0 = default 60)
}

// LogConfig configures logging output.
type LogConfig struct {
	JSON      bool   `mapstructure:"json"`
	Verbosity int    `mapstructure:"verbosity"` // 0-4, see logger package
	Theme     string `mapstructure:"theme"`     // Color theme: gruvbox, everforest
}

// IngestConfig configures batch ingestion runs.
type IngestConfig struct {
	Workers       int     `mapstructure:"workers"`         // concurrent workers (0 = default 4)
	RatePerSecond float64 `mapstructure:"rate_per_second"` // record rate limit (0 = unlimited)
	Burst         int     `mapstructure:"burst"`           // rate limiter burst (0 = default 1)
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)

// ToGraphConfig converts the graph section into the connector's config,
// applying the connector's defaults for zero values.
func (c *Config) ToGraphConfig() graph.Config {
	cfg := graph.Config{
		URI:               c.Graph.URI,
		Username:          c.Graph.Username,
		Password:          c.Graph.Password,
		Database:          c.Graph.Database,
		MaxRetries:        c.Graph.MaxRetries,
		MaxConnectionPool: c.Graph.MaxConnectionPool,
	}
	if c.Graph.RetryBaseMS > 0 {
		cfg.RetryBase = time.Duration(c.Graph.RetryBaseMS) * time.Millisecond
	}
	if c.Graph.AcquisitionTimeoutSeconds > 0 {
		cfg.AcquisitionTimeout = time.Duration(c.Graph.AcquisitionTimeoutSeconds) * time.Second
	}
	return cfg
}

// GetLogTheme returns the log theme (default: everforest)
func (c *Config) GetLogTheme() string {
	if c.Log.Theme == "" {
		return "everforest"
	}
	return c.Log.Theme
}

// GetIngestWorkers returns the worker count with the default applied.
func (c *Config) GetIngestWorkers() int {
	if c.Ingest.Workers <= 0 {
		return 4
	}
	return c.Ingest.Workers
}

// GetIngestBurst returns the rate limiter burst with the default applied.
func (c *Config) GetIngestBurst() int {
	if c.Ingest.Burst <= 0 {
		return 1
	}
	return c.Ingest.Burst
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Graph: %s/%s, Log: {Theme: %s}, Ingest: {Workers: %d}}",
		c.Graph.URI, c.Graph.Database, c.Log.Theme, c.Ingest.Workers)
}
