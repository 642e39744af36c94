package config

import (
	"strings"

	"github.com/teranos/lore/errors"
)

// URI schemes the Neo4j driver accepts.
var graphURISchemes = []string{
	"bolt://", "bolt+s://", "bolt+ssc://",
	"neo4j://", "neo4j+s://", "neo4j+ssc://",
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Graph.URI == "" {
		return errors.New("graph.uri cannot be empty")
	}
	if !hasGraphScheme(c.Graph.URI) {
		return errors.Newf("graph.uri %q must use a bolt:// or neo4j:// scheme", c.Graph.URI)
	}

	// Zero means "use default" for these; negative is invalid.
	if c.Graph.MaxRetries < 0 {
		return errors.Newf("graph.max_retries must be >= 0, got %d", c.Graph.MaxRetries)
	}
	if c.Graph.RetryBaseMS < 0 {
		return errors.Newf("graph.retry_base_ms must be >= 0, got %d", c.Graph.RetryBaseMS)
	}
	if c.Graph.MaxConnectionPool < 0 {
		return errors.Newf("graph.max_connection_pool must be >= 0, got %d", c.Graph.MaxConnectionPool)
	}
	if c.Graph.AcquisitionTimeoutSeconds < 0 {
		return errors.Newf("graph.acquisition_timeout_seconds must be >= 0, got %d", c.Graph.AcquisitionTimeoutSeconds)
	}

	if c.Log.Verbosity < 0 || c.Log.Verbosity > 4 {
		return errors.Newf("log.verbosity must be between 0 and 4, got %d", c.Log.Verbosity)
	}
	switch c.Log.Theme {
	case "", "gruvbox", "everforest":
	default:
		return errors.Newf("log.theme must be gruvbox or everforest, got %q", c.Log.Theme)
	}

	if c.Ingest.Workers < 0 {
		return errors.Newf("ingest.workers must be >= 0, got %d", c.Ingest.Workers)
	}
	// Rate 0 = unlimited, negative = invalid
	if c.Ingest.RatePerSecond < 0 {
		return errors.Newf("ingest.rate_per_second must be >= 0, got %f", c.Ingest.RatePerSecond)
	}
	if c.Ingest.Burst < 0 {
		return errors.Newf("ingest.burst must be >= 0, got %d", c.Ingest.Burst)
	}

	return nil
}

func hasGraphScheme(uri string) bool {
	for _, scheme := range graphURISchemes {
		if strings.HasPrefix(uri, scheme) {
			return true
		}
	}
	return false
}
