package config

import (
	"github.com/spf13/viper"

	"github.com/teranos/lore/graph"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Graph store defaults
	v.SetDefault("graph.uri", graph.DefaultURI)
	v.SetDefault("graph.username", graph.DefaultUsername)
	v.SetDefault("graph.database", graph.DefaultDatabase)
	v.SetDefault("graph.max_retries", graph.DefaultMaxRetries)
	v.SetDefault("graph.retry_base_ms", 1000)
	v.SetDefault("graph.max_connection_pool", graph.DefaultMaxConnectionPool)
	v.SetDefault("graph.acquisition_timeout_seconds", 60)

	// Logging defaults
	v.SetDefault("log.json", false)
	v.SetDefault("log.verbosity", 0)
	v.SetDefault("log.theme", "everforest")

	// Batch ingestion defaults
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.rate_per_second", 0.0) // unlimited
	v.SetDefault("ingest.burst", 1)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	// Graph store credentials
	v.BindEnv("graph.uri", "LORE_GRAPH_URI")
	v.BindEnv("graph.username", "LORE_GRAPH_USERNAME")
	v.BindEnv("graph.password", "LORE_GRAPH_PASSWORD")
}
