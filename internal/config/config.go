// Package config loads the sync engine's configuration from a YAML file
// and FIELDSYNC_-prefixed environment variables, with the environment
// taking precedence.
package config

// Config holds all engine configuration.
type Config struct {
	Storage Storage `mapstructure:"storage" validate:"required"`
	Server  Server  `mapstructure:"server" validate:"required"`
	Auth    Auth    `mapstructure:"auth"`
	Sync    Sync    `mapstructure:"sync"`
	Log     Log     `mapstructure:"log"`
}

// Storage locates the on-device durable state.
type Storage struct {
	// DataDir holds the record database and the blob store.
	DataDir string `mapstructure:"data_dir" validate:"required"`
}

// Server describes how to reach the backend.
type Server struct {
	// FallbackURL is the fixed base used when discovery is absent or the
	// discovered server is unreachable.
	FallbackURL string `mapstructure:"fallback_url" validate:"required,url"`
	// DiscoveryURL optionally points at a JSON document naming the
	// preferred base URL.
	DiscoveryURL string `mapstructure:"discovery_url" validate:"omitempty,url"`
	// DiscoveryRefreshSeconds bounds how often the discovery document is
	// re-fetched.
	DiscoveryRefreshSeconds int `mapstructure:"discovery_refresh_seconds" validate:"gte=0"`
}

// Auth configures token persistence and renewal.
type Auth struct {
	// TokenPath is the file the access/refresh token pair persists in.
	TokenPath string `mapstructure:"token_path"`
	// RefreshPath is the endpoint path the refresh token is exchanged at.
	RefreshPath string `mapstructure:"refresh_path"`
}

// Sync tunes the background drain behavior.
type Sync struct {
	// ProbeIntervalSeconds is how often connectivity is checked while
	// watching for reconnect.
	ProbeIntervalSeconds int `mapstructure:"probe_interval_seconds" validate:"gte=0"`
}

// Log controls diagnostic output.
type Log struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}
