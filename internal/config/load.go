package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional YAML file and the environment.
// configPath may be empty, in which case fieldsync.yaml is looked for in
// the working directory; a missing file is not an error. Environment
// variables use the FIELDSYNC_ prefix with dots replaced by underscores,
// e.g. FIELDSYNC_SERVER_FALLBACK_URL.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("storage.data_dir", "")
	v.SetDefault("server.discovery_refresh_seconds", 300)
	v.SetDefault("auth.refresh_path", "/api/auth/refresh")
	v.SetDefault("sync.probe_interval_seconds", 15)
	v.SetDefault("log.level", "info")

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("fieldsync")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("FIELDSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so the
	// keys without defaults are bound explicitly.
	for _, key := range []string{
		"storage.data_dir",
		"server.fallback_url",
		"server.discovery_url",
		"auth.token_path",
	} {
		envVar := "FIELDSYNC_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envVar); err != nil {
			return nil, fmt.Errorf("bind %s: %w", envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}
