package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration with the usual priority order:
// 1. Environment variables (ORACLEWATCH_ prefix)
// 2. Configuration file (config.yaml)
// 3. Default values
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/oraclewatch/")
	v.AddConfigPath("./configs/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("ORACLEWATCH")

	setDefaults(v)

	// Config file is optional; env vars and defaults carry a dev setup.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	// Alert engine defaults: 1h dedup window, 24h suppression-log retention,
	// hourly bookkeeping sweep.
	v.SetDefault("alerting.dedup_window_ms", 3600000)
	v.SetDefault("alerting.suppression_retention_ms", 86400000)
	v.SetDefault("alerting.cleanup_interval_ms", 3600000)
	v.SetDefault("alerting.rules_path", "")
	v.SetDefault("alerting.watch_rules", false)

	v.SetDefault("cache.nodes", []string{})
	v.SetDefault("cache.ttl", 300)

	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.send_buffer_size", 64)

	v.SetDefault("rate_limit.requests_per_minute", 1000)

	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 43200)
}

func validateConfig(config *Config) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("invalid port: %d", config.Port)
	}
	if config.Alerting.DedupWindowMs <= 0 {
		return fmt.Errorf("alerting.dedup_window_ms must be positive")
	}
	if config.Alerting.SuppressionRetentionMs <= 0 {
		return fmt.Errorf("alerting.suppression_retention_ms must be positive")
	}
	if config.Alerting.CleanupIntervalMs <= 0 {
		return fmt.Errorf("alerting.cleanup_interval_ms must be positive")
	}
	if config.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be positive")
	}
	for name, channel := range config.Integrations.Channels {
		if channel.Enabled && channel.WebhookURL == "" {
			return fmt.Errorf("integrations.channels.%s: enabled channel requires a webhook_url", name)
		}
	}
	return nil
}
