package config

import "time"

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Alerting     AlertingConfig     `mapstructure:"alerting" yaml:"alerting"`
	Cache        CacheConfig        `mapstructure:"cache" yaml:"cache"`
	CORS         CORSConfig         `mapstructure:"cors" yaml:"cors"`
	WebSocket    WebSocketConfig    `mapstructure:"websocket" yaml:"websocket"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit" yaml:"rate_limit"`
	Integrations IntegrationsConfig `mapstructure:"integrations" yaml:"integrations"`
}

// AlertingConfig tunes the alert engine's bookkeeping windows.
type AlertingConfig struct {
	DedupWindowMs          int    `mapstructure:"dedup_window_ms" yaml:"dedup_window_ms"`
	SuppressionRetentionMs int    `mapstructure:"suppression_retention_ms" yaml:"suppression_retention_ms"`
	CleanupIntervalMs      int    `mapstructure:"cleanup_interval_ms" yaml:"cleanup_interval_ms"`
	RulesPath              string `mapstructure:"rules_path" yaml:"rules_path"`
	WatchRules             bool   `mapstructure:"watch_rules" yaml:"watch_rules"`
}

func (a AlertingConfig) DedupWindow() time.Duration {
	return time.Duration(a.DedupWindowMs) * time.Millisecond
}

func (a AlertingConfig) SuppressionRetention() time.Duration {
	return time.Duration(a.SuppressionRetentionMs) * time.Millisecond
}

func (a AlertingConfig) CleanupInterval() time.Duration {
	return time.Duration(a.CleanupIntervalMs) * time.Millisecond
}

// CacheConfig points at the Valkey nodes used for rate limiting and read-path
// snapshot caching. Empty Nodes selects the in-memory fallback.
type CacheConfig struct {
	Nodes []string `mapstructure:"nodes" yaml:"nodes"`
	TTL   int      `mapstructure:"ttl" yaml:"ttl"` // seconds
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

type WebSocketConfig struct {
	ReadBufferSize  int `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int `mapstructure:"write_buffer_size" yaml:"write_buffer_size"`
	SendBufferSize  int `mapstructure:"send_buffer_size" yaml:"send_buffer_size"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// IntegrationsConfig maps channel classes (email, sms, webhook, chat,
// pagerduty) to the relay endpoints the notifier posts to. The engine itself
// never delivers; it only records what the notifier reports.
type IntegrationsConfig struct {
	Channels map[string]ChannelConfig `mapstructure:"channels" yaml:"channels"`
}

type ChannelConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	TimeoutMs  int    `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}
