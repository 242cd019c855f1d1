package models

// Config holds the application configuration
type Config struct {
	Gateway       GatewayConfig   `json:"gateway"`
	Database      DatabaseConfig  `json:"database"`
	Broadcast     BroadcastConfig `json:"broadcast"`
	Fallback      FallbackConfig  `json:"fallback"`
	Server        ServerConfig    `json:"server"`
	Retry         RetryConfig     `json:"retry"`
	Tracing       TracingConfig   `json:"tracing"`
	LogLevel      string          `json:"log_level"`
	RetentionDays int             `json:"retentionDays"`
}

// GatewayConfig holds settings for the remote messaging gateway.
type GatewayConfig struct {
	BaseURL              string `json:"base_url"`
	Password             string `json:"password"`
	TextTimeoutSec       int    `json:"textTimeoutSec"`
	AttachmentTimeoutSec int    `json:"attachmentTimeoutSec"`
	WebhookSecret        string `json:"webhook_secret"`
	EventStreamEnabled   bool   `json:"eventStreamEnabled"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// BroadcastConfig caps bulk-send throughput. The floor between consecutive
// sends inside a batch is derived from MaxPerMinute.
type BroadcastConfig struct {
	BatchSize     int `json:"batchSize"`
	MaxPerMinute  int `json:"maxPerMinute"`
	BatchPauseSec int `json:"batchPauseSec"`
}

// FallbackConfig controls the SMS retarget after a rejected attachment send.
type FallbackConfig struct {
	SettleDelaySec int `json:"settleDelaySec"`
}

// ServerConfig holds HTTP server related configurations
type ServerConfig struct {
	Port                 int `json:"port"`
	ReadTimeoutSec       int `json:"readTimeoutSec"`
	WriteTimeoutSec      int `json:"writeTimeoutSec"`
	IdleTimeoutSec       int `json:"idleTimeoutSec"`
	CleanupIntervalHours int `json:"cleanupIntervalHours"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry tracing configuration
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}
