package config

import (
	"encoding/json"
	"fmt"
	"os"

	"bluecast/internal/constants"
	"bluecast/internal/models"
	"bluecast/internal/security"
)

var (
	ErrMissingGatewayURL = models.ConfigError{Message: "missing gateway base URL"}
	ErrMissingDBPath     = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Gateway.BaseURL == "" {
		return ErrMissingGatewayURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	// Broadcast policy is fixed, not recipient-count-dependent; zero values
	// just mean "use the defaults".
	if c.Broadcast.BatchSize <= 0 {
		c.Broadcast.BatchSize = constants.DefaultBroadcastBatchSize
	}
	if c.Broadcast.MaxPerMinute <= 0 {
		c.Broadcast.MaxPerMinute = constants.DefaultBroadcastMaxPerMinute
	}
	if c.Broadcast.BatchPauseSec <= 0 {
		c.Broadcast.BatchPauseSec = constants.DefaultBroadcastPauseSec
	}

	if c.Fallback.SettleDelaySec <= 0 {
		c.Fallback.SettleDelaySec = constants.DefaultFallbackSettleDelaySec
	}

	if c.RetentionDays <= 0 {
		c.RetentionDays = constants.DefaultRetentionDays
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("GATEWAY_URL"); url != "" {
		c.Gateway.BaseURL = url
	}

	// SECURITY: credentials belong in the environment, not the config file.
	if password := os.Getenv("GATEWAY_PASSWORD"); password != "" {
		c.Gateway.Password = password
	}
	if secret := os.Getenv("BLUECAST_WEBHOOK_SECRET"); secret != "" {
		c.Gateway.WebhookSecret = secret
	}

	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
}

func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv("BLUECAST_ENV") == "production"

	if isProduction {
		if c.Gateway.Password == "" {
			return models.ConfigError{Message: "gateway password is required in production (set GATEWAY_PASSWORD environment variable)"}
		}
		if c.Gateway.WebhookSecret == "" {
			return models.ConfigError{Message: "webhook secret is required in production (set BLUECAST_WEBHOOK_SECRET environment variable)"}
		}
		if len(c.Gateway.WebhookSecret) < 32 {
			return models.ConfigError{Message: "webhook secret must be at least 32 characters long"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
	} else if c.Gateway.WebhookSecret == "" {
		fmt.Fprintf(os.Stderr, "WARNING: webhook secret not set. Set BLUECAST_WEBHOOK_SECRET environment variable for security.\n")
	}

	return nil
}
