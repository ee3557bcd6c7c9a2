package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Load loads configuration from a file path and applies environment variable overrides
// Validation is deferred to allow CLI flag overrides to be applied first
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	applyEnvironmentOverrides(cfg)

	// Note: Validation is NOT performed here to allow CLI flags to override
	// Call cfg.Validate() after applying CLI overrides in the caller

	return cfg, nil
}

// loadFromFile decodes a JSON file on top of the defaults already in cfg
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrConfigFileNotFound
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfigFormat, err)
	}

	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return nil
}

// applyEnvironmentOverrides applies configuration from environment variables
func applyEnvironmentOverrides(cfg *Config) {
	if apiURL := os.Getenv("CONDO_API_BASE_URL"); apiURL != "" {
		cfg.APIBaseURL = strings.TrimRight(apiURL, "/")
	}

	if apiKey := os.Getenv("CONDO_API_KEY"); apiKey != "" {
		cfg.APIKey = apiKey
	}

	if email := os.Getenv("CONDO_EMAIL"); email != "" {
		cfg.Auth.Email = strings.ToLower(strings.TrimSpace(email))
	}

	if password := os.Getenv("CONDO_PASSWORD"); password != "" {
		cfg.Auth.Password = password
	}

	if debug := os.Getenv("CONDO_DEBUG"); debug == "true" || debug == "1" {
		cfg.Debug = true
	}

	if logLevel := os.Getenv("CONDO_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	switch os.Getenv("CONDO_REALTIME") {
	case "true", "1":
		cfg.Realtime.Enabled = true
	case "false", "0":
		cfg.Realtime.Enabled = false
	}

	if n, ok := envInt("CONDO_FEED_LIMIT"); ok {
		cfg.Dashboard.FeedLimit = n
	}

	if n, ok := envInt("CONDO_UNIT_CAPACITY"); ok {
		cfg.Dashboard.UnitCapacity = n
	}

	if n, ok := envInt("CONDO_TOAST_TTL_SECONDS"); ok {
		cfg.Dashboard.ToastTTLSeconds = n
	}
}

// envInt reads an integer environment variable, ignoring malformed values
func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring non-integer environment value")
		return 0, false
	}
	return n, true
}

// LoadFromEnvironment creates a configuration using only environment variables
// Validation is deferred to allow CLI flag overrides to be applied first
func LoadFromEnvironment() (*Config, error) {
	cfg := DefaultConfig()
	applyEnvironmentOverrides(cfg)
	return cfg, nil
}
