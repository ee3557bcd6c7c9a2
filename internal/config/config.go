package config

import "time"

// Config holds all configuration for the dashboard client
type Config struct {
	APIBaseURL string          `json:"apiBaseUrl"`
	APIKey     string          `json:"apiKey"`
	Auth       AuthConfig      `json:"auth"`
	Realtime   RealtimeConfig  `json:"realtime"`
	Dashboard  DashboardConfig `json:"dashboard"`
	Debug      bool            `json:"debug"`
	LogLevel   string          `json:"logLevel"`
}

// AuthConfig holds the credentials used to open a session.
// Password is never read from the config file, only from the environment.
type AuthConfig struct {
	Email    string `json:"email"`
	Password string `json:"-"`
}

// RealtimeConfig controls the push-invalidation channel
type RealtimeConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
	Stream  string `json:"stream,omitempty"`
}

// DashboardConfig holds presentation limits carried by the controller
type DashboardConfig struct {
	FeedLimit        int `json:"feedLimit"`
	UnitCapacity     int `json:"unitCapacity"`
	ToastTTLSeconds  int `json:"toastTtlSeconds"`
	RequestTimeoutMs int `json:"requestTimeoutMs"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return ErrMissingAPIBaseURL
	}

	if c.APIKey == "" {
		return ErrMissingAPIKey
	}

	if c.Dashboard.FeedLimit <= 0 {
		return ErrInvalidFeedLimit
	}

	if c.Dashboard.UnitCapacity <= 0 {
		return ErrInvalidUnitCapacity
	}

	return nil
}

// HasCredentials reports whether both email and password are configured
func (c *Config) HasCredentials() bool {
	return c.Auth.Email != "" && c.Auth.Password != ""
}

// ToastTTL returns how long a notification stays visible
func (c *Config) ToastTTL() time.Duration {
	if c.Dashboard.ToastTTLSeconds <= 0 {
		return DefaultToastTTL
	}
	return time.Duration(c.Dashboard.ToastTTLSeconds) * time.Second
}

// RequestTimeout returns the per-request HTTP timeout
func (c *Config) RequestTimeout() time.Duration {
	if c.Dashboard.RequestTimeoutMs <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(c.Dashboard.RequestTimeoutMs) * time.Millisecond
}

const (
	// DefaultToastTTL matches the auto-dismiss delay of the web dashboard
	DefaultToastTTL = 4 * time.Second

	// DefaultRequestTimeout bounds a single call to the backend
	DefaultRequestTimeout = 30 * time.Second

	// DefaultFeedLimit is the maximum number of items in the activity feed
	DefaultFeedLimit = 20

	// DefaultUnitCapacity is the number of units in the building
	DefaultUnitCapacity = 50
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL: "http://localhost:8081",
		Realtime: RealtimeConfig{
			Enabled: true,
			Path:    "/realtime/v1/events",
			Stream:  "changes",
		},
		Dashboard: DashboardConfig{
			FeedLimit:        DefaultFeedLimit,
			UnitCapacity:     DefaultUnitCapacity,
			ToastTTLSeconds:  int(DefaultToastTTL / time.Second),
			RequestTimeoutMs: int(DefaultRequestTimeout / time.Millisecond),
		},
		Debug:    false,
		LogLevel: "info",
	}
}
