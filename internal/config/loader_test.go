package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var envKeys = []string{
	"CONDO_API_BASE_URL", "CONDO_API_KEY", "CONDO_EMAIL", "CONDO_PASSWORD",
	"CONDO_DEBUG", "CONDO_LOG_LEVEL", "CONDO_REALTIME", "CONDO_FEED_LIMIT",
	"CONDO_UNIT_CAPACITY", "CONDO_TOAST_TTL_SECONDS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		os.Unsetenv(key)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		checks  func(*testing.T, *Config)
	}{
		{
			name: "default values when no env set",
			checks: func(t *testing.T, cfg *Config) {
				if cfg.APIBaseURL != "http://localhost:8081" {
					t.Errorf("expected default APIBaseURL, got %s", cfg.APIBaseURL)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("expected default LogLevel=info, got %s", cfg.LogLevel)
				}
				if cfg.Dashboard.FeedLimit != DefaultFeedLimit {
					t.Errorf("expected FeedLimit=%d, got %d", DefaultFeedLimit, cfg.Dashboard.FeedLimit)
				}
				if !cfg.Realtime.Enabled {
					t.Error("expected realtime enabled by default")
				}
			},
		},
		{
			name: "credentials and endpoint from env",
			envVars: map[string]string{
				"CONDO_API_BASE_URL": "http://api.example.com/",
				"CONDO_API_KEY":      "anon-key",
				"CONDO_EMAIL":        "  Owner@Example.com ",
				"CONDO_PASSWORD":     "secret",
			},
			checks: func(t *testing.T, cfg *Config) {
				if cfg.APIBaseURL != "http://api.example.com" {
					t.Errorf("expected trailing slash trimmed, got %s", cfg.APIBaseURL)
				}
				if cfg.Auth.Email != "owner@example.com" {
					t.Errorf("expected normalized email, got %s", cfg.Auth.Email)
				}
				if !cfg.HasCredentials() {
					t.Error("expected credentials to be present")
				}
			},
		},
		{
			name: "numeric overrides and realtime toggle",
			envVars: map[string]string{
				"CONDO_FEED_LIMIT":        "5",
				"CONDO_UNIT_CAPACITY":     "not-a-number",
				"CONDO_REALTIME":          "false",
				"CONDO_TOAST_TTL_SECONDS": "2",
			},
			checks: func(t *testing.T, cfg *Config) {
				if cfg.Dashboard.FeedLimit != 5 {
					t.Errorf("expected FeedLimit=5, got %d", cfg.Dashboard.FeedLimit)
				}
				if cfg.Dashboard.UnitCapacity != DefaultUnitCapacity {
					t.Errorf("expected malformed capacity to be ignored, got %d", cfg.Dashboard.UnitCapacity)
				}
				if cfg.Realtime.Enabled {
					t.Error("expected realtime disabled")
				}
				if cfg.ToastTTL().Seconds() != 2 {
					t.Errorf("expected 2s toast TTL, got %s", cfg.ToastTTL())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for key, value := range tt.envVars {
				os.Setenv(key, value)
			}
			defer clearEnv(t)

			cfg, err := LoadFromEnvironment()
			if err != nil {
				t.Fatalf("LoadFromEnvironment() error = %v", err)
			}
			tt.checks(t, cfg)
		})
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	testConfigPath := filepath.Join(tmpDir, "condoboard.json")
	testConfigJSON := `{
  "apiBaseUrl": "http://test-api:8080",
  "apiKey": "file-key",
  "debug": true,
  "logLevel": "debug",
  "auth": {"email": "owner@example.com", "password": "ignored"},
  "dashboard": {"feedLimit": 10}
}`
	if err := os.WriteFile(testConfigPath, []byte(testConfigJSON), 0644); err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}

	badConfigPath := filepath.Join(tmpDir, "bad.json")
	if err := os.WriteFile(badConfigPath, []byte(`{not json`), 0644); err != nil {
		t.Fatalf("failed to create bad config file: %v", err)
	}

	tests := []struct {
		name       string
		configPath string
		envVars    map[string]string
		wantErr    error
		checks     func(*testing.T, *Config)
	}{
		{
			name:       "load from file keeps defaults for missing fields",
			configPath: testConfigPath,
			checks: func(t *testing.T, cfg *Config) {
				if cfg.APIBaseURL != "http://test-api:8080" {
					t.Errorf("expected APIBaseURL from file, got %s", cfg.APIBaseURL)
				}
				if cfg.Dashboard.FeedLimit != 10 {
					t.Errorf("expected FeedLimit=10 from file, got %d", cfg.Dashboard.FeedLimit)
				}
				if cfg.Dashboard.UnitCapacity != DefaultUnitCapacity {
					t.Errorf("expected default UnitCapacity, got %d", cfg.Dashboard.UnitCapacity)
				}
				if cfg.Auth.Password != "" {
					t.Error("password must not be read from the config file")
				}
			},
		},
		{
			name:       "env overrides file",
			configPath: testConfigPath,
			envVars: map[string]string{
				"CONDO_API_BASE_URL": "http://override:9000",
			},
			checks: func(t *testing.T, cfg *Config) {
				if cfg.APIBaseURL != "http://override:9000" {
					t.Errorf("expected env to override file APIBaseURL, got %s", cfg.APIBaseURL)
				}
				if !cfg.Debug {
					t.Error("expected Debug=true from file")
				}
			},
		},
		{
			name:       "nonexistent file",
			configPath: "/nonexistent/config.json",
			wantErr:    ErrConfigFileNotFound,
		},
		{
			name:       "invalid json",
			configPath: badConfigPath,
			wantErr:    ErrInvalidConfigFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for key, value := range tt.envVars {
				os.Setenv(key, value)
			}
			defer clearEnv(t)

			cfg, err := Load(tt.configPath)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Load() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.checks(t, cfg)
		})
	}
}

func TestConfigValidation(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.APIKey = "anon-key"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing API base URL", mutate: func(c *Config) { c.APIBaseURL = "" }, wantErr: ErrMissingAPIBaseURL},
		{name: "missing API key", mutate: func(c *Config) { c.APIKey = "" }, wantErr: ErrMissingAPIKey},
		{name: "zero feed limit", mutate: func(c *Config) { c.Dashboard.FeedLimit = 0 }, wantErr: ErrInvalidFeedLimit},
		{name: "negative capacity", mutate: func(c *Config) { c.Dashboard.UnitCapacity = -1 }, wantErr: ErrInvalidUnitCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
