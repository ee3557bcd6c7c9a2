package config

import "errors"

var (
	// ErrMissingAPIBaseURL indicates that the API base URL is not configured
	ErrMissingAPIBaseURL = errors.New("apiBaseUrl is required in configuration")

	// ErrMissingAPIKey indicates that the project API key is not configured
	ErrMissingAPIKey = errors.New("apiKey is required in configuration")

	// ErrInvalidFeedLimit indicates a non-positive activity feed limit
	ErrInvalidFeedLimit = errors.New("dashboard.feedLimit must be positive")

	// ErrInvalidUnitCapacity indicates a non-positive unit capacity
	ErrInvalidUnitCapacity = errors.New("dashboard.unitCapacity must be positive")

	// ErrConfigFileNotFound indicates that the config file was not found
	ErrConfigFileNotFound = errors.New("configuration file not found")

	// ErrInvalidConfigFormat indicates that the config file has invalid JSON
	ErrInvalidConfigFormat = errors.New("invalid configuration file format")
)
