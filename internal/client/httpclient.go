package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// MaxRetries is the maximum number of retry attempts for retryable errors
	MaxRetries = 3

	// DefaultBackoff is the initial backoff duration for exponential backoff
	DefaultBackoff = 1 * time.Second
)

// TokenSource supplies bearer tokens for authenticated requests
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// HTTPClient wraps http.Client with authentication and retry logic
// Automatically injects:
// - apikey: <project key>
// - Authorization: Bearer <token> (when a token source is attached)
// - X-Correlation-ID: <uuid>
//
// Handles retries for:
// - 401 Unauthorized: invalidate the token, retry once
// - 429 Too Many Requests: respect Retry-After, exponential backoff
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tokens     TokenSource // nil until a session is attached
}

// NewHTTPClient creates a new HTTP client for the backend at baseURL
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetTokenSource attaches the source of bearer tokens
func (c *HTTPClient) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// BaseURL returns the backend root URL
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// APIKey returns the project API key sent with every request
func (c *HTTPClient) APIKey() string {
	return c.apiKey
}

// Do executes an authenticated HTTP request with retry logic
// This is the main entry point for all HTTP requests
func (c *HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.do(ctx, req, false)
}

// DoAnonymous executes a request without a bearer token (used by login)
func (c *HTTPClient) DoAnonymous(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.do(ctx, req, true)
}

func (c *HTTPClient) do(ctx context.Context, req *http.Request, anonymous bool) (*http.Response, error) {
	correlationID := uuid.New().String()

	logger := log.With().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("correlationId", correlationID).
		Logger()

	return c.doWithRetry(ctx, req, &logger, correlationID, anonymous, 0)
}

// doWithRetry handles retry logic for 401 and 429
func (c *HTTPClient) doWithRetry(ctx context.Context, req *http.Request, logger *zerolog.Logger, correlationID string, anonymous bool, retryCount int) (*http.Response, error) {
	reqClone, err := cloneRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to clone request: %w", err)
	}

	reqClone.Header.Set("X-Correlation-ID", correlationID)
	if c.apiKey != "" {
		reqClone.Header.Set("apikey", c.apiKey)
	}

	// Inject bearer token (fresh on each attempt)
	if !anonymous && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get auth token: %w", err)
		}
		reqClone.Header.Set("Authorization", "Bearer "+token)
		logger.Debug().Msg("injected bearer token")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(reqClone)
	duration := time.Since(start)

	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("HTTP request failed")
		return nil, err
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Int("retryCount", retryCount).
		Msg("HTTP request completed")

	switch resp.StatusCode {
	case http.StatusUnauthorized: // 401
		return c.handleUnauthorized(ctx, req, resp, logger, correlationID, anonymous, retryCount)

	case http.StatusTooManyRequests: // 429
		return c.handleRateLimit(ctx, req, resp, logger, correlationID, anonymous, retryCount)

	default:
		// Success or non-retryable error - return as-is
		return resp, nil
	}
}

// handleUnauthorized invalidates the cached token and retries once
func (c *HTTPClient) handleUnauthorized(ctx context.Context, req *http.Request, resp *http.Response, logger *zerolog.Logger, correlationID string, anonymous bool, retryCount int) (*http.Response, error) {
	if anonymous || c.tokens == nil || retryCount >= 1 {
		// Nothing to refresh - let the caller decode the 401
		return resp, nil
	}
	resp.Body.Close()

	logger.Warn().Msg("401 Unauthorized - invalidating token and retrying")
	c.tokens.Invalidate()

	return c.doWithRetry(ctx, req, logger, correlationID, anonymous, retryCount+1)
}

// handleRateLimit handles 429 Too Many Requests with exponential backoff
func (c *HTTPClient) handleRateLimit(ctx context.Context, req *http.Request, resp *http.Response, logger *zerolog.Logger, correlationID string, anonymous bool, retryCount int) (*http.Response, error) {
	resp.Body.Close()

	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))

	if retryCount >= MaxRetries {
		logger.Warn().Msg("Rate limited - max retries exceeded")
		return nil, ErrRateLimited{RetryAfter: int(retryAfter.Seconds())}
	}

	if retryAfter == 0 {
		retryAfter = DefaultBackoff * time.Duration(1<<retryCount)
	}

	logger.Warn().
		Dur("retryAfter", retryAfter).
		Int("retryCount", retryCount).
		Msg("Rate limited - backing off")

	select {
	case <-time.After(retryAfter):
		return c.doWithRetry(ctx, req, logger, correlationID, anonymous, retryCount+1)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// newJSONRequest builds a request against the backend with an optional JSON body
func (c *HTTPClient) newJSONRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// decodeResponse decodes a success body into out, or a structured error
func decodeResponse(resp *http.Response, out any, okStatus ...int) error {
	for _, status := range okStatus {
		if resp.StatusCode == status {
			if out == nil || resp.StatusCode == http.StatusNoContent {
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return nil
		}
	}
	return decodeError(resp)
}

// decodeError turns a non-success response into an *APIError
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var body errorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if len(data) > 0 && json.Unmarshal(data, &body) == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	}

	if apiErr.Code == "" {
		apiErr.Code = codeForStatus(resp.StatusCode)
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeInvalidInput
	case http.StatusConflict:
		return CodeConstraintViolation
	default:
		return CodeInternal
	}
}

// cloneRequest creates a copy of an HTTP request for retry
// Preserves the request body by reading and restoring it
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	var body io.Reader
	if bodyBytes != nil {
		body = bytes.NewReader(bodyBytes)
	}
	reqClone, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, err
	}

	// Copy headers (injected headers are overwritten per attempt)
	for k, v := range req.Header {
		reqClone.Header[k] = v
	}

	return reqClone, nil
}

// parseRetryAfter parses the Retry-After header
// Supports both integer seconds and HTTP-date format
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(value); err == nil {
		duration := time.Until(t)
		if duration > 0 {
			return duration
		}
	}

	return 0
}
