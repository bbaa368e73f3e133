// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/chatpresence/internal/logging"
)

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if err := c.validateHub(); err != nil {
		return err
	}
	if err := c.validateReconnect(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateBreaker(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateAudit(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateHub() error {
	if c.Hub.URL == "" {
		return fmt.Errorf("HUB_URL is required")
	}
	if err := validateHubURL(c.Hub.URL); err != nil {
		return fmt.Errorf("HUB_URL is invalid: %w", err)
	}
	if c.Hub.HandshakeTimeout <= 0 {
		return fmt.Errorf("HUB_HANDSHAKE_TIMEOUT must be positive")
	}
	if c.Hub.KeepAliveInterval <= 0 {
		return fmt.Errorf("HUB_KEEPALIVE_INTERVAL must be positive")
	}
	if c.Hub.ServerTimeout <= c.Hub.KeepAliveInterval {
		return fmt.Errorf("HUB_SERVER_TIMEOUT (%s) must exceed HUB_KEEPALIVE_INTERVAL (%s)",
			c.Hub.ServerTimeout, c.Hub.KeepAliveInterval)
	}
	if c.Hub.TeardownTimeout <= 0 {
		return fmt.Errorf("HUB_TEARDOWN_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateReconnect() error {
	r := c.Reconnect
	if r.MaxAttempts < 0 {
		return fmt.Errorf("RECONNECT_MAX_ATTEMPTS must be >= 0 (0 = unlimited)")
	}
	if r.BaseDelay <= 0 {
		return fmt.Errorf("RECONNECT_BASE_DELAY must be positive")
	}
	if r.MaxDelay < r.BaseDelay {
		return fmt.Errorf("RECONNECT_MAX_DELAY (%s) must be >= RECONNECT_BASE_DELAY (%s)", r.MaxDelay, r.BaseDelay)
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("RECONNECT_MULTIPLIER must be >= 1, got %g", r.Multiplier)
	}
	if r.Jitter < 0 || r.Jitter > 1 {
		return fmt.Errorf("RECONNECT_JITTER must be between 0 and 1, got %g", r.Jitter)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("STATUS_API_URL is required")
	}
	if err := validateHTTPURL(c.API.BaseURL, "STATUS_API_URL"); err != nil {
		return fmt.Errorf("STATUS_API_URL is invalid: %w", err)
	}
	if !strings.HasPrefix(c.API.StatusesPath, "/") {
		return fmt.Errorf("STATUS_API_PATH must start with /, got %q", c.API.StatusesPath)
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("STATUS_API_TIMEOUT must be positive")
	}
	if c.API.RateLimitRPS < 0 {
		return fmt.Errorf("STATUS_API_RATE_LIMIT_RPS must be >= 0")
	}
	if c.API.RateLimitRPS > 0 && c.API.RateLimitBurst < 1 {
		return fmt.Errorf("STATUS_API_RATE_LIMIT_BURST must be >= 1 when rate limiting is enabled")
	}
	if c.API.UnknownTTL < 0 {
		return fmt.Errorf("STATUS_API_UNKNOWN_TTL must be >= 0")
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if !c.Breaker.Enabled {
		return nil
	}
	if c.Breaker.MaxRequests == 0 {
		return fmt.Errorf("STATUS_API_BREAKER_MAX_REQUESTS must be >= 1")
	}
	if c.Breaker.Timeout <= 0 {
		return fmt.Errorf("STATUS_API_BREAKER_TIMEOUT must be positive")
	}
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		return fmt.Errorf("STATUS_API_BREAKER_FAILURE_RATIO must be in (0, 1], got %g", c.Breaker.FailureRatio)
	}
	return nil
}

func (c *Config) validateSession() error {
	if strings.TrimSpace(c.Session.UserIDClaim) == "" {
		return fmt.Errorf("USER_ID_CLAIM must not be empty")
	}
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitReqs < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be >= 0")
	}
	if c.Server.RateLimitReqs > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}
	return nil
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateAudit() error {
	if !c.Audit.Enabled {
		return nil
	}
	if c.Audit.MaxEvents < 1 {
		return fmt.Errorf("AUDIT_MAX_EVENTS must be >= 1")
	}
	if c.Audit.BufferSize < 1 {
		return fmt.Errorf("AUDIT_BUFFER_SIZE must be >= 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateHTTPURL validates a base URL: http(s) scheme, a host, no path
// beyond "/", no query.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsedURL.Path)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	return nil
}

// validateHubURL accepts ws, wss, http and https hub endpoints with a path.
func validateHubURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	switch parsedURL.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("scheme must be ws, wss, http or https, got: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., chat.example.com/hubs/presence)")
	}
	return nil
}
