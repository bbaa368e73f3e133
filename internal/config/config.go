// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package config

import (
	"fmt"
	"time"
)

// Config holds all presenced configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values for every optional setting
//  2. Config File: optional YAML file (config.yaml or CONFIG_PATH)
//  3. Environment Variables: override any mapped setting
//
// Sections:
//   - Hub: presence hub websocket endpoint and keep-alive timing
//   - Reconnect: explicit reconnect policy for the presence channel
//   - API: REST endpoint used to hydrate statuses in batches
//   - Breaker: circuit breaker in front of the REST endpoint
//   - Session: credential used to open the presence channel
//   - Server: local inspector HTTP API
//   - Logging: log level and format
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Error().Err(err).Msg("invalid configuration")
//	    return 1
//	}
//	policy := sync.ReconnectPolicyFromConfig(cfg.Reconnect)
type Config struct {
	Hub       HubConfig       `koanf:"hub"`
	Reconnect ReconnectConfig `koanf:"reconnect"`
	API       APIConfig       `koanf:"api"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Session   SessionConfig   `koanf:"session"`
	Server    ServerConfig    `koanf:"server"`
	Audit     AuditConfig     `koanf:"audit"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// HubConfig describes the presence hub connection.
type HubConfig struct {
	// URL is the hub endpoint, ws(s):// or http(s)://. Required.
	// The access token is appended as the access_token query parameter.
	URL string `koanf:"url"`

	// HandshakeTimeout bounds the websocket upgrade plus the protocol handshake.
	// Default: 15s
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`

	// KeepAliveInterval is how often a ping is sent while connected.
	// Default: 15s
	KeepAliveInterval time.Duration `koanf:"keepalive_interval"`

	// ServerTimeout is how long the connection may stay silent before it is
	// considered lost. Must exceed KeepAliveInterval.
	// Default: 30s
	ServerTimeout time.Duration `koanf:"server_timeout"`

	// TeardownTimeout bounds the best-effort Offline announcement sent when
	// the channel is closed.
	// Default: 1s
	TeardownTimeout time.Duration `koanf:"teardown_timeout"`
}

// ReconnectConfig is the reconnect policy of the presence channel.
type ReconnectConfig struct {
	// MaxAttempts is the number of consecutive failed attempts after which
	// the channel gives up and stays Disconnected. 0 means never give up.
	// Default: 10
	MaxAttempts int `koanf:"max_attempts"`

	// BaseDelay is the delay before the first retry.
	// Default: 1s
	BaseDelay time.Duration `koanf:"base_delay"`

	// MaxDelay caps the delay between retries.
	// Default: 32s
	MaxDelay time.Duration `koanf:"max_delay"`

	// Multiplier grows the delay after each failed attempt.
	// Default: 2.0
	Multiplier float64 `koanf:"multiplier"`

	// Jitter randomizes each delay by +/- Jitter*delay. Range [0, 1].
	// Default: 0.2
	Jitter float64 `koanf:"jitter"`
}

// APIConfig describes the batch status REST endpoint.
type APIConfig struct {
	// BaseURL of the chat backend, e.g. https://chat.example.com. Required.
	BaseURL string `koanf:"base_url"`

	// StatusesPath is appended to BaseURL for the batch fetch.
	// Default: /api/users/statuses
	StatusesPath string `koanf:"statuses_path"`

	// RequestTimeout bounds one batch fetch.
	// Default: 10s
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// RateLimitRPS is the client-side request rate limit. 0 disables it.
	// Default: 10
	RateLimitRPS float64 `koanf:"rate_limit_rps"`

	// RateLimitBurst is the limiter burst size.
	// Default: 20
	RateLimitBurst int `koanf:"rate_limit_burst"`

	// UnknownTTL is how long ids the endpoint did not answer are skipped by
	// missing-only hydration. 0 disables the negative cache.
	// Default: 30s
	UnknownTTL time.Duration `koanf:"unknown_ttl"`
}

// BreakerConfig configures the circuit breaker in front of the REST endpoint.
type BreakerConfig struct {
	Enabled bool `koanf:"enabled"`

	// MaxRequests allowed through while half-open.
	MaxRequests uint32 `koanf:"max_requests"`

	// Interval after which closed-state counts are cleared.
	Interval time.Duration `koanf:"interval"`

	// Timeout is how long the breaker stays open.
	Timeout time.Duration `koanf:"timeout"`

	// MinRequests before the failure ratio is evaluated.
	MinRequests uint32 `koanf:"min_requests"`

	// FailureRatio at or above which the breaker opens. Range (0, 1].
	FailureRatio float64 `koanf:"failure_ratio"`
}

// SessionConfig provides the credential for the presence channel.
type SessionConfig struct {
	// AccessToken is a bearer token. Takes precedence over TokenFile.
	AccessToken string `koanf:"access_token"`

	// TokenFile contains the bearer token. It is re-read when it changes so
	// that a refreshed token is used on the next reconnect.
	TokenFile string `koanf:"token_file"`

	// UserID overrides the id read from the token claims.
	UserID string `koanf:"user_id"`

	// UserIDClaim is the JWT claim holding the user id.
	// Default: sub
	UserIDClaim string `koanf:"user_id_claim"`
}

// HasCredential reports whether a token source is configured.
func (s SessionConfig) HasCredential() bool {
	return s.AccessToken != "" || s.TokenFile != ""
}

// ServerConfig configures the inspector HTTP API.
type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`

	// CORSOrigins allowed to call the API. ["*"] allows all.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitReqs per RateLimitWindow per client IP. 0 disables limiting.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuditConfig configures the in-memory session event journal.
type AuditConfig struct {
	Enabled bool `koanf:"enabled"`

	// MaxEvents is how many events the journal keeps.
	// Default: 1000
	MaxEvents int `koanf:"max_events"`

	// BufferSize is the async write buffer. Events are dropped when full.
	// Default: 256
	BufferSize int `koanf:"buffer_size"`

	// LogToStdout also writes every event through the logger.
	LogToStdout bool `koanf:"log_to_stdout"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// Load reads configuration from defaults, the optional config file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
