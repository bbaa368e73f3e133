// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/chatpresence/config.yaml",
	"/etc/chatpresence/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults. They are loaded first and
// overridden by the config file and then by environment variables.
func defaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			URL:               "",
			HandshakeTimeout:  15 * time.Second,
			KeepAliveInterval: 15 * time.Second,
			ServerTimeout:     30 * time.Second,
			TeardownTimeout:   time.Second,
		},
		Reconnect: ReconnectConfig{
			MaxAttempts: 10,
			BaseDelay:   time.Second,
			MaxDelay:    32 * time.Second,
			Multiplier:  2.0,
			Jitter:      0.2,
		},
		API: APIConfig{
			BaseURL:        "",
			StatusesPath:   "/api/users/statuses",
			RequestTimeout: 10 * time.Second,
			RateLimitRPS:   10,
			RateLimitBurst: 20,
			UnknownTTL:     30 * time.Second,
		},
		Breaker: BreakerConfig{
			Enabled:      true,
			MaxRequests:  3,
			Interval:     time.Minute,
			Timeout:      30 * time.Second,
			MinRequests:  10,
			FailureRatio: 0.6,
		},
		Session: SessionConfig{
			UserIDClaim: "sub",
		},
		Server: ServerConfig{
			Enabled:         true,
			Host:            "127.0.0.1",
			Port:            8089,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			MaxEvents:  1000,
			BufferSize: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration in three layers:
//  1. Defaults
//  2. Config File (optional)
//  3. Environment Variables
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// HUB_URL -> hub.url, ACCESS_TOKEN -> session.access_token, ...
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns CONFIG_PATH when it exists, else the first existing
// default path, else "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set via env.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Unmapped variables are ignored so the process environment cannot leak
// into configuration by accident.
var envMappings = map[string]string{
	// Hub
	"hub_url":                "hub.url",
	"hub_handshake_timeout":  "hub.handshake_timeout",
	"hub_keepalive_interval": "hub.keepalive_interval",
	"hub_server_timeout":     "hub.server_timeout",
	"hub_teardown_timeout":   "hub.teardown_timeout",

	// Reconnect policy
	"reconnect_max_attempts": "reconnect.max_attempts",
	"reconnect_base_delay":   "reconnect.base_delay",
	"reconnect_max_delay":    "reconnect.max_delay",
	"reconnect_multiplier":   "reconnect.multiplier",
	"reconnect_jitter":       "reconnect.jitter",

	// Status API
	"status_api_url":              "api.base_url",
	"status_api_path":             "api.statuses_path",
	"status_api_timeout":          "api.request_timeout",
	"status_api_rate_limit_rps":   "api.rate_limit_rps",
	"status_api_rate_limit_burst": "api.rate_limit_burst",
	"status_api_unknown_ttl":      "api.unknown_ttl",

	// Circuit breaker
	"status_api_breaker_enabled":       "breaker.enabled",
	"status_api_breaker_max_requests":  "breaker.max_requests",
	"status_api_breaker_interval":      "breaker.interval",
	"status_api_breaker_timeout":       "breaker.timeout",
	"status_api_breaker_min_requests":  "breaker.min_requests",
	"status_api_breaker_failure_ratio": "breaker.failure_ratio",

	// Session
	"access_token":      "session.access_token",
	"access_token_file": "session.token_file",
	"user_id":           "session.user_id",
	"user_id_claim":     "session.user_id_claim",

	// Inspector API
	"http_enabled":          "server.enabled",
	"http_host":             "server.host",
	"http_port":             "server.port",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_reqs",
	"rate_limit_window":     "server.rate_limit_window",
	"http_shutdown_timeout": "server.shutdown_timeout",

	// Session event journal
	"audit_enabled":       "audit.enabled",
	"audit_max_events":    "audit.max_events",
	"audit_buffer_size":   "audit.buffer_size",
	"audit_log_to_stdout": "audit.log_to_stdout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path, or
// "" to skip it.
//
// Examples:
//   - HUB_URL -> hub.url
//   - STATUS_API_URL -> api.base_url
//   - ACCESS_TOKEN_FILE -> session.token_file
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile calls callback every time path changes until stop is
// called. Presenced uses it on the session token file so a refreshed token
// is picked up without a restart. The caller owns any locking inside
// callback.
func WatchConfigFile(path string, callback func()) (stop func() error, err error) {
	provider := file.Provider(path)
	err = provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
	if err != nil {
		return nil, err
	}
	return provider.Unwatch, nil
}
