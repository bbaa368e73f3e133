// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

/*
Package config loads presenced configuration with Koanf v2.

Precedence is environment variables over the YAML config file over built-in
defaults. Only the environment variables listed below are read.

# Environment Variables

Hub:
  - HUB_URL (required): presence hub endpoint, ws(s):// or http(s)://
  - HUB_HANDSHAKE_TIMEOUT (15s), HUB_KEEPALIVE_INTERVAL (15s)
  - HUB_SERVER_TIMEOUT (30s), HUB_TEARDOWN_TIMEOUT (1s)

Reconnect policy:
  - RECONNECT_MAX_ATTEMPTS (10, 0 = unlimited)
  - RECONNECT_BASE_DELAY (1s), RECONNECT_MAX_DELAY (32s)
  - RECONNECT_MULTIPLIER (2.0), RECONNECT_JITTER (0.2)

Status API:
  - STATUS_API_URL (required), STATUS_API_PATH (/api/users/statuses)
  - STATUS_API_TIMEOUT (10s)
  - STATUS_API_RATE_LIMIT_RPS (10), STATUS_API_RATE_LIMIT_BURST (20)
  - STATUS_API_UNKNOWN_TTL (30s, 0 disables the negative cache)
  - STATUS_API_BREAKER_* circuit breaker tuning

Session:
  - ACCESS_TOKEN or ACCESS_TOKEN_FILE
  - USER_ID (optional override), USER_ID_CLAIM (sub)

Inspector API:
  - HTTP_ENABLED (true), HTTP_HOST (127.0.0.1), HTTP_PORT (8089)
  - CORS_ORIGINS (comma separated), RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW

Session event journal:
  - AUDIT_ENABLED (true), AUDIT_MAX_EVENTS (1000), AUDIT_BUFFER_SIZE (256)
  - AUDIT_LOG_TO_STDOUT (false)

Logging:
  - LOG_LEVEL (info), LOG_FORMAT (json), LOG_CALLER (false)

# Config File

	hub:
	  url: wss://chat.example.com/hubs/presence
	reconnect:
	  max_attempts: 0
	api:
	  base_url: https://chat.example.com
	session:
	  token_file: /run/secrets/chat_token
*/
package config
