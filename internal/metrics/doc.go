// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

/*
Package metrics exposes Prometheus instrumentation for the presence subsystem.

All collectors are registered on the default registry through promauto and
are served by the inspector API at /metrics:

	curl http://localhost:8089/metrics

# Available Metrics

Status store:
  - presence_store_entries: users with a known status
  - presence_store_writes_total{source}: entries written per writer

Presence channel:
  - presence_channel_state: 0=disconnected, 1=connecting, 2=connected, 3=reconnecting
  - presence_channel_connects_total{result}
  - presence_channel_reconnect_attempts_total
  - presence_hub_messages_received_total{target}
  - presence_hub_messages_sent_total{target,result}
  - presence_hub_errors_total{error_type}

Status fetcher:
  - presence_fetch_duration_seconds
  - presence_fetch_requests_total{result}
  - presence_fetch_entries_total{outcome}
  - circuit_breaker_* for the "status_api" breaker

Inspector API:
  - api_requests_total{method,route,status}
  - api_request_duration_seconds{method,route}
*/
package metrics
