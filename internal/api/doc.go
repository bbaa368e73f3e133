// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

/*
Package api provides the local inspector HTTP API of the presence daemon.

The API exposes the status store and the presence session to local tools
and browser views. It reaches the chat backend only through the hydrator.

Routes:

	GET  /api/v1/health/live          process is up
	GET  /api/v1/health/ready         presence channel is connected
	GET  /api/v1/presence/state       channel state, signed-in user, store size
	GET  /api/v1/statuses             all known statuses, or ?ids=a,b
	GET  /api/v1/statuses/{userID}    one user's status
	POST /api/v1/statuses/hydrate     fetch statuses from the backend
	PUT  /api/v1/me/status            set the signed-in user's status
	GET  /api/v1/events               session event journal (see package audit)
	GET  /api/v1/ws                   live feed (see package websocket)
	GET  /metrics                     Prometheus metrics

Every JSON response uses the envelope {success, data, error, meta}. Errors
carry a machine-readable code such as VALIDATION_FAILED or
EXTERNAL_SERVICE_FAILED.

Middleware:

  - RequestID: X-Request-ID and correlation id for logging
  - chi RealIP and Recoverer
  - go-chi/cors for the configured origins
  - go-chi/httprate per client IP
  - PrometheusMetrics per route pattern
*/
package api
