// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

/*
Package middleware provides HTTP middleware for the inspector API.

Key Components:

  - RequestID: X-Request-ID propagation plus a logging correlation id
  - PrometheusMetrics: request count and latency by chi route pattern

Both are plain func(http.Handler) http.Handler and are mounted with chi:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
