// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/chatpresence/internal/sync"
)

// HealthLive reports that the process is serving requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"status":         "alive",
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady reports 200 only while the presence channel is connected.
// Reconnecting counts as not ready so load balancers and scripts can tell
// live status updates are paused.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	state := sync.StateUninitialized
	if h.session != nil {
		state = h.session.State()
	}
	if state != sync.StateConnected {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"Presence channel is not connected", map[string]string{"state": state.String()})
		return
	}

	rw.Success(map[string]string{
		"status": "ready",
		"state":  state.String(),
	})
}
