// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/chatpresence/internal/audit"
	"github.com/tomtom215/chatpresence/internal/logging"
)

// eventsQuery holds the validated query parameters of GET /events.
type eventsQuery struct {
	Limit  int    `json:"limit" validate:"gte=0,lte=1000"`
	UserID string `json:"user_id" validate:"omitempty,user_id"`
}

// ListEvents returns journal events, newest first.
//
// Query parameters: type (comma separated), user_id, since (RFC 3339),
// limit (default 100, max 1000).
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.journal == nil {
		rw.ServiceUnavailable("Event journal is disabled")
		return
	}

	q := r.URL.Query()
	query := eventsQuery{UserID: q.Get("user_id")}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			rw.BadRequest("limit must be an integer")
			return
		}
		query.Limit = limit
	}
	if !validate(rw, &query) {
		return
	}

	filter := audit.DefaultQueryFilter()
	if query.Limit > 0 {
		filter.Limit = query.Limit
	}
	filter.UserID = query.UserID
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			rw.BadRequest("since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = &since
	}
	if raw := q.Get("type"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Types = append(filter.Types, audit.EventType(t))
			}
		}
	}

	events, err := h.journal.Query(r.Context(), filter)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Event query failed")
		rw.InternalError("Failed to query events")
		return
	}
	rw.SuccessWithCount(events, len(events))
}
