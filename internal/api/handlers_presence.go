// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/chatpresence/internal/audit"
	"github.com/tomtom215/chatpresence/internal/logging"
	"github.com/tomtom215/chatpresence/internal/models"
	"github.com/tomtom215/chatpresence/internal/session"
	"github.com/tomtom215/chatpresence/internal/sync"
)

// PresenceState is the response of GET /presence/state.
type PresenceState struct {
	State        string `json:"state"`
	UserID       string `json:"userId,omitempty"`
	KnownUsers   int    `json:"knownUsers"`
	StoreVersion uint64 `json:"storeVersion"`
}

// UserStatus is one user's entry in the store. Known is false when the
// store has never heard of the user; Status is then omitted, never Offline.
type UserStatus struct {
	UserID models.UserID         `json:"userId"`
	Status models.PresenceStatus `json:"presenceStatus,omitempty"`
	Known  bool                  `json:"known"`
}

// StatusList is the response of the list and hydrate endpoints.
type StatusList struct {
	Statuses []models.StatusEntry `json:"statuses"`
	Unknown  []models.UserID      `json:"unknown,omitempty"`
}

// idsRequest bounds one lookup or hydration to 500 ids.
type idsRequest struct {
	UserIDs     []models.UserID `json:"userIds" validate:"required,min=1,max=500,dive,user_id"`
	MissingOnly bool            `json:"missingOnly"`
}

type setStatusRequest struct {
	Status string `json:"presenceStatus" validate:"required,presence_status"`
}

// GetPresenceState returns the channel state, the signed-in user and the
// store size.
func (h *Handler) GetPresenceState(w http.ResponseWriter, r *http.Request) {
	resp := PresenceState{
		State:        sync.StateUninitialized.String(),
		StoreVersion: h.store.Version(),
		KnownUsers:   h.store.Len(),
	}
	if h.session != nil {
		resp.State = h.session.State().String()
		resp.UserID = string(h.session.UserID())
	}
	NewResponseWriter(w, r).Success(resp)
}

// GetStatus returns one user's status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := models.UserID(chi.URLParam(r, "userID"))

	req := struct {
		UserID models.UserID `json:"userID" validate:"user_id"`
	}{UserID: id}
	if !validate(rw, &req) {
		return
	}

	status, known := h.store.Status(id)
	rw.Success(UserStatus{UserID: id, Status: status, Known: known})
}

// ListStatuses returns every known status, or with ?ids=a,b only the
// requested ones plus the ids the store does not know.
func (h *Handler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	raw := r.URL.Query().Get("ids")
	if raw == "" {
		entries := sortedEntries(h.store.Snapshot())
		rw.SuccessWithCount(StatusList{Statuses: entries}, len(entries))
		return
	}

	req := idsRequest{UserIDs: splitIDs(raw)}
	if !validate(rw, &req) {
		return
	}

	ids := models.UniqueUserIDs(req.UserIDs)
	list := StatusList{Statuses: make([]models.StatusEntry, 0, len(ids))}
	for _, id := range ids {
		if status, ok := h.store.Status(id); ok {
			list.Statuses = append(list.Statuses, models.StatusEntry{UserID: id, Status: status})
		} else {
			list.Unknown = append(list.Unknown, id)
		}
	}
	rw.SuccessWithCount(list, len(list.Statuses))
}

// HydrateStatuses fetches statuses for the requested ids from the chat
// backend and writes them into the store. With missingOnly set, ids the
// store already knows are skipped. A backend failure answers 502 and leaves
// the store untouched.
func (h *Handler) HydrateStatuses(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.hydrator == nil {
		rw.ServiceUnavailable("Status hydration is not configured")
		return
	}

	var req idsRequest
	if !decodeJSON(rw, r, &req) || !validate(rw, &req) {
		return
	}

	hydrate := h.hydrator.Hydrate
	if req.MissingOnly {
		hydrate = h.hydrator.HydrateMissing
	}

	entries, err := hydrate(r.Context(), req.UserIDs)
	if err != nil {
		h.record(r, &audit.Event{
			Type:        audit.EventTypeHydrationFailed,
			Severity:    audit.SeverityError,
			Outcome:     audit.OutcomeFailure,
			Action:      "hydrate statuses",
			Description: err.Error(),
			Metadata:    map[string]string{"requested": strconv.Itoa(len(req.UserIDs))},
		})
		var fetchErr *sync.FetchError
		if errors.As(err, &fetchErr) {
			rw.ExternalServiceError("chat-backend", err)
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("Hydration failed")
		rw.InternalError("Hydration failed")
		return
	}

	returned := make(map[models.UserID]struct{}, len(entries))
	for _, e := range entries {
		returned[e.UserID] = struct{}{}
	}
	list := StatusList{Statuses: entries}
	for _, id := range models.UniqueUserIDs(req.UserIDs) {
		if _, ok := returned[id]; ok {
			continue
		}
		if _, known := h.store.Status(id); !known {
			list.Unknown = append(list.Unknown, id)
		}
	}
	rw.SuccessWithCount(list, len(entries))
}

// SetMyStatus sets the signed-in user's status. The store is updated right
// away; the announcement to the hub is best effort, so the answer is 202.
func (h *Handler) SetMyStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.session == nil {
		rw.ServiceUnavailable("No presence session")
		return
	}

	var req setStatusRequest
	if !decodeJSON(rw, r, &req) || !validate(rw, &req) {
		return
	}

	status := models.PresenceStatus(req.Status)
	event := &audit.Event{
		Type:     audit.EventTypeStatusChangeRequested,
		Outcome:  audit.OutcomeSuccess,
		UserID:   string(h.session.UserID()),
		Action:   "set own status",
		Metadata: map[string]string{"status": status.String()},
	}
	if err := h.session.SetMyStatus(status); err != nil {
		event.Outcome = audit.OutcomeFailure
		event.Severity = audit.SeverityWarning
		event.Description = err.Error()
		h.record(r, event)
		if errors.Is(err, session.ErrNoSession) {
			rw.Conflict("No user is signed in")
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("Set status failed")
		rw.InternalError("Failed to set status")
		return
	}

	h.record(r, event)

	rw.Accepted(map[string]string{
		"userId":         string(h.session.UserID()),
		"presenceStatus": status.String(),
		"state":          h.session.State().String(),
	})
}

// splitIDs parses a comma separated id list. Blank items are kept so
// validation can report them.
func splitIDs(raw string) []models.UserID {
	parts := strings.Split(raw, ",")
	ids := make([]models.UserID, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, models.UserID(strings.TrimSpace(p)))
	}
	return ids
}

func sortedEntries(snapshot map[models.UserID]models.PresenceStatus) []models.StatusEntry {
	entries := make([]models.StatusEntry, 0, len(snapshot))
	for id, status := range snapshot {
		entries = append(entries, models.StatusEntry{UserID: id, Status: status})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UserID < entries[j].UserID })
	return entries
}
