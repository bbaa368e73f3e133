// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package testinfra

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/chatpresence/internal/models"
)

// StatusesPath is the batch endpoint served by FakeStatusAPI.
const StatusesPath = "/api/users/statuses"

// StatusRequest is a captured batch request.
type StatusRequest struct {
	IDs           []models.UserID
	Authorization string
}

// FakeStatusAPI serves the batch status endpoint from an in-memory table.
// Ids without a table entry are omitted from the response, which is how the
// real backend reports users it does not know.
type FakeStatusAPI struct {
	Server *httptest.Server

	mu       sync.Mutex
	statuses map[models.UserID]models.PresenceStatus
	requests []StatusRequest

	// failStatus, when non-zero, is returned instead of data.
	failStatus int
	// rawBody, when set, is returned verbatim with 200.
	rawBody []byte
	delay   time.Duration
}

// NewFakeStatusAPI starts the fake endpoint. It is closed when the test ends.
func NewFakeStatusAPI(t testing.TB) *FakeStatusAPI {
	t.Helper()

	f := &FakeStatusAPI{
		statuses: make(map[models.UserID]models.PresenceStatus),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the fake backend.
func (f *FakeStatusAPI) URL() string {
	return f.Server.URL
}

// Set stores the status returned for id.
func (f *FakeStatusAPI) Set(id models.UserID, status models.PresenceStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
}

// FailWith makes every request answer with status. 0 restores normal answers.
func (f *FakeStatusAPI) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus = status
}

// RespondRaw makes every request answer 200 with body. nil restores normal answers.
func (f *FakeStatusAPI) RespondRaw(body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rawBody = body
}

// SetDelay delays every answer by d.
func (f *FakeStatusAPI) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// Requests returns every captured request.
func (f *FakeStatusAPI) Requests() []StatusRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]StatusRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// RequestCount returns the number of captured requests.
func (f *FakeStatusAPI) RequestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *FakeStatusAPI) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != StatusesPath {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var ids []models.UserID
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, StatusRequest{
		IDs:           ids,
		Authorization: strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
	})
	failStatus := f.failStatus
	rawBody := f.rawBody
	delay := f.delay
	entries := make([]models.StatusEntry, 0, len(ids))
	for _, id := range ids {
		if status, ok := f.statuses[id]; ok {
			entries = append(entries, models.StatusEntry{UserID: id, Status: status})
		}
	}
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if failStatus != 0 {
		http.Error(w, http.StatusText(failStatus), failStatus)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if rawBody != nil {
		_, _ = w.Write(rawBody)
		return
	}
	_ = json.NewEncoder(w).Encode(entries)
}
