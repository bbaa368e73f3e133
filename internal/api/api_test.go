// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	stdsync "sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/chatpresence/internal/audit"
	"github.com/tomtom215/chatpresence/internal/logging"
	"github.com/tomtom215/chatpresence/internal/models"
	"github.com/tomtom215/chatpresence/internal/presence"
	"github.com/tomtom215/chatpresence/internal/session"
	"github.com/tomtom215/chatpresence/internal/sync"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "error",
		Format: "json",
		Output: io.Discard,
	})
}

// fakeSession records SetMyStatus calls the way session.Context applies them.
type fakeSession struct {
	mu     stdsync.Mutex
	state  sync.ChannelState
	userID models.UserID
	store  *presence.Store
	calls  []models.PresenceStatus
}

func (f *fakeSession) State() sync.ChannelState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) UserID() models.UserID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userID
}

func (f *fakeSession) SetMyStatus(status models.PresenceStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userID == "" {
		return session.ErrNoSession
	}
	f.calls = append(f.calls, status)
	f.store.SetStatus(f.userID, status, presence.SourceLocal)
	return nil
}

// fakeHydrator answers from a fixed table or fails with err.
type fakeHydrator struct {
	store   *presence.Store
	table   map[models.UserID]models.PresenceStatus
	err     error
	missing bool
}

func (f *fakeHydrator) Hydrate(_ context.Context, ids []models.UserID) ([]models.StatusEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var entries []models.StatusEntry
	for _, id := range ids {
		if status, ok := f.table[id]; ok {
			entries = append(entries, models.StatusEntry{UserID: id, Status: status})
		}
	}
	f.store.SetStatuses(entries, presence.SourceHydration)
	return entries, nil
}

func (f *fakeHydrator) HydrateMissing(ctx context.Context, ids []models.UserID) ([]models.StatusEntry, error) {
	f.missing = true
	return f.Hydrate(ctx, f.store.Unknown(ids))
}

// fakeJournal writes synchronously so tests can read right after a request.
type fakeJournal struct {
	store *audit.MemoryStore
}

func (f *fakeJournal) Log(event *audit.Event) {
	_ = f.store.Save(context.Background(), event)
}

func (f *fakeJournal) Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error) {
	return f.store.Query(ctx, filter)
}

func (f *fakeJournal) events(t *testing.T, typ audit.EventType) []audit.Event {
	t.Helper()
	events, _ := f.store.Query(context.Background(), audit.QueryFilter{Types: []audit.EventType{typ}})
	return events
}

type testEnv struct {
	store    *presence.Store
	session  *fakeSession
	hydrator *fakeHydrator
	journal  *fakeJournal
	handler  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := presence.NewStore()
	env := &testEnv{
		store:    store,
		session:  &fakeSession{state: sync.StateConnected, userID: "alice", store: store},
		hydrator: &fakeHydrator{store: store, table: map[models.UserID]models.PresenceStatus{}},
		journal:  &fakeJournal{store: audit.NewMemoryStore(100)},
	}
	h := NewHandler(HandlerOptions{
		Store:    store,
		Session:  env.session,
		Hydrator: env.hydrator,
		Journal:  env.journal,
	})
	env.handler = NewRouter(h).Setup()
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)

	var resp APIResponse
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v\n%s", err, w.Body.String())
		}
	}
	return w, resp
}

// decodeData re-decodes the envelope data into dst.
func decodeData(t *testing.T, resp APIResponse, dst interface{}) {
	t.Helper()
	data, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestHealthLive(t *testing.T) {
	env := newTestEnv(t)
	w, resp := env.do(t, http.MethodGet, "/api/v1/health/live", nil)

	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d, success = %v", w.Code, resp.Success)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if resp.Meta == nil || resp.Meta.RequestID != w.Header().Get("X-Request-ID") {
		t.Errorf("meta request id should match the header, got %+v", resp.Meta)
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		state    sync.ChannelState
		wantCode int
	}{
		{sync.StateConnected, http.StatusOK},
		{sync.StateReconnecting, http.StatusServiceUnavailable},
		{sync.StateConnecting, http.StatusServiceUnavailable},
		{sync.StateUninitialized, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			env := newTestEnv(t)
			env.session.state = tt.state

			w, resp := env.do(t, http.MethodGet, "/api/v1/health/ready", nil)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK && (resp.Error == nil || resp.Error.Code != ErrCodeServiceUnavailable) {
				t.Errorf("error = %+v", resp.Error)
			}
		})
	}
}

func TestGetPresenceState(t *testing.T) {
	env := newTestEnv(t)
	env.store.SetStatus("bob", models.StatusBusy, presence.SourceChannel)

	w, resp := env.do(t, http.MethodGet, "/api/v1/presence/state", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var state PresenceState
	decodeData(t, resp, &state)
	if state.State != "connected" || state.UserID != "alice" || state.KnownUsers != 1 || state.StoreVersion != env.store.Version() {
		t.Errorf("state = %+v", state)
	}
}

func TestGetStatus(t *testing.T) {
	env := newTestEnv(t)
	env.store.SetStatus("bob", models.StatusAbsent, presence.SourceChannel)

	t.Run("known", func(t *testing.T) {
		_, resp := env.do(t, http.MethodGet, "/api/v1/statuses/bob", nil)
		var got UserStatus
		decodeData(t, resp, &got)
		if !got.Known || got.Status != models.StatusAbsent {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("unknown is not offline", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/v1/statuses/carol", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		data, _ := resp.Data.(map[string]interface{})
		if data["known"] != false {
			t.Errorf("known = %v", data["known"])
		}
		if _, ok := data["presenceStatus"]; ok {
			t.Errorf("unknown user should have no status, got %v", data["presenceStatus"])
		}
	})
}

func TestListStatuses(t *testing.T) {
	env := newTestEnv(t)
	env.store.SetStatuses([]models.StatusEntry{
		{UserID: "carol", Status: models.StatusOffline},
		{UserID: "bob", Status: models.StatusBusy},
	}, presence.SourceHydration)

	t.Run("all sorted", func(t *testing.T) {
		_, resp := env.do(t, http.MethodGet, "/api/v1/statuses", nil)
		var list StatusList
		decodeData(t, resp, &list)
		if len(list.Statuses) != 2 || list.Statuses[0].UserID != "bob" || list.Statuses[1].UserID != "carol" {
			t.Errorf("statuses = %+v", list.Statuses)
		}
		if resp.Meta.Count == nil || *resp.Meta.Count != 2 {
			t.Errorf("count = %v", resp.Meta.Count)
		}
	})

	t.Run("by ids", func(t *testing.T) {
		_, resp := env.do(t, http.MethodGet, "/api/v1/statuses?ids=bob,dave,bob", nil)
		var list StatusList
		decodeData(t, resp, &list)
		if len(list.Statuses) != 1 || list.Statuses[0].Status != models.StatusBusy {
			t.Errorf("statuses = %+v", list.Statuses)
		}
		if len(list.Unknown) != 1 || list.Unknown[0] != "dave" {
			t.Errorf("unknown = %v", list.Unknown)
		}
	})

	t.Run("blank id", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/v1/statuses?ids=bob,,", nil)
		if w.Code != http.StatusBadRequest || resp.Error.Code != ErrCodeValidationFailed {
			t.Errorf("status = %d, error = %+v", w.Code, resp.Error)
		}
	})
}

func TestHydrateStatuses(t *testing.T) {
	t.Run("writes store", func(t *testing.T) {
		env := newTestEnv(t)
		env.hydrator.table["bob"] = models.StatusOnline

		w, resp := env.do(t, http.MethodPost, "/api/v1/statuses/hydrate",
			map[string]interface{}{"userIds": []string{"bob", "ghost"}})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}

		var list StatusList
		decodeData(t, resp, &list)
		if len(list.Statuses) != 1 || len(list.Unknown) != 1 || list.Unknown[0] != "ghost" {
			t.Errorf("list = %+v", list)
		}
		if status, _ := env.store.Status("bob"); status != models.StatusOnline {
			t.Errorf("store status = %q", status)
		}
	})

	t.Run("missing only", func(t *testing.T) {
		env := newTestEnv(t)
		_, _ = env.do(t, http.MethodPost, "/api/v1/statuses/hydrate",
			map[string]interface{}{"userIds": []string{"bob"}, "missingOnly": true})
		if !env.hydrator.missing {
			t.Error("missingOnly should use HydrateMissing")
		}
	})

	t.Run("backend failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.hydrator.err = &sync.FetchError{Op: "status", StatusCode: 500, Err: errors.New("boom")}

		w, resp := env.do(t, http.MethodPost, "/api/v1/statuses/hydrate",
			map[string]interface{}{"userIds": []string{"bob"}})
		if w.Code != http.StatusBadGateway || resp.Error.Code != ErrCodeExternalServiceFail {
			t.Errorf("status = %d, error = %+v", w.Code, resp.Error)
		}
		if env.store.Len() != 0 {
			t.Error("store should be untouched on failure")
		}
		failures := env.journal.events(t, audit.EventTypeHydrationFailed)
		if len(failures) != 1 || failures[0].Metadata["requested"] != "1" || failures[0].RequestID == "" || failures[0].UserID != "alice" {
			t.Errorf("journal = %+v", failures)
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		env := newTestEnv(t)
		w, resp := env.do(t, http.MethodPost, "/api/v1/statuses/hydrate", "{not json")
		if w.Code != http.StatusBadRequest || resp.Error.Code != ErrCodeBadRequest {
			t.Errorf("status = %d, error = %+v", w.Code, resp.Error)
		}
	})

	t.Run("empty ids", func(t *testing.T) {
		env := newTestEnv(t)
		w, resp := env.do(t, http.MethodPost, "/api/v1/statuses/hydrate", map[string]interface{}{"userIds": []string{}})
		if w.Code != http.StatusBadRequest || resp.Error.Code != ErrCodeValidationFailed {
			t.Errorf("status = %d, error = %+v", w.Code, resp.Error)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		store := presence.NewStore()
		handler := NewRouter(NewHandler(HandlerOptions{Store: store})).Setup()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/statuses/hydrate", bytes.NewBufferString(`{"userIds":["a"]}`))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d", w.Code)
		}
	})
}

func TestSetMyStatus(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		env := newTestEnv(t)
		w, _ := env.do(t, http.MethodPut, "/api/v1/me/status", map[string]string{"presenceStatus": "Busy"})
		if w.Code != http.StatusAccepted {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		if status, _ := env.store.Status("alice"); status != models.StatusBusy {
			t.Errorf("store status = %q", status)
		}
		events := env.journal.events(t, audit.EventTypeStatusChangeRequested)
		if len(events) != 1 || events[0].Outcome != audit.OutcomeSuccess || events[0].Metadata["status"] != "Busy" {
			t.Errorf("journal = %+v", events)
		}
	})

	t.Run("invalid status", func(t *testing.T) {
		env := newTestEnv(t)
		w, resp := env.do(t, http.MethodPut, "/api/v1/me/status", map[string]string{"presenceStatus": "Away"})
		if w.Code != http.StatusBadRequest || resp.Error.Code != ErrCodeValidationFailed {
			t.Errorf("status = %d, error = %+v", w.Code, resp.Error)
		}
		if len(env.session.calls) != 0 {
			t.Error("invalid status should not reach the session")
		}
	})

	t.Run("signed out", func(t *testing.T) {
		env := newTestEnv(t)
		env.session.userID = ""
		w, resp := env.do(t, http.MethodPut, "/api/v1/me/status", map[string]string{"presenceStatus": "Online"})
		if w.Code != http.StatusConflict || resp.Error.Code != ErrCodeConflict {
			t.Errorf("status = %d, error = %+v", w.Code, resp.Error)
		}
		events := env.journal.events(t, audit.EventTypeStatusChangeRequested)
		if len(events) != 1 || events[0].Outcome != audit.OutcomeFailure {
			t.Errorf("journal = %+v", events)
		}
	})
}

func TestListEvents(t *testing.T) {
	env := newTestEnv(t)
	env.journal.Log(&audit.Event{ID: "1", Type: audit.EventTypeSignedIn, UserID: "alice"})
	env.journal.Log(&audit.Event{ID: "2", Type: audit.EventTypeChannelState, UserID: "alice"})
	env.journal.Log(&audit.Event{ID: "3", Type: audit.EventTypeSignedIn, UserID: "bob"})

	tests := []struct {
		name    string
		query   string
		wantIDs string
	}{
		{"all newest first", "", "321"},
		{"by type", "?type=session.signed_in", "31"},
		{"by user", "?user_id=alice", "21"},
		{"limit", "?limit=1", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := env.do(t, http.MethodGet, "/api/v1/events"+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
			var events []audit.Event
			decodeData(t, resp, &events)
			ids := ""
			for _, e := range events {
				ids += e.ID
			}
			if ids != tt.wantIDs {
				t.Errorf("ids = %q, want %q", ids, tt.wantIDs)
			}
		})
	}

	for _, bad := range []string{"?limit=abc", "?limit=5000", "?since=yesterday"} {
		w, _ := env.do(t, http.MethodGet, "/api/v1/events"+bad, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", bad, w.Code)
		}
	}

	disabled := NewRouter(NewHandler(HandlerOptions{Store: presence.NewStore()})).Setup()
	w := httptest.NewRecorder()
	disabled.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("without journal status = %d, want 503", w.Code)
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.do(t, http.MethodGet, "/api/v1/nope", nil)
	if w.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("status = %d, error = %+v", w.Code, resp.Error)
	}

	w, resp = env.do(t, http.MethodDelete, "/api/v1/me/status", nil)
	if w.Code != http.StatusMethodNotAllowed || resp.Error == nil || resp.Error.Code != ErrCodeMethodNotAllowed {
		t.Errorf("status = %d, error = %+v", w.Code, resp.Error)
	}
}

func TestRouter_Metrics(t *testing.T) {
	env := newTestEnv(t)
	_, _ = env.do(t, http.MethodGet, "/api/v1/presence/state", nil)

	w, _ := env.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`route="/api/v1/presence/state"`)) {
		t.Error("expected api request metric labelled by route pattern")
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	env := newTestEnv(t)
	w, _ := env.do(t, http.MethodGet, "/api/v1/presence/state", nil)
	if w.Header().Get("X-Content-Type-Options") != "nosniff" || w.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("headers = %v", w.Header())
	}
}

func TestSessionUserMiddleware(t *testing.T) {
	store := presence.NewStore()
	h := NewHandler(HandlerOptions{Store: store, Session: &fakeSession{userID: "alice", store: store}})

	var got string
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = logging.UserIDFromContext(r.Context())
	})
	h.sessionUser(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got != "alice" {
		t.Errorf("user id in context = %q, want alice", got)
	}

	signedOut := NewHandler(HandlerOptions{Store: store, Session: &fakeSession{store: store}})
	signedOut.sessionUser(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got != "" {
		t.Errorf("user id while signed out = %q, want empty", got)
	}
}
