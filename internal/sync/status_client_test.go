// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package sync

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/tomtom215/chatpresence/internal/config"
	"github.com/tomtom215/chatpresence/internal/models"
	"github.com/tomtom215/chatpresence/internal/testinfra"
)

// newTestAPIConfig returns an API config pointing at baseURL with rate
// limiting disabled.
func newTestAPIConfig(baseURL string) *config.APIConfig {
	return &config.APIConfig{
		BaseURL:        baseURL,
		StatusesPath:   testinfra.StatusesPath,
		RequestTimeout: 2 * time.Second,
	}
}

func staticToken(token string) TokenFunc {
	return func() string { return token }
}

// ============================================================================
// Constructor Tests
// ============================================================================

func TestNewStatusClient(t *testing.T) {
	cfg := newTestAPIConfig("https://chat.example.com/")
	client := NewStatusClient(cfg, nil)

	checkStringEqual(t, "endpoint", client.endpoint, "https://chat.example.com/api/users/statuses")
	checkTrue(t, "timeout from config", client.timeout == 2*time.Second)
	checkTrue(t, "http client timeout", client.httpClient.Timeout == 2*time.Second)
}

func TestNewStatusClient_DefaultTimeout(t *testing.T) {
	cfg := newTestAPIConfig("https://chat.example.com")
	cfg.RequestTimeout = 0

	client := NewStatusClient(cfg, nil)
	checkTrue(t, "default fetch timeout", client.timeout == DefaultFetchTimeout)
}

// ============================================================================
// Fetch Tests
// ============================================================================

func TestStatusClient_EmptySetMakesNoRequest(t *testing.T) {
	api := testinfra.NewFakeStatusAPI(t)
	client := NewStatusClient(newTestAPIConfig(api.URL()), nil)

	tests := []struct {
		name string
		ids  []models.UserID
	}{
		{"nil", nil},
		{"empty", []models.UserID{}},
		{"blank ids only", []models.UserID{"", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := client.FetchStatuses(context.Background(), tt.ids)
			if err != nil {
				t.Fatalf("FetchStatuses() error = %v", err)
			}
			if entries == nil {
				t.Error("expected empty slice, got nil")
			}
			checkIntEqual(t, "entries", len(entries), 0)
		})
	}

	checkIntEqual(t, "requests", api.RequestCount(), 0)
}

func TestStatusClient_DeduplicatesRequest(t *testing.T) {
	api := testinfra.NewFakeStatusAPI(t)
	client := NewStatusClient(newTestAPIConfig(api.URL()), nil)

	_, err := client.FetchStatuses(context.Background(), []models.UserID{"alice", "bob", "alice", ""})
	if err != nil {
		t.Fatalf("FetchStatuses() error = %v", err)
	}

	requests := api.Requests()
	if len(requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(requests))
	}
	got := requests[0].IDs
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("request ids = %v, want [alice bob]", got)
	}
}

func TestStatusClient_PartialResult(t *testing.T) {
	api := testinfra.NewFakeStatusAPI(t)
	api.Set("alice", models.StatusBusy)
	client := NewStatusClient(newTestAPIConfig(api.URL()), nil)

	entries, err := client.FetchStatuses(context.Background(), []models.UserID{"alice", "bob"})
	if err != nil {
		t.Fatalf("FetchStatuses() error = %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d: %v", len(entries), entries)
	}
	checkStringEqual(t, "user id", string(entries[0].UserID), "alice")
	checkStringEqual(t, "status", entries[0].Status.String(), "Busy")
}

func TestStatusClient_SendsBearerToken(t *testing.T) {
	api := testinfra.NewFakeStatusAPI(t)
	token := "first"
	client := NewStatusClient(newTestAPIConfig(api.URL()), func() string { return token })

	if _, err := client.FetchStatuses(context.Background(), []models.UserID{"alice"}); err != nil {
		t.Fatalf("FetchStatuses() error = %v", err)
	}
	token = "second"
	if _, err := client.FetchStatuses(context.Background(), []models.UserID{"alice"}); err != nil {
		t.Fatalf("FetchStatuses() error = %v", err)
	}

	requests := api.Requests()
	checkIntEqual(t, "requests", len(requests), 2)
	checkStringEqual(t, "first token", requests[0].Authorization, "first")
	checkStringEqual(t, "second token", requests[1].Authorization, "second")
}

func TestStatusClient_DropsInvalidEntries(t *testing.T) {
	api := testinfra.NewFakeStatusAPI(t)
	api.RespondRaw([]byte(`[
		{"userId": "alice", "presenceStatus": "Online"},
		{"userId": "", "presenceStatus": "Busy"},
		{"userId": "bob"},
		{"userId": "carol", "presenceStatus": "Sleeping"},
		{"userId": "mallory", "presenceStatus": "Absent"},
		{"userId": "dave", "presenceStatus": 2}
	]`))
	client := NewStatusClient(newTestAPIConfig(api.URL()), nil)

	entries, err := client.FetchStatuses(context.Background(), []models.UserID{"alice", "bob", "carol", "dave"})
	if err != nil {
		t.Fatalf("FetchStatuses() error = %v", err)
	}

	got := make(map[models.UserID]models.PresenceStatus)
	for _, e := range entries {
		got[e.UserID] = e.Status
	}
	checkIntEqual(t, "entries", len(got), 2)
	checkStringEqual(t, "alice", got["alice"].String(), "Online")
	checkStringEqual(t, "dave (ordinal)", got["dave"].String(), "Absent")
	if _, ok := got["mallory"]; ok {
		t.Error("entry for an id that was not requested should be dropped")
	}
	if _, ok := got["bob"]; ok {
		t.Error("entry without a status should be dropped, not defaulted")
	}
}

// ============================================================================
// Error Tests
// ============================================================================

func TestStatusClient_ServerError(t *testing.T) {
	api := testinfra.NewFakeStatusAPI(t)
	api.FailWith(http.StatusInternalServerError)
	client := NewStatusClient(newTestAPIConfig(api.URL()), nil)

	entries, err := client.FetchStatuses(context.Background(), []models.UserID{"alice"})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if entries != nil {
		t.Errorf("expected no entries on failure, got %v", entries)
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	checkStringEqual(t, "op", fe.Op, "status")
	checkIntEqual(t, "status code", fe.StatusCode, http.StatusInternalServerError)
}

func TestStatusClient_UndecodableBody(t *testing.T) {
	api := testinfra.NewFakeStatusAPI(t)
	api.RespondRaw([]byte(`{"not": "an array"}`))
	client := NewStatusClient(newTestAPIConfig(api.URL()), nil)

	_, err := client.FetchStatuses(context.Background(), []models.UserID{"alice"})

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	checkStringEqual(t, "op", fe.Op, "decode")
}

func TestStatusClient_TransportError(t *testing.T) {
	client := NewStatusClient(newTestAPIConfig("http://127.0.0.1:1"), nil)

	_, err := client.FetchStatuses(context.Background(), []models.UserID{"alice"})

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	checkStringEqual(t, "op", fe.Op, "request")
	checkIntEqual(t, "status code", fe.StatusCode, 0)
}

func TestStatusClient_Timeout(t *testing.T) {
	api := testinfra.NewFakeStatusAPI(t)
	api.Set("alice", models.StatusOnline)
	api.SetDelay(500 * time.Millisecond)

	cfg := newTestAPIConfig(api.URL())
	cfg.RequestTimeout = 50 * time.Millisecond
	client := NewStatusClient(cfg, nil)

	start := time.Now()
	_, err := client.FetchStatuses(context.Background(), []models.UserID{"alice"})
	elapsed := time.Since(start)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	checkStringEqual(t, "op", fe.Op, "request")
	if elapsed > 400*time.Millisecond {
		t.Errorf("fetch took %v, expected the request timeout to cut it short", elapsed)
	}
}

func TestStatusClient_RateLimited(t *testing.T) {
	api := testinfra.NewFakeStatusAPI(t)
	cfg := newTestAPIConfig(api.URL())
	cfg.RateLimitRPS = 0.01
	cfg.RateLimitBurst = 1
	client := NewStatusClient(cfg, nil)

	if _, err := client.FetchStatuses(context.Background(), []models.UserID{"alice"}); err != nil {
		t.Fatalf("first FetchStatuses() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.FetchStatuses(ctx, []models.UserID{"alice"})

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	checkStringEqual(t, "op", fe.Op, "rate_limit")
	checkIntEqual(t, "requests", api.RequestCount(), 1)
}

func TestFetchError_Error(t *testing.T) {
	inner := errors.New("boom")

	withStatus := &FetchError{Op: "status", StatusCode: 503, Err: inner}
	checkStringEqual(t, "with status", withStatus.Error(), "status fetch status failed (status 503): boom")

	withoutStatus := &FetchError{Op: "request", Err: inner}
	checkStringEqual(t, "without status", withoutStatus.Error(), "status fetch request failed: boom")

	checkTrue(t, "unwrap", errors.Is(withStatus, inner))
}
