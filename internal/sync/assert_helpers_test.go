// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package sync

import (
	"testing"
	"time"

	"github.com/tomtom215/chatpresence/internal/models"
	"github.com/tomtom215/chatpresence/internal/presence"
)

// Test assertion helpers with "check" prefix.
// Using t.Helper() ensures error messages point to the calling line.

// checkStringEqual checks that got equals want, failing if not
func checkStringEqual(t *testing.T, fieldName, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %q, got %q", fieldName, want, got)
	}
}

// checkIntEqual checks that got equals want
func checkIntEqual(t *testing.T, fieldName string, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %d, got %d", fieldName, want, got)
	}
}

// checkTrue checks that condition is true
func checkTrue(t *testing.T, description string, condition bool) {
	t.Helper()
	if !condition {
		t.Errorf("expected %s to be true", description)
	}
}

// checkStatus checks the store holds want for id
func checkStatus(t *testing.T, store *presence.Store, id models.UserID, want models.PresenceStatus) {
	t.Helper()
	got, ok := store.Status(id)
	if !ok {
		t.Errorf("status of %s: expected %s, got unknown", id, want)
		return
	}
	if got != want {
		t.Errorf("status of %s: expected %s, got %s", id, want, got)
	}
}

// checkUnknown checks the store has no status for id
func checkUnknown(t *testing.T, store *presence.Store, id models.UserID) {
	t.Helper()
	if got, ok := store.Status(id); ok {
		t.Errorf("status of %s: expected unknown, got %s", id, got)
	}
}

// eventually polls cond every 10ms until it holds or timeout passes
func eventually(t *testing.T, timeout time.Duration, description string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %s waiting for %s", timeout, description)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
