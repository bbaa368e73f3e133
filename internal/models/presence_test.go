// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package models

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestPresenceStatus_IsValid(t *testing.T) {
	t.Parallel()

	for _, s := range AllStatuses() {
		if !s.IsValid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if StatusUnknown.IsValid() {
		t.Error("StatusUnknown must not be valid")
	}
	if PresenceStatus("Away").IsValid() {
		t.Error("Away is not a member of the status set")
	}
}

func TestPresenceStatus_UnknownIsNotOffline(t *testing.T) {
	t.Parallel()

	if StatusUnknown == StatusOffline {
		t.Fatal("unknown and offline must be distinct")
	}
	if StatusUnknown.String() != "Unknown" {
		t.Errorf("StatusUnknown.String() = %q, want Unknown", StatusUnknown.String())
	}
}

func TestParsePresenceStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    PresenceStatus
		wantErr bool
	}{
		{"Online", StatusOnline, false},
		{"busy", StatusBusy, false},
		{" ABSENT ", StatusAbsent, false},
		{"offline", StatusOffline, false},
		{"", StatusUnknown, true},
		{"away", StatusUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePresenceStatus(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePresenceStatus(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePresenceStatus(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPresenceStatus_Ordinals(t *testing.T) {
	t.Parallel()

	want := map[int]PresenceStatus{0: StatusOnline, 1: StatusBusy, 2: StatusAbsent, 3: StatusOffline}
	for ordinal, status := range want {
		got, err := PresenceStatusFromOrdinal(ordinal)
		if err != nil {
			t.Fatalf("PresenceStatusFromOrdinal(%d) error = %v", ordinal, err)
		}
		if got != status {
			t.Errorf("PresenceStatusFromOrdinal(%d) = %q, want %q", ordinal, got, status)
		}
		if status.Ordinal() != ordinal {
			t.Errorf("%q.Ordinal() = %d, want %d", status, status.Ordinal(), ordinal)
		}
	}
	if _, err := PresenceStatusFromOrdinal(4); err == nil {
		t.Error("expected error for ordinal 4")
	}
	if StatusUnknown.Ordinal() != -1 {
		t.Errorf("StatusUnknown.Ordinal() = %d, want -1", StatusUnknown.Ordinal())
	}
}

func TestPresenceStatus_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    PresenceStatus
		wantErr bool
	}{
		{"name", `"Busy"`, StatusBusy, false},
		{"lowercase name", `"absent"`, StatusAbsent, false},
		{"ordinal", `3`, StatusOffline, false},
		{"ordinal zero", `0`, StatusOnline, false},
		{"bad name", `"Away"`, StatusUnknown, true},
		{"bad ordinal", `9`, StatusUnknown, true},
		{"float", `1.5`, StatusUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got PresenceStatus
			err := json.Unmarshal([]byte(tt.input), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal(%s) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Unmarshal(%s) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPresenceStatus_MarshalJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(StatusEntry{UserID: "u-1", Status: StatusAbsent})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"userId":"u-1","presenceStatus":"Absent"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	if _, err := json.Marshal(StatusUnknown); err == nil {
		t.Error("expected error marshalling StatusUnknown")
	}
}

func TestStatusEntry_UnmarshalNumericStatus(t *testing.T) {
	t.Parallel()

	var entries []StatusEntry
	if err := json.Unmarshal([]byte(`[{"userId":"a","presenceStatus":1},{"userId":"b","presenceStatus":"Online"}]`), &entries); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Status != StatusBusy || entries[1].Status != StatusOnline {
		t.Errorf("unexpected statuses: %+v", entries)
	}
}

func TestUniqueUserIDs(t *testing.T) {
	t.Parallel()

	got := UniqueUserIDs([]UserID{"b", "a", "", "b", "c", "a"})
	want := []UserID{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("UniqueUserIDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("UniqueUserIDs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if out := UniqueUserIDs(nil); len(out) != 0 {
		t.Errorf("UniqueUserIDs(nil) = %v, want empty", out)
	}
}
