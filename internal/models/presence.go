// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package models

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ============================================================================
// Presence Status
// ============================================================================

// PresenceStatus is a user's availability as published by the presence hub.
type PresenceStatus string

const (
	// StatusUnknown is the zero value: no status has been observed.
	StatusUnknown PresenceStatus = ""
	StatusOnline  PresenceStatus = "Online"
	StatusBusy    PresenceStatus = "Busy"
	StatusAbsent  PresenceStatus = "Absent"
	StatusOffline PresenceStatus = "Offline"
)

// presenceOrdinals is the numeric encoding used on the wire by hub servers.
var presenceOrdinals = []PresenceStatus{StatusOnline, StatusBusy, StatusAbsent, StatusOffline}

// AllStatuses returns the members of the closed status set in ordinal order.
func AllStatuses() []PresenceStatus {
	out := make([]PresenceStatus, len(presenceOrdinals))
	copy(out, presenceOrdinals)
	return out
}

// IsValid reports whether s is one of the four known statuses.
// StatusUnknown is not valid.
func (s PresenceStatus) IsValid() bool {
	switch s {
	case StatusOnline, StatusBusy, StatusAbsent, StatusOffline:
		return true
	}
	return false
}

// String returns the status name, or "Unknown" for the zero value.
func (s PresenceStatus) String() string {
	if s == StatusUnknown {
		return "Unknown"
	}
	return string(s)
}

// Ordinal returns the wire ordinal of s, or -1 when s is not valid.
func (s PresenceStatus) Ordinal() int {
	for i, status := range presenceOrdinals {
		if status == s {
			return i
		}
	}
	return -1
}

// ParsePresenceStatus parses a status name case-insensitively.
func ParsePresenceStatus(name string) (PresenceStatus, error) {
	trimmed := strings.TrimSpace(name)
	for _, status := range presenceOrdinals {
		if strings.EqualFold(trimmed, string(status)) {
			return status, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown presence status %q", name)
}

// PresenceStatusFromOrdinal maps a wire ordinal to a status.
func PresenceStatusFromOrdinal(ordinal int) (PresenceStatus, error) {
	if ordinal < 0 || ordinal >= len(presenceOrdinals) {
		return StatusUnknown, fmt.Errorf("presence status ordinal %d out of range", ordinal)
	}
	return presenceOrdinals[ordinal], nil
}

// MarshalJSON encodes a valid status as its name.
func (s PresenceStatus) MarshalJSON() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("cannot marshal presence status %q", string(s))
	}
	return []byte(strconv.Quote(string(s))), nil
}

// UnmarshalJSON accepts a status name or a numeric ordinal.
func (s *PresenceStatus) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("presence status is null")
	}

	if data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return fmt.Errorf("decode presence status: %w", err)
		}
		parsed, err := ParsePresenceStatus(name)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}

	ordinal, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("decode presence status %s: %w", data, err)
	}
	parsed, err := PresenceStatusFromOrdinal(ordinal)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ============================================================================
// Identity and wire entries
// ============================================================================

// UserID is an opaque user identifier.
type UserID string

// String returns the id as a plain string.
func (id UserID) String() string {
	return string(id)
}

// StatusEntry is one user's status as delivered by the batch endpoint.
type StatusEntry struct {
	UserID UserID         `json:"userId" validate:"required,user_id"`
	Status PresenceStatus `json:"presenceStatus" validate:"required,presence_status"`
}

// UniqueUserIDs drops empty and repeated ids, keeping first-seen order.
func UniqueUserIDs(ids []UserID) []UserID {
	seen := make(map[UserID]struct{}, len(ids))
	out := make([]UserID, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
