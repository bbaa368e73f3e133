// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package audit

import (
	"context"
	"time"
)

// EventType categorizes journal events.
type EventType string

const (
	// Session events
	EventTypeSignedIn       EventType = "session.signed_in"
	EventTypeSignedOut      EventType = "session.signed_out"
	EventTypeUserSwitched   EventType = "session.user_switched"
	EventTypeTokenRefreshed EventType = "session.token_refreshed"

	// Channel events
	EventTypeChannelState EventType = "channel.state_changed"

	// Status events
	EventTypeStatusChangeRequested EventType = "status.change_requested"
	EventTypeHydrationFailed       EventType = "status.hydration_failed"
)

// Severity indicates the severity level of an event.
type Severity string

const (
	SeverityDebug   Severity = "debug"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

var severityOrder = map[Severity]int{
	SeverityDebug:   0,
	SeverityInfo:    1,
	SeverityWarning: 2,
	SeverityError:   3,
}

// Outcome indicates whether an action succeeded or failed.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeUnknown Outcome = "unknown"
)

// Event is one journal entry.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	// Timestamp when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	Type     EventType `json:"type"`
	Severity Severity  `json:"severity"`
	Outcome  Outcome   `json:"outcome"`

	// UserID is the signed-in user the event concerns, if any.
	UserID string `json:"user_id,omitempty"`

	// Action describes what was done.
	Action string `json:"action"`

	// Description provides human-readable details.
	Description string `json:"description,omitempty"`

	// Metadata contains event-specific details.
	Metadata map[string]string `json:"metadata,omitempty"`

	// RequestID and SourceIP are set for events caused by an API request.
	RequestID string `json:"request_id,omitempty"`
	SourceIP  string `json:"source_ip,omitempty"`
}

// Store defines the interface for journal persistence.
type Store interface {
	Save(ctx context.Context, event *Event) error
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
	Count(ctx context.Context, filter QueryFilter) (int64, error)
}

// QueryFilter defines filtering options for journal queries. Zero fields
// match everything.
type QueryFilter struct {
	Types  []EventType `json:"types,omitempty"`
	UserID string      `json:"user_id,omitempty"`

	// Since is the beginning of the time range.
	Since *time.Time `json:"since,omitempty"`

	// Limit is the maximum number of results, newest first.
	Limit int `json:"limit,omitempty"`
}

// DefaultQueryFilter returns the filter used when a caller gives none.
func DefaultQueryFilter() QueryFilter {
	return QueryFilter{Limit: 100}
}
