// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package audit

import (
	"github.com/tomtom215/chatpresence/internal/models"
	"github.com/tomtom215/chatpresence/internal/session"
	"github.com/tomtom215/chatpresence/internal/sync"
)

// StateSource is the part of the presence session the journal observes.
type StateSource interface {
	UserID() models.UserID
	OnStateChange(fn func(sync.ChannelState)) (unsubscribe func())
}

// AttachSession records every channel state change of src. It returns the
// detach func.
func AttachSession(l *Logger, src StateSource) (detach func()) {
	return src.OnStateChange(func(state sync.ChannelState) {
		l.Log(channelStateEvent(state, src.UserID()))
	})
}

func channelStateEvent(state sync.ChannelState, userID models.UserID) *Event {
	severity := SeverityInfo
	outcome := OutcomeSuccess
	switch state {
	case sync.StateReconnecting:
		severity = SeverityWarning
		outcome = OutcomeUnknown
	case sync.StateDisconnected:
		severity = SeverityWarning
		outcome = OutcomeFailure
	case sync.StateConnecting, sync.StateUninitialized:
		severity = SeverityDebug
	}
	return &Event{
		Type:     EventTypeChannelState,
		Severity: severity,
		Outcome:  outcome,
		UserID:   string(userID),
		Action:   "channel " + state.String(),
		Metadata: map[string]string{"state": state.String()},
	}
}

// CredentialRecorder returns a session.Options.OnCredentialChange hook that
// journals l.
func CredentialRecorder(l *Logger) func(session.CredentialChange) {
	return func(change session.CredentialChange) {
		l.Log(credentialEvent(change))
	}
}

func credentialEvent(change session.CredentialChange) *Event {
	event := &Event{
		Severity: SeverityInfo,
		Outcome:  OutcomeSuccess,
		UserID:   string(change.UserID),
	}
	switch change.Kind {
	case session.CredentialSignedIn:
		event.Type = EventTypeSignedIn
		event.Action = "signed in"
	case session.CredentialSignedOut:
		event.Type = EventTypeSignedOut
		event.Action = "signed out"
		event.UserID = string(change.PreviousUserID)
	case session.CredentialUserSwitched:
		event.Type = EventTypeUserSwitched
		event.Action = "user switched"
		event.Metadata = map[string]string{"previous_user_id": string(change.PreviousUserID)}
	case session.CredentialTokenRefreshed:
		event.Type = EventTypeTokenRefreshed
		event.Action = "access token refreshed"
	default:
		event.Type = EventType("session." + string(change.Kind))
		event.Action = string(change.Kind)
		event.Outcome = OutcomeUnknown
	}
	return event
}
