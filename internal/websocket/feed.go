// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package websocket

import (
	"github.com/tomtom215/chatpresence/internal/models"
	"github.com/tomtom215/chatpresence/internal/presence"
	"github.com/tomtom215/chatpresence/internal/sync"
)

// SessionSource is the part of the presence session the feed observes.
type SessionSource interface {
	State() sync.ChannelState
	UserID() models.UserID
	OnStateChange(fn func(sync.ChannelState)) (unsubscribe func())
}

// Feed relays store changes and channel state changes to the hub.
type Feed struct {
	hub     *Hub
	store   *presence.Store
	session SessionSource
}

// NewFeed creates a feed and installs its snapshot as the first message the
// hub sends to every client. session may be nil when no channel is managed.
func NewFeed(hub *Hub, store *presence.Store, session SessionSource) *Feed {
	f := &Feed{hub: hub, store: store, session: session}
	hub.SetSnapshot(f.Snapshot)
	return f
}

// Hub returns the hub the feed broadcasts on.
func (f *Feed) Hub() *Hub {
	return f.hub
}

// Attach starts relaying and returns a function that stops it.
func (f *Feed) Attach() (detach func()) {
	unsubscribeStore := f.store.Subscribe(f.hub.BroadcastStatusChange)

	unsubscribeState := func() {}
	if f.session != nil {
		unsubscribeState = f.session.OnStateChange(func(state sync.ChannelState) {
			f.hub.BroadcastChannelState(state.String(), f.session.UserID())
		})
	}

	return func() {
		unsubscribeStore()
		unsubscribeState()
	}
}

// Snapshot returns the initial message for a new client. Changes with a
// version at or below the snapshot's are already included in it.
func (f *Feed) Snapshot() Message {
	statuses, version := f.store.SnapshotVersion()
	data := SnapshotData{
		Version:  version,
		Statuses: statuses,
		State:    sync.StateUninitialized.String(),
	}
	if f.session != nil {
		data.State = f.session.State().String()
		data.UserID = string(f.session.UserID())
	}
	return Message{Type: MessageTypeSnapshot, Data: data}
}
