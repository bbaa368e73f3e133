// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package websocket

import (
	"sync"
	"testing"

	"github.com/tomtom215/chatpresence/internal/models"
	"github.com/tomtom215/chatpresence/internal/presence"
	presencesync "github.com/tomtom215/chatpresence/internal/sync"
)

// fakeSession is a SessionSource whose state is set by the test.
type fakeSession struct {
	mu        sync.Mutex
	state     presencesync.ChannelState
	userID    models.UserID
	listeners []func(presencesync.ChannelState)
}

func (f *fakeSession) State() presencesync.ChannelState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) UserID() models.UserID {
	return f.userID
}

func (f *fakeSession) OnStateChange(fn func(presencesync.ChannelState)) func() {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	idx := len(f.listeners) - 1
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.listeners[idx] = nil
		f.mu.Unlock()
	}
}

func (f *fakeSession) set(state presencesync.ChannelState) {
	f.mu.Lock()
	f.state = state
	listeners := append([]func(presencesync.ChannelState){}, f.listeners...)
	f.mu.Unlock()
	for _, fn := range listeners {
		if fn != nil {
			fn(state)
		}
	}
}

func TestFeed_RelaysStoreAndState(t *testing.T) {
	hub := startHub(t)
	client := createTestClient(hub)
	hub.Register <- client
	waitForClients(t, hub, 1)

	store := presence.NewStore()
	session := &fakeSession{userID: "alice"}
	feed := NewFeed(hub, store, session)
	detach := feed.Attach()

	store.SetStatuses([]models.StatusEntry{
		{UserID: "bob", Status: models.StatusBusy},
		{UserID: "carol", Status: models.StatusOffline},
	}, presence.SourceHydration)

	msg := receive(t, client)
	data, ok := msg.Data.(StatusChangedData)
	if msg.Type != MessageTypeStatusChanged || !ok {
		t.Fatalf("unexpected message %+v", msg)
	}
	if len(data.Entries) != 2 || data.Source != "hydration" {
		t.Errorf("a batch write should be relayed as one message, got %+v", data)
	}

	session.set(presencesync.StateReconnecting)
	msg = receive(t, client)
	if state, _ := msg.Data.(ChannelStateData); msg.Type != MessageTypeChannelState || state.State != "reconnecting" {
		t.Errorf("unexpected message %+v", msg)
	}

	detach()
	store.SetStatus("bob", models.StatusOnline, presence.SourceChannel)
	select {
	case msg := <-client.send:
		t.Errorf("no message expected after detach, got %+v", msg)
	default:
	}
}

func TestFeed_Snapshot(t *testing.T) {
	store := presence.NewStore()
	store.SetStatus("bob", models.StatusAbsent, presence.SourceChannel)
	session := &fakeSession{userID: "alice", state: presencesync.StateConnected}

	msg := NewFeed(NewHub(), store, session).Snapshot()
	data, ok := msg.Data.(SnapshotData)
	if msg.Type != MessageTypeSnapshot || !ok {
		t.Fatalf("unexpected message %+v", msg)
	}
	if data.State != "connected" || data.UserID != "alice" {
		t.Errorf("state/user = %q/%q", data.State, data.UserID)
	}
	if data.Statuses["bob"] != models.StatusAbsent || data.Version != store.Version() {
		t.Errorf("snapshot = %+v", data)
	}

	noSession := NewFeed(NewHub(), store, nil).Snapshot().Data.(SnapshotData)
	if noSession.State != "uninitialized" {
		t.Errorf("state without session = %q, want uninitialized", noSession.State)
	}
}

func TestFeed_SnapshotTakenAtRegistration(t *testing.T) {
	hub := NewHub()
	store := presence.NewStore()
	feed := NewFeed(hub, store, nil)
	defer feed.Attach()()

	// The write is queued on the hub before the client registers.
	store.SetStatus("bob", models.StatusBusy, presence.SourceChannel)
	runHub(t, hub)

	client := createTestClient(hub)
	hub.Register <- client
	store.SetStatus("bob", models.StatusOnline, presence.SourceChannel)

	msg := receive(t, client)
	snap, ok := msg.Data.(SnapshotData)
	if msg.Type != MessageTypeSnapshot || !ok {
		t.Fatalf("first message = %+v, want snapshot", msg)
	}

	// Applying later changes above the snapshot version must end at the
	// store's current state.
	view := snap.Statuses
	version := snap.Version
	for version < store.Version() {
		msg := receive(t, client)
		change, ok := msg.Data.(StatusChangedData)
		if !ok {
			t.Fatalf("unexpected message %+v", msg)
		}
		if change.Version <= version {
			continue
		}
		version = change.Version
		for _, e := range change.Entries {
			view[e.UserID] = e.Status
		}
	}
	if view["bob"] != models.StatusOnline {
		t.Errorf("client view bob = %q, want online", view["bob"])
	}
}
