// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

// Package testinfra provides in-process fakes of the chat backend for tests.
//
// # FakeHub
//
// FakeHub is a presence hub speaking the JSON hub protocol over a real
// websocket. It records every dial attempt with its access token, every
// invocation a client sends, and lets the test push events or break
// connections:
//
//	func TestReconnect(t *testing.T) {
//	    hub := testinfra.NewFakeHub(t)
//	    ch := sync.NewPresenceChannel(sync.ChannelConfig{URL: hub.URL()}, store, "me", token)
//	    _ = ch.Start(ctx)
//
//	    _ = hub.WaitForHandshakes(1, 5*time.Second)
//	    _ = hub.PushStatus("alice", models.StatusBusy)
//	    hub.DropAll()
//	    _ = hub.WaitForHandshakes(2, 5*time.Second)
//	}
//
// # FakeStatusAPI
//
// FakeStatusAPI serves POST /api/users/statuses from an in-memory table and
// can be switched to fail, delay or return a raw body.
//
// Both fakes register t.Cleanup and need no Docker or network access.
package testinfra
