// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

/*
Package websocket serves the live presence feed of the inspector API.

Browser views connect to /api/v1/ws and receive every status store write
and every presence channel state change as it happens, so they can render
presence without polling.

Key Components:

  - Hub: broadcasts messages to all connected clients
  - Client: one browser connection with read and write pumps
  - Feed: subscribes to the status store and the presence session and
    relays their changes to the Hub

Message Types:

  - snapshot: first message on connect (statuses, version, channel state)
  - status_changed: one store write (version, source, entries)
  - status_reset: the store was cleared on logout
  - channel_state: the presence channel changed state
  - ping / pong: application keep-alive from the browser

A client applies status_changed messages whose version is greater than the
snapshot version it received.

Broadcasting never blocks the store writer. A client whose buffer is full is
dropped and must reconnect to get a fresh snapshot.

Usage Example:

	hub := websocket.NewHub()
	feed := websocket.NewFeed(hub, store, pctx)
	detach := feed.Attach()
	defer detach()
	go hub.RunWithContext(ctx)
*/
package websocket
