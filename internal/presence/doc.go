// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

// Package presence holds the process-wide status store.
//
// The store is the only shared state of the presence subsystem. The status
// fetcher writes hydration batches into it, the presence channel writes live
// UserStatusChanged events and the signed-in user's own status, and every
// consumer reads it synchronously:
//
//	store := presence.NewStore()
//	unsubscribe := store.Subscribe(func(c presence.Change) {
//	    for _, e := range c.Entries {
//	        render(e.UserID, e.Status)
//	    }
//	})
//	defer unsubscribe()
//
//	if status, ok := store.Status(id); ok {
//	    render(id, status)
//	}
//
// There is no package-level store; callers construct one and pass it to the
// components that need it.
package presence
