// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

// Package audit keeps a bounded, in-memory journal of presence session
// events for operators.
//
// # Event Types
//
// Session events:
//   - session.signed_in, session.signed_out
//   - session.user_switched, session.token_refreshed
//
// Channel events:
//   - channel.state_changed: the presence channel changed state
//
// Status events:
//   - status.change_requested: the self status was set through the API
//   - status.hydration_failed: a batch status fetch failed
//
// # Architecture
//
// The journal uses the producer-consumer pattern:
//
//	Logger.Log() -> Event Buffer (chan) -> Async Writer -> MemoryStore
//
// Log never blocks. When the buffer is full the event is dropped with a
// warning. The store keeps the newest MaxEvents entries.
//
// # Usage Example
//
//	journal := audit.NewLogger(audit.NewMemoryStore(1000), audit.DefaultConfig())
//	defer journal.Close()
//	detach := audit.AttachSession(journal, pctx)
//	defer detach()
//
//	events, _ := journal.Query(ctx, audit.QueryFilter{Limit: 50})
package audit
