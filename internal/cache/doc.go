// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

// Package cache provides the bounded, expiring id set used by hydration.
//
// UnknownIDs remembers user ids the batch status endpoint did not answer.
// The hydrator skips them for a while instead of asking the backend again
// on every view, and forgets an id as soon as a status for it arrives.
package cache
