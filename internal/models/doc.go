// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

/*
Package models defines the presence data types shared by the store, the
status fetcher, the presence channel and the inspector API.

Key Components:

  - PresenceStatus: closed set {Online, Busy, Absent, Offline}. The zero
    value StatusUnknown is deliberately outside the set and means "no data
    yet"; it must never be confused with Offline.
  - UserID: opaque user identifier issued by the identity system.
  - StatusEntry: one (user, status) pair as carried by the REST batch
    endpoint and by the hub UserStatusChanged event.

Wire format:

PresenceStatus marshals to its name. Unmarshalling accepts the name
(case-insensitive) or the numeric ordinal used by hub servers that
serialize enums as integers:

	0 = Online, 1 = Busy, 2 = Absent, 3 = Offline
*/
package models
