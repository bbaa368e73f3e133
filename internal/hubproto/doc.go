// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

// Package hubproto implements the JSON hub protocol spoken by the presence
// hub: JSON records terminated by 0x1E, a one-record handshake, and
// invocation/ping/close messages.
//
// A connection starts with
//
//	client -> {"protocol":"json","version":1}\x1e
//	server -> {}\x1e
//
// after which both sides exchange messages such as
//
//	{"type":1,"target":"UserStatusChanged","arguments":["u-1","Busy"]}\x1e
//	{"type":6}\x1e
//
// A single websocket text frame may carry several records; use Split.
package hubproto
