// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

/*
Package services provides suture.Service wrappers for the presence daemon.

Each wrapper translates a component's lifecycle into suture's
context-aware Serve pattern and names itself through fmt.Stringer for
suture's log messages.

# Available Services

PresenceService:
  - Runs session.Context.Serve with the credential resolved at startup
  - Closes the presence channel on shutdown

TokenWatchService:
  - Reloads the credential when the token file changes
  - Returns suture.ErrDoNotRestart when no token file is configured

FeedService:
  - Attaches the live feed to the store and the session
  - Runs the websocket hub until shutdown

HTTPServerService:
  - Runs the inspector API server
  - Shuts it down with its own timeout on cancellation
*/
package services
