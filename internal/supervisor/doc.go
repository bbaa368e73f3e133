// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

/*
Package supervisor provides process supervision for the presence daemon using suture v4.

The supervisor tree organizes services into three layers:

	RootSupervisor ("presenced")
	├── SessionSupervisor ("session-layer")
	│   ├── PresenceService
	│   └── TokenWatchService (if session.token_file is set)
	├── MessagingSupervisor ("messaging-layer")
	│   └── FeedService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService (if server.enabled)

Crashed services are restarted with suture's failure decay and backoff.
Supervisor events are logged through sutureslog into the zerolog-backed
slog logger.

Example:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddSessionService(services.NewPresenceService(pctx, cred))
	tree.AddMessagingService(services.NewFeedService(feed))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	err = tree.Serve(ctx)

Service implementations live in the services subpackage.
*/
package supervisor
