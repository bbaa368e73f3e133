// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

/*
Package sync keeps the presence store in step with the chat backend.

It has two feeds into the store: a batch REST fetch used to hydrate statuses
for users a consumer is about to display, and a long-lived websocket channel
that receives live status changes and announces the signed-in user's own
status.

Key Components:

  - StatusClient: REST client for POST /api/users/statuses with a client-side
    rate limiter and response validation
  - StatusCircuitBreakerClient: circuit breaker around any StatusFetcher
  - Hydrator: fetch then write as one store batch
  - PresenceChannel: hub websocket client with an explicit ReconnectPolicy
  - ReconnectPolicy: exponential backoff with jitter and an attempt limit

Fetch semantics:

 1. Ids are de-duplicated and blank ids dropped. Nothing left means no request.
 2. Entries that fail validation, or answer ids nobody asked for, are dropped.
 3. Any failure is a *FetchError and nothing is written to the store.

Channel lifecycle:

	Connecting -> Connected -> Reconnecting -> Connected ...
	                       \-> Disconnected (policy exhausted, hub refused, Close)

On every transition into Connected the signed-in user is written Online and
ChangeMyStatus(Online) is sent once on the new connection. Reconnecting keeps
the store as it is. Close writes the user Offline locally, then makes a
best-effort ChangeMyStatus(Offline) bounded by the teardown timeout.

Ordering:

Hydration and live events are not ordered against each other. Whichever
write reaches the store last wins, so a slow fetch can briefly overwrite a
newer live status until the next event for that user.

Usage Example:

	store := presence.NewStore()
	fetcher := sync.NewStatusCircuitBreakerClient(
	    sync.NewStatusClient(&cfg.API, tokenFunc), &cfg.Breaker)
	hydrator := sync.NewHydrator(fetcher, store)

	ch := sync.NewPresenceChannel(
	    sync.ChannelConfigFromConfig(&cfg.Hub, cfg.Reconnect), store, userID, tokenFunc)
	if err := ch.Start(ctx); err != nil {
	    return err
	}
	defer ch.Close(context.Background())

	_, _ = hydrator.HydrateMissing(ctx, []models.UserID{"alice", "bob"})
*/
package sync
