// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

/*
Package session binds the presence channel to the signed-in user.

A Context holds at most one presence channel, built for the current
Credential. Credential changes are handled as follows:

	nil credential            -> channel torn down, store cleared (logout)
	same user, same token     -> no-op
	same user, new token      -> token swapped, used on the next reconnect
	different user            -> old channel torn down, new channel started

Tearing a channel down writes its user Offline into the store before the
transport closes. The store is cleared only on logout.

Credentials come from a bearer JWT. ParseCredential reads the user id claim
without verifying the signature; verification is the server's job.

Usage:

	store := presence.NewStore()
	pctx := session.NewContext(store, session.NewChannelFactory(channelCfg), session.Options{})

	cred, err := session.CredentialFromConfig(cfg.Session)
	if err != nil {
	    return err
	}
	go pctx.Serve(ctx, cred)

	pctx.SetMyStatus(models.StatusBusy)
*/
package session
