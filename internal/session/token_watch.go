// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package session

import (
	"context"
	"fmt"

	"github.com/tomtom215/chatpresence/internal/config"
	"github.com/tomtom215/chatpresence/internal/logging"
)

// WatchTokenFile re-resolves the credential whenever the session token file
// changes and applies it to pctx, until ctx is done. A token for the same
// user only refreshes the token used on the next reconnect; an emptied file
// is ignored rather than treated as a logout. Without a token file it
// returns nil at once.
func WatchTokenFile(ctx context.Context, cfg config.SessionConfig, pctx *Context) error {
	if cfg.TokenFile == "" || cfg.AccessToken != "" {
		return nil
	}
	log := logging.WithComponent("session").With().Str("token_file", cfg.TokenFile).Logger()

	stop, err := config.WatchConfigFile(cfg.TokenFile, func() {
		cred, err := CredentialFromConfig(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Ignoring unreadable token file update")
			return
		}
		if err := pctx.SetCredential(ctx, cred); err != nil {
			log.Warn().Err(err).Msg("Failed to apply token file update")
			return
		}
		log.Debug().Msg("Token file update applied")
	})
	if err != nil {
		return fmt.Errorf("watch token file: %w", err)
	}
	defer func() {
		if err := stop(); err != nil {
			log.Debug().Err(err).Msg("Token file watcher stop")
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}
