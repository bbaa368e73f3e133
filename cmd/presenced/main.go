// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

// Package main is the entry point of presenced, the presence synchronization
// daemon.
//
// presenced signs in to a chat backend's presence hub with the configured
// access token, keeps a local status store current from live hub events and
// the batch status endpoint, and announces the signed-in user's own status.
// A local inspector API serves the store, the channel state and a live
// websocket feed.
//
// # Startup order
//
//  1. Configuration (koanf: defaults, optional config file, environment)
//  2. Logging (zerolog)
//  3. Status store, session event journal and presence session
//  4. Status fetcher (rate limited, optionally behind a circuit breaker)
//  5. Live feed hub and inspector API
//  6. Supervisor tree (suture)
//
// # Configuration
//
// The most common settings:
//
//	HUB_URL=wss://chat.example.com/hubs/presence
//	STATUS_API_URL=https://chat.example.com
//	ACCESS_TOKEN=eyJ...        or ACCESS_TOKEN_FILE=/run/secrets/token
//	HTTP_PORT=8089
//
// Without a credential the daemon starts signed out. With a token file the
// credential is reloaded whenever the file changes.
//
// # Signal handling
//
// SIGINT and SIGTERM cancel the supervisor tree: the presence channel is
// closed, feed clients are disconnected and the HTTP server drains.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/chatpresence/internal/api"
	"github.com/tomtom215/chatpresence/internal/audit"
	"github.com/tomtom215/chatpresence/internal/cache"
	"github.com/tomtom215/chatpresence/internal/config"
	"github.com/tomtom215/chatpresence/internal/logging"
	"github.com/tomtom215/chatpresence/internal/presence"
	"github.com/tomtom215/chatpresence/internal/session"
	"github.com/tomtom215/chatpresence/internal/supervisor"
	"github.com/tomtom215/chatpresence/internal/supervisor/services"
	"github.com/tomtom215/chatpresence/internal/sync"
	ws "github.com/tomtom215/chatpresence/internal/websocket"
)

func main() {
	os.Exit(run())
}

// run wires and serves the daemon and returns the process exit code.
// Deferred cleanup runs before main exits.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("hub_url", cfg.Hub.URL).
		Str("api_base_url", cfg.API.BaseURL).
		Bool("breaker", cfg.Breaker.Enabled).
		Bool("inspector_api", cfg.Server.Enabled).
		Msg("Starting presenced")

	store := presence.NewStore()

	var journal *audit.Logger
	sessionOpts := session.Options{}
	if cfg.Audit.Enabled {
		journal = audit.NewLogger(audit.NewMemoryStore(cfg.Audit.MaxEvents), audit.ConfigFromSettings(cfg.Audit))
		defer func() { _ = journal.Close() }()
		sessionOpts.OnCredentialChange = audit.CredentialRecorder(journal)
	}

	channelCfg := sync.ChannelConfigFromConfig(&cfg.Hub, cfg.Reconnect)
	pctx := session.NewContext(store, session.NewChannelFactory(channelCfg), sessionOpts)
	if journal != nil {
		detach := audit.AttachSession(journal, pctx)
		defer detach()
	}

	var fetcher sync.StatusFetcher = sync.NewStatusClient(&cfg.API, pctx.Token)
	if cfg.Breaker.Enabled {
		fetcher = sync.NewStatusCircuitBreakerClient(fetcher, &cfg.Breaker)
	}
	hydrator := sync.NewHydrator(fetcher, store)
	if cfg.API.UnknownTTL > 0 {
		hydrator.WithUnknownCache(cache.NewUnknownIDs(cache.DefaultUnknownCapacity, cfg.API.UnknownTTL))
	}

	cred, err := session.CredentialFromConfig(cfg.Session)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to resolve session credential")
		return 1
	}
	if cred != nil {
		logging.Info().Str("user_id", cred.UserID.String()).Msg("Session credential loaded")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return 1
	}

	tree.AddSessionService(services.NewPresenceService(pctx, cred))
	if cfg.Session.TokenFile != "" && cfg.Session.AccessToken == "" {
		tree.AddSessionService(services.NewTokenWatchService(cfg.Session, pctx))
	}

	hub := ws.NewHub()
	feed := ws.NewFeed(hub, store, pctx)
	tree.AddMessagingService(services.NewFeedService(feed))

	if cfg.Server.Enabled {
		opts := api.HandlerOptions{
			Store:      store,
			Session:    pctx,
			Hydrator:   hydrator,
			Feed:       feed,
			Middleware: api.NewChiMiddleware(api.ChiMiddlewareConfigFromServer(cfg.Server)),
		}
		if journal != nil {
			opts.Journal = journal
		}
		handler := api.NewHandler(opts)
		server := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           api.NewRouter(handler).Setup(),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	} else {
		logging.Info().Msg("Inspector API disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor tree stopped unexpectedly")
		return 1
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}
	logging.Info().Msg("presenced stopped")
	return 0
}
