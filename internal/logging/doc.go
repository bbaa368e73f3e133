// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

// Package logging provides the zerolog-based structured logger shared by
// every chatpresence component.
//
// A single global logger is configured once from main and read everywhere
// else through the level helpers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("user_id", id).Msg("presence channel connected")
//	logging.Err(err).Msg("status fetch failed")
//
// Work that spans several log lines (one hub connection, one hydration
// call) carries a correlation ID in its context:
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	logging.Ctx(ctx).Debug().Msg("handshake complete")
//
// Libraries that only speak log/slog (sutureslog) are bridged with
// NewSlogLogger.
//
// Always terminate event chains with Msg or Send; an unterminated chain
// emits nothing.
package logging
