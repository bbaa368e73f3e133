// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package services

import (
	"context"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/chatpresence/internal/config"
	"github.com/tomtom215/chatpresence/internal/session"
)

// PresenceSession is the lifecycle part of *session.Context.
type PresenceSession interface {
	Serve(ctx context.Context, initial *session.Credential) error
}

// PresenceService runs the presence session under supervision. The session
// applies the initial credential on start and closes the channel on stop.
type PresenceService struct {
	session PresenceSession
	initial *session.Credential
	name    string
}

// NewPresenceService creates the supervised presence session. initial may
// be nil to start signed out.
func NewPresenceService(s PresenceSession, initial *session.Credential) *PresenceService {
	return &PresenceService{session: s, initial: initial, name: "presence-session"}
}

// Serve implements suture.Service.
func (p *PresenceService) Serve(ctx context.Context) error {
	return p.session.Serve(ctx, p.initial)
}

// String implements fmt.Stringer for suture's log messages.
func (p *PresenceService) String() string {
	return p.name
}

// TokenWatchService reloads the session credential when the token file
// changes.
type TokenWatchService struct {
	cfg     config.SessionConfig
	session *session.Context
	name    string
}

// NewTokenWatchService creates the supervised token file watcher.
func NewTokenWatchService(cfg config.SessionConfig, s *session.Context) *TokenWatchService {
	return &TokenWatchService{cfg: cfg, session: s, name: "token-watcher"}
}

// Serve implements suture.Service. It returns suture.ErrDoNotRestart when no
// token file is configured.
func (w *TokenWatchService) Serve(ctx context.Context) error {
	if w.cfg.TokenFile == "" || w.cfg.AccessToken != "" {
		return suture.ErrDoNotRestart
	}
	return session.WatchTokenFile(ctx, w.cfg, w.session)
}

// String implements fmt.Stringer for suture's log messages.
func (w *TokenWatchService) String() string {
	return w.name
}
