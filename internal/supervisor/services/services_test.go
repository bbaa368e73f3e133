// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/chatpresence/internal/config"
	"github.com/tomtom215/chatpresence/internal/models"
	"github.com/tomtom215/chatpresence/internal/presence"
	"github.com/tomtom215/chatpresence/internal/session"
	ws "github.com/tomtom215/chatpresence/internal/websocket"
)

var (
	_ suture.Service = (*PresenceService)(nil)
	_ suture.Service = (*TokenWatchService)(nil)
	_ suture.Service = (*FeedService)(nil)
)

type fakePresenceSession struct {
	initial *session.Credential
	served  chan struct{}
}

func (f *fakePresenceSession) Serve(ctx context.Context, initial *session.Credential) error {
	f.initial = initial
	close(f.served)
	<-ctx.Done()
	return ctx.Err()
}

func TestPresenceService_PassesInitialCredential(t *testing.T) {
	fake := &fakePresenceSession{served: make(chan struct{})}
	cred := &session.Credential{AccessToken: "t", UserID: "alice"}
	svc := NewPresenceService(fake, cred)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	select {
	case <-fake.served:
	case <-time.After(time.Second):
		t.Fatal("session was not served")
	}
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v", err)
	}
	if fake.initial != cred {
		t.Error("initial credential not passed through")
	}
	if svc.String() != "presence-session" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestTokenWatchService_NoTokenFile(t *testing.T) {
	tests := []config.SessionConfig{
		{},
		{AccessToken: "inline", TokenFile: "/tmp/ignored"},
	}
	for _, cfg := range tests {
		err := NewTokenWatchService(cfg, nil).Serve(context.Background())
		if !errors.Is(err, suture.ErrDoNotRestart) {
			t.Errorf("cfg %+v: error = %v, want ErrDoNotRestart", cfg, err)
		}
	}
}

func TestFeedService_AttachesWhileRunning(t *testing.T) {
	store := presence.NewStore()
	hub := ws.NewHub()
	svc := NewFeedService(ws.NewFeed(hub, store, nil))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	// The feed subscribes to the store before the hub loop starts; a write
	// is relayed without blocking the writer either way.
	store.SetStatus("bob", models.StatusOnline, presence.SourceChannel)

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}

	if svc.String() != "live-feed" {
		t.Errorf("String() = %q", svc.String())
	}
}
