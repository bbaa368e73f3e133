// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package session

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/chatpresence/internal/logging"
	"github.com/tomtom215/chatpresence/internal/models"
	"github.com/tomtom215/chatpresence/internal/presence"
	"github.com/tomtom215/chatpresence/internal/sync"
)

// DefaultShutdownTimeout bounds the teardown performed when Serve returns.
const DefaultShutdownTimeout = 5 * time.Second

var (
	// ErrContextClosed is returned by SetCredential after Close.
	ErrContextClosed = errors.New("session: presence context closed")

	// ErrNoSession is returned by SetMyStatus while signed out.
	ErrNoSession = errors.New("session: no signed-in user")
)

// Channel is the part of *sync.PresenceChannel the Context drives.
type Channel interface {
	Start(ctx context.Context) error
	Close(ctx context.Context) error
	ChangeMyStatus(status models.PresenceStatus) error
	State() sync.ChannelState
	UserID() models.UserID
	OnStateChange(fn func(sync.ChannelState)) (unsubscribe func())
}

// Compile-time check
var _ Channel = (*sync.PresenceChannel)(nil)

// ChannelFactory builds the channel for a signed-in user. token returns the
// current access token and is called on every connection attempt.
type ChannelFactory func(store *presence.Store, userID models.UserID, token sync.TokenFunc) Channel

// NewChannelFactory returns the production factory backed by
// sync.NewPresenceChannel.
func NewChannelFactory(cfg sync.ChannelConfig) ChannelFactory {
	return func(store *presence.Store, userID models.UserID, token sync.TokenFunc) Channel {
		return sync.NewPresenceChannel(cfg, store, userID, token)
	}
}

// CredentialChangeKind names what a SetCredential call did.
type CredentialChangeKind string

const (
	CredentialSignedIn       CredentialChangeKind = "signed_in"
	CredentialSignedOut      CredentialChangeKind = "signed_out"
	CredentialTokenRefreshed CredentialChangeKind = "token_refreshed"
	CredentialUserSwitched   CredentialChangeKind = "user_switched"
)

// CredentialChange describes an applied credential change. No-op calls are
// not reported.
type CredentialChange struct {
	Kind           CredentialChangeKind
	UserID         models.UserID
	PreviousUserID models.UserID
}

// Options tunes a Context.
type Options struct {
	// ShutdownTimeout bounds the teardown performed when Serve returns.
	// Default: 5s
	ShutdownTimeout time.Duration

	// OnCredentialChange is called after each applied change, with the
	// credential lock held. It must not call back into the Context's
	// credential methods.
	OnCredentialChange func(CredentialChange)
}

// Context owns the presence channel for the current credential.
//
// A credential opens a channel; a credential for another user tears the old
// channel down and opens a new one; a refreshed token for the same user only
// swaps the token the channel dials with; a nil credential is a logout that
// tears the channel down and clears the store.
type Context struct {
	store   *presence.Store
	factory ChannelFactory
	opts    Options
	log     zerolog.Logger

	// setMu serializes credential changes. It is held across teardown.
	setMu stdsync.Mutex

	// mu guards the fields below and is only held briefly.
	mu          stdsync.RWMutex
	cred        *Credential
	channel     Channel
	unsubscribe func()
	closed      bool

	tokenMu stdsync.RWMutex
	token   string

	listenersMu    stdsync.RWMutex
	listeners      map[uint64]func(sync.ChannelState)
	nextListenerID uint64
}

// NewContext creates a signed-out Context writing into store.
func NewContext(store *presence.Store, factory ChannelFactory, opts Options) *Context {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Context{
		store:     store,
		factory:   factory,
		opts:      opts,
		log:       logging.WithComponent("session"),
		listeners: make(map[uint64]func(sync.ChannelState)),
	}
}

// Store returns the status store the Context writes into.
func (c *Context) Store() *presence.Store {
	return c.store
}

// Token returns the current access token, or "" while signed out. It is the
// token accessor handed to the channel and to the REST client.
func (c *Context) Token() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token
}

func (c *Context) setToken(token string) {
	c.tokenMu.Lock()
	c.token = token
	c.tokenMu.Unlock()
}

// UserID returns the signed-in user, or "" while signed out.
func (c *Context) UserID() models.UserID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cred == nil {
		return ""
	}
	return c.cred.UserID
}

// State returns the channel state, or StateUninitialized when no channel
// exists.
func (c *Context) State() sync.ChannelState {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()
	if ch == nil {
		return sync.StateUninitialized
	}
	return ch.State()
}

// OnStateChange registers fn for state changes of whichever channel is
// current. Logout reports StateUninitialized. fn must not block.
func (c *Context) OnStateChange(fn func(sync.ChannelState)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	c.listenersMu.Lock()
	id := c.nextListenerID
	c.nextListenerID++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	var once stdsync.Once
	return func() {
		once.Do(func() {
			c.listenersMu.Lock()
			delete(c.listeners, id)
			c.listenersMu.Unlock()
		})
	}
}

func (c *Context) emit(state sync.ChannelState) {
	c.listenersMu.RLock()
	fns := make([]func(sync.ChannelState), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(state)
	}
}

// SetCredential applies a credential change. The channel runs detached from
// ctx's cancellation; ctx only bounds the teardown of a previous channel.
func (c *Context) SetCredential(ctx context.Context, cred *Credential) error {
	c.setMu.Lock()
	defer c.setMu.Unlock()

	c.mu.RLock()
	closed := c.closed
	current := c.cred
	c.mu.RUnlock()

	if closed {
		return ErrContextClosed
	}

	if cred == nil {
		if current == nil {
			return nil
		}
		c.log.Info().Str("user_id", string(current.UserID)).Msg("Signed out, tearing down presence")
		c.teardown(ctx)
		c.setToken("")
		c.store.Reset()
		c.emit(sync.StateUninitialized)
		c.notifyCredential(CredentialChange{Kind: CredentialSignedOut, PreviousUserID: current.UserID})
		return nil
	}

	if cred.UserID == "" {
		return ErrNoUserID
	}
	if cred.AccessToken == "" {
		return ErrNoToken
	}

	if current != nil && current.UserID == cred.UserID {
		if current.AccessToken == cred.AccessToken {
			return nil
		}
		next := *cred
		c.setToken(next.AccessToken)
		c.mu.Lock()
		c.cred = &next
		c.mu.Unlock()
		c.log.Info().Str("user_id", string(next.UserID)).Msg("Access token refreshed, used on next reconnect")
		c.notifyCredential(CredentialChange{Kind: CredentialTokenRefreshed, UserID: next.UserID, PreviousUserID: next.UserID})
		return nil
	}

	change := CredentialChange{Kind: CredentialSignedIn, UserID: cred.UserID}
	if current != nil {
		change = CredentialChange{Kind: CredentialUserSwitched, UserID: cred.UserID, PreviousUserID: current.UserID}
		c.log.Info().
			Str("previous_user_id", string(current.UserID)).
			Str("user_id", string(cred.UserID)).
			Msg("Credential changed, rebuilding presence channel")
		c.teardown(ctx)
	}

	next := *cred
	c.setToken(next.AccessToken)

	ch := c.factory(c.store, next.UserID, c.Token)
	unsubscribe := ch.OnStateChange(c.emit)

	c.mu.Lock()
	c.cred = &next
	c.channel = ch
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	c.notifyCredential(change)

	if err := ch.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to start presence channel: %w", err)
	}
	c.log.Info().Str("user_id", string(next.UserID)).Msg("Presence channel started")
	return nil
}

func (c *Context) notifyCredential(change CredentialChange) {
	if c.opts.OnCredentialChange != nil {
		c.opts.OnCredentialChange(change)
	}
}

// teardown detaches and closes the current channel. The channel writes the
// user Offline before its transport goes away. Callers hold setMu.
func (c *Context) teardown(ctx context.Context) {
	c.mu.Lock()
	ch := c.channel
	unsubscribe := c.unsubscribe
	c.channel = nil
	c.unsubscribe = nil
	c.cred = nil
	c.mu.Unlock()

	if ch == nil {
		return
	}
	if err := ch.Close(ctx); err != nil {
		c.log.Warn().Err(err).Str("user_id", string(ch.UserID())).Msg("Presence channel teardown incomplete")
	}
	if unsubscribe != nil {
		unsubscribe()
	}
}

// ChangeMyStatus announces status for the signed-in user. It never fails:
// without a connected channel the request is logged and dropped.
func (c *Context) ChangeMyStatus(status models.PresenceStatus) {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil {
		c.log.Info().Str("status", status.String()).Msg("No presence channel, status change not sent")
		return
	}
	if err := ch.ChangeMyStatus(status); err != nil {
		c.log.Debug().Err(err).Str("status", status.String()).Msg("Status change not delivered")
	}
}

// SetMyStatus is the self-status control: it writes status for the
// signed-in user into the store, then announces it. The local write is not
// rolled back when the announcement cannot be delivered.
func (c *Context) SetMyStatus(status models.PresenceStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid presence status %q", string(status))
	}
	self := c.UserID()
	if self == "" {
		return ErrNoSession
	}
	c.store.SetStatus(self, status, presence.SourceLocal)
	c.ChangeMyStatus(status)
	return nil
}

// Close tears the channel down without clearing the store. Later
// SetCredential calls fail with ErrContextClosed. Close is idempotent.
func (c *Context) Close(ctx context.Context) error {
	c.setMu.Lock()
	defer c.setMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.teardown(ctx)
	c.setToken("")
	return nil
}

// Serve applies initial, blocks until ctx is cancelled, then closes the
// Context. It is the body of the supervised presence service.
func (c *Context) Serve(ctx context.Context, initial *Credential) error {
	if initial != nil {
		if err := c.SetCredential(ctx, initial); err != nil {
			return err
		}
	} else {
		c.log.Warn().Msg("No credential configured, presence stays signed out")
	}

	<-ctx.Done()

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ShutdownTimeout)
	defer cancel()
	if err := c.Close(closeCtx); err != nil {
		return err
	}
	return ctx.Err()
}
