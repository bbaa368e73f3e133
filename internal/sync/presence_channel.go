// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

/*
presence_channel.go - Presence Hub WebSocket Client

This file implements the long-lived push connection to the presence hub.
It announces the signed-in user's status, receives UserStatusChanged events
for other users and writes them into the status store.

WebSocket Endpoint: {hub_url}?access_token={token}
Protocol: JSON hub protocol, see internal/hubproto
*/

package sync

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/chatpresence/internal/config"
	"github.com/tomtom215/chatpresence/internal/hubproto"
	"github.com/tomtom215/chatpresence/internal/logging"
	"github.com/tomtom215/chatpresence/internal/metrics"
	"github.com/tomtom215/chatpresence/internal/models"
	"github.com/tomtom215/chatpresence/internal/presence"
)

const (
	// writeWait bounds a single outbound frame.
	writeWait = 10 * time.Second

	// closeWait bounds the close handshake frame.
	closeWait = time.Second
)

// ChannelState is the connection state of a presence channel.
type ChannelState int

const (
	// StateUninitialized means no channel exists for the session yet.
	StateUninitialized ChannelState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDisconnected
)

// String returns the state name used in logs and the inspector API.
func (s ChannelState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// gaugeValue maps the state to the presence_channel_state gauge.
func (s ChannelState) gaugeValue() int {
	switch s {
	case StateConnecting:
		return 1
	case StateConnected:
		return 2
	case StateReconnecting:
		return 3
	default:
		return 0
	}
}

var (
	// ErrNotConnected is returned by ChangeMyStatus when no connection is up.
	ErrNotConnected = errors.New("presence channel is not connected")

	// ErrChannelClosed is returned by Start after Close.
	ErrChannelClosed = errors.New("presence channel is closed")
)

// OutboundSendError reports a failed outbound invocation. It is not retried.
type OutboundSendError struct {
	Target string
	Err    error
}

func (e *OutboundSendError) Error() string {
	return fmt.Sprintf("send %s: %v", e.Target, e.Err)
}

func (e *OutboundSendError) Unwrap() error {
	return e.Err
}

// ConnectError reports a failed dial or handshake.
type ConnectError struct {
	// URL is the hub endpoint without credentials.
	URL string
	// StatusCode is the HTTP status of a failed upgrade, else 0.
	StatusCode int
	Err        error
}

func (e *ConnectError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("connect %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("connect %s: %v", e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// ChannelConfig holds the connection settings of a presence channel.
type ChannelConfig struct {
	URL               string
	HandshakeTimeout  time.Duration
	KeepAliveInterval time.Duration
	ServerTimeout     time.Duration
	TeardownTimeout   time.Duration
	Reconnect         ReconnectPolicy
}

// ChannelConfigFromConfig builds a ChannelConfig from the hub and reconnect
// configuration sections.
func ChannelConfigFromConfig(hub *config.HubConfig, reconnect config.ReconnectConfig) ChannelConfig {
	return ChannelConfig{
		URL:               hub.URL,
		HandshakeTimeout:  hub.HandshakeTimeout,
		KeepAliveInterval: hub.KeepAliveInterval,
		ServerTimeout:     hub.ServerTimeout,
		TeardownTimeout:   hub.TeardownTimeout,
		Reconnect:         ReconnectPolicyFromConfig(reconnect),
	}
}

func (c ChannelConfig) withDefaults() ChannelConfig {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 15 * time.Second
	}
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = 15 * time.Second
	}
	if c.ServerTimeout <= 0 {
		c.ServerTimeout = 2 * c.KeepAliveInterval
	}
	if c.TeardownTimeout <= 0 {
		c.TeardownTimeout = time.Second
	}
	if c.Reconnect.BaseDelay <= 0 {
		c.Reconnect = DefaultReconnectPolicy()
	}
	return c
}

// PresenceChannel is the push connection for one signed-in user.
//
// Lifecycle: Start moves the channel to Connecting. Each successful
// handshake moves it to Connected, writes the user Online into the store and
// announces ChangeMyStatus(Online) exactly once. A lost connection moves it
// to Reconnecting without touching the store. When the reconnect policy is
// exhausted, or the server closes without allowing reconnects, it ends in
// Disconnected. Close tears it down from any state.
type PresenceChannel struct {
	cfg    ChannelConfig
	userID models.UserID
	token  TokenFunc
	store  *presence.Store
	log    zerolog.Logger

	// Connection state
	stateMu        sync.RWMutex
	state          ChannelState
	started        bool
	closed         bool
	stateListeners map[uint64]func(ChannelState)
	nextListenerID uint64

	// WebSocket connection
	conn   *websocket.Conn
	connMu sync.RWMutex
	// gorilla/websocket supports one concurrent writer
	writeMu sync.Mutex

	// selfMu orders the user's own announcements (Online on connect,
	// ChangeMyStatus) against the Offline write of Close.
	selfMu sync.Mutex

	// Lifecycle management
	closeOnce sync.Once
	stopChan  chan struct{}
	done      chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	connections atomic.Uint64
}

// NewPresenceChannel creates a channel for userID. token is called before
// every connection attempt.
func NewPresenceChannel(cfg ChannelConfig, store *presence.Store, userID models.UserID, token TokenFunc) *PresenceChannel {
	return &PresenceChannel{
		cfg:            cfg.withDefaults(),
		userID:         userID,
		token:          token,
		store:          store,
		log:            logging.WithComponent("presence-channel").With().Str("user_id", string(userID)).Logger(),
		state:          StateUninitialized,
		stateListeners: make(map[uint64]func(ChannelState)),
		stopChan:       make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// UserID returns the user this channel announces.
func (c *PresenceChannel) UserID() models.UserID {
	return c.userID
}

// State returns the current connection state.
func (c *PresenceChannel) State() ChannelState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Connections returns how many times the channel reached Connected.
func (c *PresenceChannel) Connections() uint64 {
	return c.connections.Load()
}

// Done is closed when the channel has stopped for good, either because it
// gave up reconnecting or because it was closed.
func (c *PresenceChannel) Done() <-chan struct{} {
	return c.done
}

// OnStateChange registers fn for state transitions and returns a function
// that removes it. fn runs on the channel's goroutine and must not block.
func (c *PresenceChannel) OnStateChange(fn func(ChannelState)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	c.stateMu.Lock()
	id := c.nextListenerID
	c.nextListenerID++
	c.stateListeners[id] = fn
	c.stateMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.stateMu.Lock()
			delete(c.stateListeners, id)
			c.stateMu.Unlock()
		})
	}
}

// setState records a transition and notifies listeners. After Close only
// the final Disconnected transition is accepted.
func (c *PresenceChannel) setState(state ChannelState) {
	c.stateMu.Lock()
	if c.state == state || (c.closed && state != StateDisconnected) {
		c.stateMu.Unlock()
		return
	}
	from := c.state
	c.state = state
	listeners := make([]func(ChannelState), 0, len(c.stateListeners))
	for _, fn := range c.stateListeners {
		listeners = append(listeners, fn)
	}
	c.stateMu.Unlock()

	metrics.SetChannelState(state.gaugeValue())
	c.log.Info().Str("from", from.String()).Str("to", state.String()).Msg("Channel state changed")

	for _, fn := range listeners {
		fn(state)
	}
}

// Start begins connecting in the background. It returns immediately.
// Calling Start again is a no-op.
func (c *PresenceChannel) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		cancel()
		return ErrChannelClosed
	}
	if c.started {
		c.stateMu.Unlock()
		cancel()
		return nil
	}
	c.started = true
	c.cancel = cancel
	c.stateMu.Unlock()

	c.setState(StateConnecting)

	c.wg.Add(1)
	go c.run(runCtx)
	return nil
}

func (c *PresenceChannel) isClosed() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.closed
}

// stopping reports whether the channel should stop.
func (c *PresenceChannel) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-c.stopChan:
		return true
	default:
		return false
	}
}

// run connects, serves and reconnects until stopped or out of attempts.
func (c *PresenceChannel) run(ctx context.Context) {
	defer c.wg.Done()
	defer close(c.done)

	bo := c.cfg.Reconnect.NewBackOff()

	for {
		if c.stopping(ctx) {
			return
		}

		conn, pending, err := c.connect(ctx)
		if err != nil {
			if c.stopping(ctx) {
				return
			}
			metrics.RecordConnect("failure")
			c.log.Warn().Err(err).Str("state", c.State().String()).Msg("Connection attempt failed")

			if !c.waitRetry(ctx, bo) {
				return
			}
			continue
		}

		metrics.RecordConnect("success")
		bo.Reset()

		allowReconnect := c.serve(ctx, conn, pending)
		if c.stopping(ctx) {
			return
		}
		if !allowReconnect {
			c.log.Warn().Msg("Hub closed the connection and does not allow reconnects")
			c.setState(StateDisconnected)
			return
		}

		// Statuses in the store are kept as they are while reconnecting.
		c.setState(StateReconnecting)
		if !c.waitRetry(ctx, bo) {
			return
		}
	}
}

// waitRetry sleeps for the next policy delay. It returns false when the
// policy is exhausted or the channel is stopping.
func (c *PresenceChannel) waitRetry(ctx context.Context, bo backoff.BackOff) bool {
	delay := bo.NextBackOff()
	if delay == backoff.Stop {
		c.log.Error().Int("max_attempts", c.cfg.Reconnect.MaxAttempts).Msg("Reconnect attempts exhausted, giving up")
		c.setState(StateDisconnected)
		return false
	}

	metrics.RecordReconnectAttempt()
	c.log.Info().Dur("delay", delay).Msg("Reconnecting...")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-c.stopChan:
		return false
	}
}

// connect dials the hub and completes the protocol handshake. Records the
// server sent along with its handshake reply are returned in pending.
func (c *PresenceChannel) connect(ctx context.Context) (*websocket.Conn, []byte, error) {
	token := ""
	if c.token != nil {
		token = c.token()
	}
	wsURL, safeURL, err := hubWebSocketURL(c.cfg.URL, token)
	if err != nil {
		return nil, nil, &ConnectError{URL: safeURL, Err: err}
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, nil, &ConnectError{URL: safeURL, StatusCode: resp.StatusCode, Err: err}
		}
		return nil, nil, &ConnectError{URL: safeURL, Err: err}
	}
	if resp != nil && resp.Body != nil {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Debug().Err(cerr).Msg("Failed to close upgrade response body")
		}
	}

	pending, err := c.handshake(conn)
	if err != nil {
		metrics.RecordHubError("handshake")
		_ = conn.Close()
		return nil, nil, &ConnectError{URL: safeURL, Err: err}
	}

	return conn, pending, nil
}

func (c *PresenceChannel) handshake(conn *websocket.Conn) ([]byte, error) {
	deadline := time.Now().Add(c.cfg.HandshakeTimeout)

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, hubproto.EncodeHandshakeRequest()); err != nil {
		return nil, fmt.Errorf("send handshake: %w", err)
	}

	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read handshake reply: %w", err)
	}
	return hubproto.ParseHandshakeResponse(data)
}

// serve runs one established connection until it fails. It returns whether
// a reconnect is allowed.
func (c *PresenceChannel) serve(ctx context.Context, conn *websocket.Conn, pending []byte) bool {
	connLog := c.log.With().Str("connection_id", logging.GenerateCorrelationID()).Logger()

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	defer c.dropConnection(conn)

	// Own status goes Online before the state is published, so that any
	// observer of Connected already sees it in the store.
	c.selfMu.Lock()
	if c.isClosed() {
		c.selfMu.Unlock()
		return true
	}
	c.store.SetStatus(c.userID, models.StatusOnline, presence.SourceLocal)
	if err := c.invoke(conn, models.StatusOnline); err != nil {
		connLog.Warn().Err(err).Msg("Failed to announce Online")
	}
	c.connections.Add(1)
	c.selfMu.Unlock()
	c.setState(StateConnected)
	connLog.Info().Msg("Connected to presence hub")

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	c.wg.Add(1)
	go c.pingLoop(pingCtx, conn)

	if len(pending) > 0 {
		if closed, allow := c.handleFrame(connLog, pending); closed {
			return allow
		}
	}

	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ServerTimeout)); err != nil {
			connLog.Debug().Err(err).Msg("Failed to set read deadline")
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			switch {
			case c.stopping(ctx):
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				connLog.Info().Msg("Connection closed by hub")
			default:
				metrics.RecordHubError("read")
				connLog.Warn().Err(err).Msg("Connection lost")
			}
			return true
		}

		if closed, allow := c.handleFrame(connLog, data); closed {
			return allow
		}
	}
}

// handleFrame processes every record in one websocket message. closed is
// true when the hub sent a Close message.
func (c *PresenceChannel) handleFrame(log zerolog.Logger, data []byte) (closed, allowReconnect bool) {
	records, err := hubproto.Split(data)
	if err != nil {
		metrics.RecordHubError("framing")
		log.Warn().Err(err).Msg("Dropping unterminated hub record")
	}

	for _, record := range records {
		msg, err := hubproto.Decode(record)
		if err != nil {
			metrics.RecordHubError("decode")
			log.Warn().Err(err).Msg("Failed to parse hub message")
			continue
		}

		switch msg.Type {
		case hubproto.TypeInvocation:
			c.handleInvocation(log, msg)

		case hubproto.TypePing:
			metrics.RecordMessageReceived(msg.Type.String())

		case hubproto.TypeClose:
			metrics.RecordMessageReceived(msg.Type.String())
			log.Info().Str("error", msg.Error).Bool("allow_reconnect", msg.AllowReconnect).Msg("Hub sent close")
			return true, msg.AllowReconnect

		default:
			metrics.RecordMessageReceived(msg.Type.String())
			log.Debug().Str("type", msg.Type.String()).Msg("Ignoring hub message")
		}
	}
	return false, false
}

// handleInvocation applies a server-to-client call.
func (c *PresenceChannel) handleInvocation(log zerolog.Logger, msg hubproto.Message) {
	switch msg.Target {
	case hubproto.TargetUserStatusChanged:
		metrics.RecordMessageReceived(msg.Target)
		entry, err := hubproto.DecodeUserStatusChanged(msg)
		if err != nil {
			metrics.RecordHubError("malformed_invocation")
			log.Warn().Err(err).Msg("Dropping malformed status event")
			return
		}
		c.store.SetStatus(entry.UserID, entry.Status, presence.SourceChannel)

	default:
		metrics.RecordMessageReceived("other")
		log.Debug().Str("target", msg.Target).Msg("Ignoring unknown hub method")
	}
}

// pingLoop sends keep-alive pings on conn until ctx is done.
func (c *PresenceChannel) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-ticker.C:
			if err := c.write(conn, hubproto.EncodePing(), writeWait); err != nil {
				metrics.RecordHubError("keepalive")
				c.log.Warn().Err(err).Msg("Keep-alive failed")
				// Unblocks the read loop, which then reconnects.
				_ = conn.Close()
				return
			}
		}
	}
}

// write sends one text frame under the write lock.
func (c *PresenceChannel) write(conn *websocket.Conn, data []byte, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// invoke sends ChangeMyStatus(status) on conn.
func (c *PresenceChannel) invoke(conn *websocket.Conn, status models.PresenceStatus) error {
	return c.invokeWithTimeout(conn, status, writeWait)
}

func (c *PresenceChannel) invokeWithTimeout(conn *websocket.Conn, status models.PresenceStatus, timeout time.Duration) error {
	data, err := hubproto.EncodeChangeMyStatus(status)
	if err != nil {
		return err
	}
	if err := c.write(conn, data, timeout); err != nil {
		metrics.RecordMessageSent(hubproto.TargetChangeMyStatus, "failure")
		return &OutboundSendError{Target: hubproto.TargetChangeMyStatus, Err: err}
	}
	metrics.RecordMessageSent(hubproto.TargetChangeMyStatus, "success")
	return nil
}

// ChangeMyStatus announces status to the hub. It does not touch the store.
// When the channel is not Connected, or is closing, nothing is sent and
// ErrNotConnected is returned. Send failures are returned as
// *OutboundSendError and not retried.
func (c *PresenceChannel) ChangeMyStatus(status models.PresenceStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid presence status %q", string(status))
	}

	c.selfMu.Lock()
	defer c.selfMu.Unlock()

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil || c.isClosed() || c.State() != StateConnected {
		metrics.RecordMessageSent(hubproto.TargetChangeMyStatus, "not_connected")
		c.log.Info().Str("status", status.String()).Str("state", c.State().String()).Msg("Not connected, status change not sent")
		return ErrNotConnected
	}

	if err := c.invoke(conn, status); err != nil {
		c.log.Warn().Err(err).Str("status", status.String()).Msg("Failed to send status change")
		return err
	}
	return nil
}

// dropConnection forgets conn and closes it.
func (c *PresenceChannel) dropConnection(conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()
	_ = conn.Close()
}

// closeConnection sends a close frame and closes the current connection.
func (c *PresenceChannel) closeConnection() {
	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if conn == nil {
		return
	}

	c.writeMu.Lock()
	if err := conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWait),
	); err != nil {
		c.log.Debug().Err(err).Msg("Failed to send close message")
	}
	c.writeMu.Unlock()

	if err := conn.Close(); err != nil {
		c.log.Debug().Err(err).Msg("Failed to close connection")
	}
}

// Close tears the channel down from any state. The user is written Offline
// into the store first, then, if connected, ChangeMyStatus(Offline) is sent
// on a best-effort basis within the teardown timeout. Close is idempotent.
func (c *PresenceChannel) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		c.log.Info().Msg("Closing presence channel...")

		c.selfMu.Lock()
		c.stateMu.Lock()
		c.closed = true
		started := c.started
		cancel := c.cancel
		c.stateMu.Unlock()

		c.store.SetStatus(c.userID, models.StatusOffline, presence.SourceTeardown)

		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()
		if conn != nil {
			timeout := c.cfg.TeardownTimeout
			if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
				timeout = time.Until(deadline)
			}
			if sendErr := c.invokeWithTimeout(conn, models.StatusOffline, timeout); sendErr != nil {
				c.log.Warn().Err(sendErr).Msg("Failed to announce Offline during teardown")
			}
		}
		c.selfMu.Unlock()

		close(c.stopChan)
		if cancel != nil {
			cancel()
		}
		if !started {
			close(c.done)
		}
		c.closeConnection()

		waitDone := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(waitDone)
		}()
		select {
		case <-waitDone:
		case <-ctx.Done():
			err = fmt.Errorf("presence channel close: %w", ctx.Err())
		}

		c.setState(StateDisconnected)
		c.log.Info().Msg("Presence channel closed")
	})
	return err
}

// hubWebSocketURL converts an http(s) hub URL to ws(s) and appends the access
// token. The second result is safe to log.
func hubWebSocketURL(raw, token string) (dialURL, safeURL string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", raw, fmt.Errorf("invalid hub URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", raw, fmt.Errorf("unsupported hub URL scheme %q", u.Scheme)
	}
	safeURL = u.String()

	if token != "" {
		q := u.Query()
		q.Set("access_token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), safeURL, nil
}
