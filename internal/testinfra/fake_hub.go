// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package testinfra

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/chatpresence/internal/hubproto"
	"github.com/tomtom215/chatpresence/internal/models"
)

const (
	fakeHubWriteWait = 2 * time.Second
	fakeHubReadWait  = 5 * time.Second
)

// Invocation is a client-to-server call captured by FakeHub.
type Invocation struct {
	ConnectionID uint64
	Target       string
	Arguments    []json.RawMessage
	// Status is set for ChangeMyStatus calls.
	Status models.PresenceStatus
}

// fakeHubConn is one accepted client connection.
type fakeHubConn struct {
	id      uint64
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *fakeHubConn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(fakeHubWriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// FakeHub is an in-process presence hub speaking the JSON hub protocol.
// It records dial attempts and invocations and can push status events,
// drop connections or close them with a hub Close message.
type FakeHub struct {
	Server   *httptest.Server
	upgrader websocket.Upgrader

	mu            sync.Mutex
	conns         map[uint64]*fakeHubConn
	invocations   []Invocation
	tokens        []string
	requiredToken string
	handshakeErr  string
	unavailable   bool
	handshakes    int

	nextID atomic.Uint64
}

// NewFakeHub starts a fake hub. It is closed when the test ends.
func NewFakeHub(t testing.TB) *FakeHub {
	t.Helper()

	h := &FakeHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		conns: make(map[uint64]*fakeHubConn),
	}
	h.Server = httptest.NewServer(http.HandlerFunc(h.handle))
	t.Cleanup(h.Close)
	return h
}

// URL returns the ws:// endpoint of the hub.
func (h *FakeHub) URL() string {
	return "ws" + strings.TrimPrefix(h.Server.URL, "http") + "/hubs/presence"
}

// RequireToken makes the hub reject upgrades whose access_token differs.
func (h *FakeHub) RequireToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requiredToken = token
}

// SetHandshakeError makes the hub answer handshakes with errMsg.
// An empty errMsg accepts them again.
func (h *FakeHub) SetHandshakeError(errMsg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handshakeErr = errMsg
}

// SetAvailable toggles whether upgrades are answered with 503.
func (h *FakeHub) SetAvailable(available bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unavailable = !available
}

// Tokens returns the access tokens of every dial attempt, in order.
func (h *FakeHub) Tokens() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.tokens))
	copy(out, h.tokens)
	return out
}

// Attempts returns the number of dial attempts seen.
func (h *FakeHub) Attempts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tokens)
}

// Handshakes returns the number of completed handshakes.
func (h *FakeHub) Handshakes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handshakes
}

// ActiveConnections returns the number of open connections.
func (h *FakeHub) ActiveConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Invocations returns every captured invocation.
func (h *FakeHub) Invocations() []Invocation {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Invocation, len(h.invocations))
	copy(out, h.invocations)
	return out
}

// StatusAnnouncements returns the ChangeMyStatus calls grouped by connection.
func (h *FakeHub) StatusAnnouncements() map[uint64][]models.PresenceStatus {
	out := make(map[uint64][]models.PresenceStatus)
	for _, inv := range h.Invocations() {
		if inv.Target == hubproto.TargetChangeMyStatus {
			out[inv.ConnectionID] = append(out[inv.ConnectionID], inv.Status)
		}
	}
	return out
}

// WaitForHandshakes waits until at least n handshakes completed.
func (h *FakeHub) WaitForHandshakes(n int, timeout time.Duration) error {
	return waitFor(timeout, func() bool { return h.Handshakes() >= n },
		func() string { return fmt.Sprintf("%d of %d handshakes", h.Handshakes(), n) })
}

// WaitForInvocations waits until at least n invocations were captured.
func (h *FakeHub) WaitForInvocations(n int, timeout time.Duration) ([]Invocation, error) {
	err := waitFor(timeout, func() bool { return len(h.Invocations()) >= n },
		func() string { return fmt.Sprintf("%d of %d invocations", len(h.Invocations()), n) })
	return h.Invocations(), err
}

// WaitForAttempts waits until at least n dial attempts were seen.
func (h *FakeHub) WaitForAttempts(n int, timeout time.Duration) error {
	return waitFor(timeout, func() bool { return h.Attempts() >= n },
		func() string { return fmt.Sprintf("%d of %d dial attempts", h.Attempts(), n) })
}

// PushStatus sends UserStatusChanged(userID, status) to every connection.
func (h *FakeHub) PushStatus(userID models.UserID, status models.PresenceStatus) error {
	data, err := hubproto.EncodeUserStatusChanged(userID, status)
	if err != nil {
		return err
	}
	return h.PushRaw(data)
}

// PushRaw sends data as one text frame to every connection.
func (h *FakeHub) PushRaw(data []byte) error {
	for _, c := range h.snapshot() {
		if err := c.write(data); err != nil {
			return fmt.Errorf("push to connection %d: %w", c.id, err)
		}
	}
	return nil
}

// DropAll closes every connection without a close handshake.
func (h *FakeHub) DropAll() {
	for _, c := range h.snapshot() {
		_ = c.conn.Close()
	}
}

// CloseAll sends a hub Close message to every connection and closes it.
func (h *FakeHub) CloseAll(errMsg string, allowReconnect bool) {
	data := hubproto.EncodeClose(errMsg, allowReconnect)
	for _, c := range h.snapshot() {
		_ = c.write(data)
		_ = c.conn.Close()
	}
}

// Close shuts down the hub and all connections.
func (h *FakeHub) Close() {
	h.DropAll()
	h.Server.Close()
}

// snapshot returns open connections ordered by id.
func (h *FakeHub) snapshot() []*fakeHubConn {
	h.mu.Lock()
	out := make([]*fakeHubConn, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	h.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (h *FakeHub) handle(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("access_token")

	h.mu.Lock()
	h.tokens = append(h.tokens, token)
	required := h.requiredToken
	unavailable := h.unavailable
	h.mu.Unlock()

	if unavailable {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	if required != "" && token != required {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &fakeHubConn{id: h.nextID.Add(1), conn: conn}
	pending, ok := h.handshake(c)
	if !ok {
		_ = conn.Close()
		return
	}

	h.mu.Lock()
	h.conns[c.id] = c
	h.handshakes++
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, c.id)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	if len(pending) > 0 {
		h.record(c.id, pending)
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.record(c.id, data)
	}
}

func (h *FakeHub) handshake(c *fakeHubConn) ([]byte, bool) {
	if err := c.conn.SetReadDeadline(time.Now().Add(fakeHubReadWait)); err != nil {
		return nil, false
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, false
	}
	_ = c.conn.SetReadDeadline(time.Time{})

	_, rest, err := hubproto.ParseHandshakeRequest(data)
	if err != nil {
		_ = c.write(hubproto.EncodeHandshakeResponse(err.Error()))
		return nil, false
	}

	h.mu.Lock()
	handshakeErr := h.handshakeErr
	h.mu.Unlock()
	if handshakeErr != "" {
		_ = c.write(hubproto.EncodeHandshakeResponse(handshakeErr))
		return nil, false
	}

	if err := c.write(hubproto.EncodeHandshakeResponse("")); err != nil {
		return nil, false
	}
	return rest, true
}

// record captures the invocations in one frame. Pings are ignored.
func (h *FakeHub) record(connID uint64, data []byte) {
	records, _ := hubproto.Split(data)
	for _, rec := range records {
		msg, err := hubproto.Decode(rec)
		if err != nil || msg.Type != hubproto.TypeInvocation {
			continue
		}
		inv := Invocation{ConnectionID: connID, Target: msg.Target, Arguments: msg.Arguments}
		if msg.Target == hubproto.TargetChangeMyStatus {
			if status, err := hubproto.DecodeChangeMyStatus(msg); err == nil {
				inv.Status = status
			}
		}
		h.mu.Lock()
		h.invocations = append(h.invocations, inv)
		h.mu.Unlock()
	}
}

// waitFor polls cond every 10ms until it holds or timeout passes.
func waitFor(timeout time.Duration, cond func() bool, describe func() string) error {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %s waiting for %s", timeout, describe())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
