// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/chatpresence/internal/audit"
	"github.com/tomtom215/chatpresence/internal/logging"
	"github.com/tomtom215/chatpresence/internal/middleware"
	"github.com/tomtom215/chatpresence/internal/models"
	"github.com/tomtom215/chatpresence/internal/presence"
	"github.com/tomtom215/chatpresence/internal/sync"
	"github.com/tomtom215/chatpresence/internal/validation"
	ws "github.com/tomtom215/chatpresence/internal/websocket"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 64 << 10

// Session is the part of the presence session the API reads and drives.
// *session.Context implements it.
type Session interface {
	State() sync.ChannelState
	UserID() models.UserID
	SetMyStatus(status models.PresenceStatus) error
}

// Hydrator fills the store from the batch status endpoint.
// *sync.Hydrator implements it.
type Hydrator interface {
	Hydrate(ctx context.Context, ids []models.UserID) ([]models.StatusEntry, error)
	HydrateMissing(ctx context.Context, ids []models.UserID) ([]models.StatusEntry, error)
}

// Journal records and reads session events. *audit.Logger implements it.
type Journal interface {
	Log(event *audit.Event)
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
}

// HandlerOptions wires the handler to the rest of the daemon. Store is
// required. Session, Hydrator, Feed and Journal may be nil; their routes then
// answer 503.
type HandlerOptions struct {
	Store      *presence.Store
	Session    Session
	Hydrator   Hydrator
	Feed       *ws.Feed
	Journal    Journal
	Middleware *ChiMiddleware
}

// Handler serves the inspector API.
type Handler struct {
	store      *presence.Store
	session    Session
	hydrator   Hydrator
	feed       *ws.Feed
	journal    Journal
	middleware *ChiMiddleware
	startTime  time.Time
}

// NewHandler creates a handler from opts.
func NewHandler(opts HandlerOptions) *Handler {
	mw := opts.Middleware
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Handler{
		store:      opts.Store,
		session:    opts.Session,
		hydrator:   opts.Hydrator,
		feed:       opts.Feed,
		journal:    opts.Journal,
		middleware: mw,
		startTime:  time.Now(),
	}
}

// decodeJSON reads a bounded JSON body into dst and writes a 400 on failure.
func decodeJSON(rw *ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(rw.w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		rw.BadRequest("Invalid request body")
		return false
	}
	return true
}

// validate runs struct validation and writes a 400 with field details on failure.
func validate(rw *ResponseWriter, req interface{}) bool {
	if verr := validation.ValidateStruct(req); verr != nil {
		rw.ValidationError(verr.Error(), verr.FieldDetails())
		return false
	}
	return true
}

// record journals an event caused by r. It is a no-op without a journal.
func (h *Handler) record(r *http.Request, event *audit.Event) {
	if h.journal == nil {
		return
	}
	event.RequestID = middleware.GetRequestID(r.Context())
	event.SourceIP = r.RemoteAddr
	if event.UserID == "" {
		event.UserID = logging.UserIDFromContext(r.Context())
	}
	h.journal.Log(event)
}

// sessionUser adds the signed-in user id to the request's logging context.
func (h *Handler) sessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.session != nil {
			if id := h.session.UserID(); id != "" {
				r = r.WithContext(logging.ContextWithUserID(r.Context(), string(id)))
			}
		}
		next.ServeHTTP(w, r)
	})
}
