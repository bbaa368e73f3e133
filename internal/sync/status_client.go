// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

/*
status_client.go - Batch Status REST Client

This file implements the client for the chat backend's batch status endpoint.
It resolves a set of user ids to their current presence status in one call.

Endpoint: POST {base_url}/api/users/statuses
Request:  ["user-1", "user-2"]
Response: [{"userId": "user-1", "presenceStatus": "Online"}, ...]
*/

package sync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/chatpresence/internal/config"
	"github.com/tomtom215/chatpresence/internal/logging"
	"github.com/tomtom215/chatpresence/internal/metrics"
	"github.com/tomtom215/chatpresence/internal/models"
	"github.com/tomtom215/chatpresence/internal/validation"
)

// StatusFetcher resolves user ids to presence statuses.
// Both StatusClient and StatusCircuitBreakerClient implement this interface.
type StatusFetcher interface {
	// FetchStatuses returns the statuses the backend knows for ids. The
	// result may hold fewer entries than requested. An empty or all-blank id
	// set returns an empty result without a network call. Any failure is
	// reported as *FetchError.
	FetchStatuses(ctx context.Context, ids []models.UserID) ([]models.StatusEntry, error)
}

// Ensure StatusClient implements StatusFetcher
var _ StatusFetcher = (*StatusClient)(nil)

// TokenFunc returns the current bearer token. It is called on every request
// so a refreshed token is used without rebuilding the client.
type TokenFunc func() string

// FetchError is returned by every failed status fetch. No partial data
// accompanies it.
type FetchError struct {
	// Op names the failed step: "rate_limit", "request", "status", "decode"
	// or "circuit_breaker".
	Op string
	// StatusCode is the HTTP status when the server answered, else 0.
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("status fetch %s failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("status fetch %s failed: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusClient calls the batch status endpoint.
type StatusClient struct {
	endpoint   string
	token      TokenFunc
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewStatusClient creates a status client from cfg. token may be nil when the
// endpoint does not require authentication.
//
// Parameters:
//   - cfg.BaseURL: backend URL (e.g., https://chat.example.com)
//   - cfg.StatusesPath: endpoint path (default /api/users/statuses)
//   - cfg.RequestTimeout: bound for one fetch (default 10s)
//   - cfg.RateLimitRPS: client-side rate limit, 0 disables it
func NewStatusClient(cfg *config.APIConfig, token TokenFunc) *StatusClient {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &StatusClient{
		endpoint: baseURL + cfg.StatusesPath,
		token:    token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		timeout:  timeout,
		limiter:  limiter,
		log:      logging.WithComponent("status-fetcher"),
	}
}

// DefaultFetchTimeout bounds a fetch when the configuration leaves it unset.
const DefaultFetchTimeout = 10 * time.Second

// FetchStatuses posts the de-duplicated id set and returns the valid entries
// of the response. Entries that fail validation, or name ids that were not
// requested, are dropped and logged. They are never defaulted to Offline.
func (c *StatusClient) FetchStatuses(ctx context.Context, ids []models.UserID) ([]models.StatusEntry, error) {
	requested := models.UniqueUserIDs(ids)
	if len(requested) == 0 {
		metrics.RecordFetchSkipped()
		return []models.StatusEntry{}, nil
	}

	start := time.Now()
	entries, dropped, err := c.fetch(ctx, requested)
	metrics.RecordFetch(time.Since(start), len(entries), dropped, err)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("component", "status-fetcher").
			Int("requested", len(requested)).Msg("Status fetch failed")
		return nil, err
	}

	c.log.Debug().
		Int("requested", len(requested)).
		Int("returned", len(entries)).
		Int("dropped", dropped).
		Msg("Fetched statuses")
	return entries, nil
}

func (c *StatusClient) fetch(ctx context.Context, ids []models.UserID) ([]models.StatusEntry, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, &FetchError{Op: "rate_limit", Err: err}
	}

	resp, err := c.doRequest(ctx, ids)
	if err != nil {
		return nil, 0, &FetchError{Op: "request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return nil, 0, &FetchError{
				Op:         "status",
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("statuses returned status %d (failed to read body)", resp.StatusCode),
			}
		}
		return nil, 0, &FetchError{
			Op:         "status",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("statuses returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, 0, &FetchError{Op: "decode", StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode statuses: %w", err)}
	}

	entries, dropped := c.filter(ids, raw)
	return entries, dropped, nil
}

// filter keeps entries that decode, pass validation and answer a requested
// id. One bad entry never fails the whole batch.
func (c *StatusClient) filter(requested []models.UserID, raw []json.RawMessage) ([]models.StatusEntry, int) {
	wanted := make(map[models.UserID]struct{}, len(requested))
	for _, id := range requested {
		wanted[id] = struct{}{}
	}

	entries := make([]models.StatusEntry, 0, len(raw))
	dropped := 0
	for i := range raw {
		var e models.StatusEntry
		if err := json.Unmarshal(raw[i], &e); err != nil {
			dropped++
			c.log.Warn().Err(err).Int("index", i).Msg("Dropping undecodable status entry")
			continue
		}
		if verr := validation.ValidateStruct(&e); verr != nil {
			dropped++
			c.log.Warn().Err(verr).Int("index", i).Msg("Dropping invalid status entry")
			continue
		}
		if _, ok := wanted[e.UserID]; !ok {
			dropped++
			c.log.Warn().Str("user_id", string(e.UserID)).Msg("Dropping status for a user that was not requested")
			continue
		}
		entries = append(entries, e)
	}
	return entries, dropped
}

// doRequest performs the POST with the id set as JSON body.
func (c *StatusClient) doRequest(ctx context.Context, ids []models.UserID) (*http.Response, error) {
	body, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}

	return c.httpClient.Do(req)
}
