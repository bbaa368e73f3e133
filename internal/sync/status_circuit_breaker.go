// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package sync

import (
	"context"
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/chatpresence/internal/config"
	"github.com/tomtom215/chatpresence/internal/logging"
	"github.com/tomtom215/chatpresence/internal/metrics"
	"github.com/tomtom215/chatpresence/internal/models"
)

// StatusBreakerName labels the status API breaker in metrics and logs.
const StatusBreakerName = "status-api"

// Ensure StatusCircuitBreakerClient implements StatusFetcher
var _ StatusFetcher = (*StatusCircuitBreakerClient)(nil)

// StatusCircuitBreakerClient wraps a StatusFetcher with a circuit breaker so a
// failing backend is not hammered by every hydrating consumer.
//
// Only *FetchError results with a 5xx status, transport or decode failures
// count as breaker failures. A 4xx answer means the backend is healthy.
type StatusCircuitBreakerClient struct {
	client StatusFetcher
	cb     *gobreaker.CircuitBreaker[[]models.StatusEntry]
	name   string
}

// NewStatusCircuitBreakerClient wraps client using the breaker settings in cfg:
// - MaxRequests allowed in half-open state
// - Interval for clearing closed-state counts
// - Timeout before an open breaker goes half-open
// - Opens at FailureRatio once MinRequests were seen
func NewStatusCircuitBreakerClient(client StatusFetcher, cfg *config.BreakerConfig) *StatusCircuitBreakerClient {
	cbName := StatusBreakerName

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)

	minRequests := cfg.MinRequests
	failureRatio := cfg.FailureRatio

	cb := gobreaker.NewCircuitBreaker[[]models.StatusEntry](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}

			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := ratio >= failureRatio

			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", ratio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()

			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},

		IsSuccessful: isBreakerSuccess,
	})

	return &StatusCircuitBreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// isBreakerSuccess treats client errors (4xx) and caller cancellation as
// successes so they never open the circuit.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var fe *FetchError
	if errors.As(err, &fe) && fe.StatusCode >= 400 && fe.StatusCode < 500 {
		return true
	}
	return false
}

// FetchStatuses calls the wrapped fetcher unless the circuit is open.
// Rejections are returned as *FetchError with Op "circuit_breaker".
func (cbc *StatusCircuitBreakerClient) FetchStatuses(ctx context.Context, ids []models.UserID) ([]models.StatusEntry, error) {
	if len(models.UniqueUserIDs(ids)) == 0 {
		// Nothing to ask; keep empty calls out of the breaker counts.
		return cbc.client.FetchStatuses(ctx, ids)
	}
	return cbc.execute(func() ([]models.StatusEntry, error) {
		return cbc.client.FetchStatuses(ctx, ids)
	})
}

// State returns the current breaker state name.
func (cbc *StatusCircuitBreakerClient) State() string {
	return stateToString(cbc.cb.State())
}

// execute wraps a status API call with circuit breaker protection
func (cbc *StatusCircuitBreakerClient) execute(fn func() ([]models.StatusEntry, error)) ([]models.StatusEntry, error) {
	result, err := cbc.cb.Execute(fn)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
			return nil, &FetchError{Op: "circuit_breaker", Err: fmt.Errorf("%s: %w", cbc.name, err)}
		}

		metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
		counts := cbc.cb.Counts()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(float64(counts.ConsecutiveFailures))
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(0)

	return result, nil
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
