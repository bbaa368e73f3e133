// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package sync

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tomtom215/chatpresence/internal/config"
)

// ReconnectPolicy decides how long the presence channel waits between
// connection attempts and when it gives up.
type ReconnectPolicy struct {
	// MaxAttempts is the number of consecutive failed attempts before the
	// channel stays Disconnected. 0 retries forever.
	MaxAttempts int
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps any single wait.
	MaxDelay time.Duration
	// Multiplier grows the wait after each failure.
	Multiplier float64
	// Jitter randomizes each wait by +/- Jitter of its value.
	Jitter float64
}

// DefaultReconnectPolicy retries ten times, from 1s doubling up to 32s.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts: 10,
		BaseDelay:   time.Second,
		MaxDelay:    32 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// ReconnectPolicyFromConfig converts the reconnect configuration section.
func ReconnectPolicyFromConfig(cfg config.ReconnectConfig) ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		Multiplier:  cfg.Multiplier,
		Jitter:      cfg.Jitter,
	}
}

// NewBackOff returns a fresh schedule for one outage. NextBackOff returns
// backoff.Stop once MaxAttempts waits were handed out.
func (p ReconnectPolicy) NewBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseDelay
	eb.MaxInterval = p.MaxDelay
	eb.Multiplier = p.Multiplier
	eb.RandomizationFactor = p.Jitter
	// Give up is governed by MaxAttempts only, never by elapsed time.
	eb.MaxElapsedTime = 0

	if eb.InitialInterval <= 0 {
		eb.InitialInterval = time.Second
	}
	if eb.MaxInterval < eb.InitialInterval {
		eb.MaxInterval = eb.InitialInterval
	}
	if eb.Multiplier < 1 {
		eb.Multiplier = 1
	}
	eb.Reset()

	if p.MaxAttempts > 0 {
		return backoff.WithMaxRetries(eb, uint64(p.MaxAttempts))
	}
	return eb
}
