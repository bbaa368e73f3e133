// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/chatpresence/internal/config"
	"github.com/tomtom215/chatpresence/internal/logging"
)

// Config holds configuration for the journal logger.
type Config struct {
	// Enabled controls whether events are recorded.
	Enabled bool `json:"enabled"`

	// MinSeverity filters out less severe events.
	MinSeverity Severity `json:"min_severity"`

	// BufferSize is the size of the async write buffer.
	BufferSize int `json:"buffer_size"`

	// LogToStdout also writes events through the global logger.
	LogToStdout bool `json:"log_to_stdout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:     true,
		MinSeverity: SeverityInfo,
		BufferSize:  256,
	}
}

// ConfigFromSettings maps the loaded configuration section.
func ConfigFromSettings(cfg config.AuditConfig) *Config {
	c := DefaultConfig()
	c.Enabled = cfg.Enabled
	c.LogToStdout = cfg.LogToStdout
	if cfg.BufferSize > 0 {
		c.BufferSize = cfg.BufferSize
	}
	return c
}

// Logger records events into a Store from a background goroutine.
type Logger struct {
	config    *Config
	store     Store
	eventChan chan *Event
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewLogger creates a logger and starts its writer.
func NewLogger(store Store, cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}

	l := &Logger{
		config:    cfg,
		store:     store,
		eventChan: make(chan *Event, cfg.BufferSize),
		stopChan:  make(chan struct{}),
	}

	l.wg.Add(1)
	go l.asyncWriter()

	return l
}

// asyncWriter processes events from the buffer.
func (l *Logger) asyncWriter() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopChan:
			// Drain remaining events
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		case event := <-l.eventChan:
			l.writeEvent(event)
		}
	}
}

func (l *Logger) writeEvent(event *Event) {
	if l.config.LogToStdout {
		logging.Info().
			Str("event_id", event.ID).
			Str("event_type", string(event.Type)).
			Str("outcome", string(event.Outcome)).
			Str("user_id", event.UserID).
			Interface("metadata", event.Metadata).
			Msg(event.Action)
	}

	if l.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Save(ctx, event); err != nil {
		logging.Error().Err(err).Msg("Failed to save audit event")
	}
}

// Log records an event. It never blocks; a full buffer drops the event.
func (l *Logger) Log(event *Event) {
	if !l.config.Enabled || !l.shouldLog(event.Severity) {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	select {
	case <-l.stopChan:
		return
	default:
	}

	select {
	case l.eventChan <- event:
	default:
		logging.Warn().Str("event_id", event.ID).Msg("Audit event buffer full, dropping event")
	}
}

func (l *Logger) shouldLog(severity Severity) bool {
	if severity == "" {
		severity = SeverityInfo
	}
	return severityOrder[severity] >= severityOrder[l.config.MinSeverity]
}

// Query reads from the underlying store.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	if l.store == nil {
		return []Event{}, nil
	}
	return l.store.Query(ctx, filter)
}

// Close drains buffered events and stops the writer. It is idempotent.
func (l *Logger) Close() error {
	l.stopOnce.Do(func() { close(l.stopChan) })
	l.wg.Wait()
	return nil
}
