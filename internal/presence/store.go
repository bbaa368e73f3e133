// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package presence

import (
	"sync"

	"github.com/tomtom215/chatpresence/internal/metrics"
	"github.com/tomtom215/chatpresence/internal/models"
)

// Source identifies which writer produced a store update. It is carried for
// observability only; the store never uses it to reconcile conflicting writes.
type Source string

const (
	// SourceHydration is a batch returned by the status fetcher.
	SourceHydration Source = "hydration"
	// SourceChannel is a live UserStatusChanged event from the hub.
	SourceChannel Source = "channel"
	// SourceLocal is an optimistic write of the signed-in user's own status.
	SourceLocal Source = "local"
	// SourceTeardown is the Offline write made when the channel is torn down.
	SourceTeardown Source = "teardown"
	// SourceReset marks the wholesale clear performed on logout.
	SourceReset Source = "reset"
)

// Change describes one logical store update.
type Change struct {
	// Version increases by one for every notified update.
	Version uint64
	// Source is the writer of this update.
	Source Source
	// Entries holds the written pairs in application order, after
	// duplicate keys were collapsed (last one wins).
	Entries []models.StatusEntry
	// Reset is true when the whole map was cleared. Entries is empty then.
	Reset bool
}

// Listener receives store changes. It runs on the writer's goroutine after
// the write is visible to readers, and must not block or write to the store.
// Listeners see changes in version order.
type Listener func(Change)

// Store is the in-memory map of user id to last known presence status.
// A missing key means the status is unknown, which is distinct from Offline.
//
// Store is safe for concurrent use. Writes overwrite whole keys; there is no
// ordering between writers, so the last write to arrive wins.
type Store struct {
	mu       sync.RWMutex
	statuses map[models.UserID]models.PresenceStatus
	version  uint64

	// notifyMu is taken before mu is released so notifications cannot
	// overtake each other.
	notifyMu sync.Mutex

	listenerMu sync.RWMutex
	listeners  map[uint64]Listener
	nextID     uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		statuses:  make(map[models.UserID]models.PresenceStatus),
		listeners: make(map[uint64]Listener),
	}
}

// Status returns the last known status for id. The boolean is false when the
// store has never seen id.
func (s *Store) Status(id models.UserID) (models.PresenceStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[id]
	return status, ok
}

// StatusOr returns the stored status for id, or fallback when unknown.
func (s *Store) StatusOr(id models.UserID, fallback models.PresenceStatus) models.PresenceStatus {
	if status, ok := s.Status(id); ok {
		return status
	}
	return fallback
}

// SetStatus records status for id, overwriting any previous value.
// Invalid statuses are ignored.
func (s *Store) SetStatus(id models.UserID, status models.PresenceStatus, source Source) {
	s.SetStatuses([]models.StatusEntry{{UserID: id, Status: status}}, source)
}

// SetStatuses applies entries as one logical update: readers and listeners
// observe either none or all of them, and listeners are notified once.
// When a user id appears more than once the last entry wins.
func (s *Store) SetStatuses(entries []models.StatusEntry, source Source) {
	applied := collapse(entries)
	if len(applied) == 0 {
		return
	}

	s.mu.Lock()
	for _, e := range applied {
		s.statuses[e.UserID] = e.Status
	}
	size := len(s.statuses)
	change := s.nextChangeLocked(Change{Source: source, Entries: applied})

	metrics.RecordStoreWrite(string(source), len(applied), size)
	s.notify(change)
}

// collapse drops invalid entries and keeps only the last entry per user,
// positioned where that user was last written.
func collapse(entries []models.StatusEntry) []models.StatusEntry {
	if len(entries) == 0 {
		return nil
	}
	last := make(map[models.UserID]int, len(entries))
	for i, e := range entries {
		if e.UserID == "" || !e.Status.IsValid() {
			continue
		}
		last[e.UserID] = i
	}
	out := make([]models.StatusEntry, 0, len(last))
	for i, e := range entries {
		if idx, ok := last[e.UserID]; ok && idx == i {
			out = append(out, e)
		}
	}
	return out
}

// Snapshot returns a copy of all known statuses.
func (s *Store) Snapshot() map[models.UserID]models.PresenceStatus {
	statuses, _ := s.SnapshotVersion()
	return statuses
}

// SnapshotVersion returns a copy of all known statuses together with the
// version of the last change they include.
func (s *Store) SnapshotVersion() (map[models.UserID]models.PresenceStatus, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.UserID]models.PresenceStatus, len(s.statuses))
	for id, status := range s.statuses {
		out[id] = status
	}
	return out, s.version
}

// Len returns the number of users with a known status.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.statuses)
}

// Unknown returns the ids from ids that the store has no status for,
// de-duplicated and in first-seen order.
func (s *Store) Unknown(ids []models.UserID) []models.UserID {
	unique := models.UniqueUserIDs(ids)

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := unique[:0]
	for _, id := range unique {
		if _, ok := s.statuses[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Reset clears every entry. Only logout should call this; during a session
// entries are overwritten, never removed.
func (s *Store) Reset() {
	s.mu.Lock()
	cleared := len(s.statuses)
	s.statuses = make(map[models.UserID]models.PresenceStatus)
	change := s.nextChangeLocked(Change{Source: SourceReset, Reset: true})

	metrics.RecordStoreWrite(string(SourceReset), cleared, 0)
	s.notify(change)
}

// Subscribe registers fn for future changes and returns a function that
// removes it. The returned function may be called more than once.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenerMu.Lock()
			delete(s.listeners, id)
			s.listenerMu.Unlock()
		})
	}
}

// Version returns the version of the most recent change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// nextChangeLocked stamps change with the next version and hands the
// notification slot over from mu to notifyMu. The caller must hold mu and
// must call notify afterwards.
func (s *Store) nextChangeLocked(change Change) Change {
	s.version++
	change.Version = s.version
	s.notifyMu.Lock()
	s.mu.Unlock()
	return change
}

// notify delivers change to every listener and releases notifyMu.
func (s *Store) notify(change Change) {
	defer s.notifyMu.Unlock()

	s.listenerMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn(change)
	}
}
