// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package audit

import (
	"context"
	"sync"
)

// DefaultMaxEvents is the MemoryStore capacity when none is given.
const DefaultMaxEvents = 1000

// MemoryStore implements Store with a fixed-size ring. Data is lost on
// restart.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	next   int
	full   bool
}

// NewMemoryStore creates a store keeping the newest maxLen events.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = DefaultMaxEvents
	}
	return &MemoryStore{events: make([]Event, maxLen)}
}

// Save appends an event, overwriting the oldest one when full.
func (s *MemoryStore) Save(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[s.next] = *event
	s.next = (s.next + 1) % len(s.events)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

// Query returns events matching the filter, newest first.
func (s *MemoryStore) Query(_ context.Context, filter QueryFilter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []Event{}
	s.eachNewest(func(event *Event) bool {
		if !matchesFilter(event, &filter) {
			return true
		}
		results = append(results, *event)
		return filter.Limit <= 0 || len(results) < filter.Limit
	})
	return results, nil
}

// Count returns the number of events matching the filter. Limit is ignored.
func (s *MemoryStore) Count(_ context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	s.eachNewest(func(event *Event) bool {
		if matchesFilter(event, &filter) {
			count++
		}
		return true
	})
	return count, nil
}

// Len returns the number of events in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.full {
		return len(s.events)
	}
	return s.next
}

// eachNewest walks stored events newest first until fn returns false.
// Callers hold mu.
func (s *MemoryStore) eachNewest(fn func(*Event) bool) {
	n := s.next
	if s.full {
		n = len(s.events)
	}
	for i := 0; i < n; i++ {
		idx := (s.next - 1 - i + len(s.events)) % len(s.events)
		if !fn(&s.events[idx]) {
			return
		}
	}
}

func matchesFilter(event *Event, filter *QueryFilter) bool {
	if len(filter.Types) > 0 {
		found := false
		for _, t := range filter.Types {
			if event.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.UserID != "" && event.UserID != filter.UserID {
		return false
	}
	if filter.Since != nil && event.Timestamp.Before(*filter.Since) {
		return false
	}
	return true
}
