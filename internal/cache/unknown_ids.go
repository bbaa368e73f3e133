// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package cache

import (
	"sync"
	"time"

	"github.com/tomtom215/chatpresence/internal/models"
)

// Defaults for NewUnknownIDs.
const (
	DefaultUnknownCapacity = 10000
	DefaultUnknownTTL      = 30 * time.Second
)

type unknownEntry struct {
	id        models.UserID
	expiresAt time.Time
	prev      *unknownEntry
	next      *unknownEntry
}

// UnknownIDs is a thread-safe LRU set of user ids with a per-entry TTL.
// Mark, Contains and Forget are O(1); when capacity is reached the least
// recently marked id is evicted. Expired entries are dropped lazily.
type UnknownIDs struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time

	items map[models.UserID]*unknownEntry

	// head.next is the most recently marked id, tail.prev the oldest.
	head *unknownEntry
	tail *unknownEntry

	hits   int64
	misses int64
}

// NewUnknownIDs creates a set. Non-positive capacity or ttl use the defaults.
func NewUnknownIDs(capacity int, ttl time.Duration) *UnknownIDs {
	if capacity <= 0 {
		capacity = DefaultUnknownCapacity
	}
	if ttl <= 0 {
		ttl = DefaultUnknownTTL
	}

	c := &UnknownIDs{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[models.UserID]*unknownEntry),
		head:     &unknownEntry{},
		tail:     &unknownEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Mark records ids as unknown for the TTL, refreshing ids already present.
func (c *UnknownIDs) Mark(ids ...models.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	for _, id := range ids {
		if id == "" {
			continue
		}
		if entry, ok := c.items[id]; ok {
			entry.expiresAt = expiresAt
			c.moveToFront(entry)
			continue
		}
		entry := &unknownEntry{id: id, expiresAt: expiresAt}
		c.addToFront(entry)
		c.items[id] = entry
		for len(c.items) > c.capacity {
			c.evictOldest()
		}
	}
}

// Contains reports whether id was marked and has not expired.
func (c *UnknownIDs) Contains(id models.UserID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.containsLocked(id)
}

func (c *UnknownIDs) containsLocked(id models.UserID) bool {
	entry, ok := c.items[id]
	if !ok {
		c.misses++
		return false
	}
	if c.now().After(entry.expiresAt) {
		c.removeEntry(entry)
		c.misses++
		return false
	}
	c.hits++
	return true
}

// Filter returns the ids that are not currently marked, keeping order.
func (c *UnknownIDs) Filter(ids []models.UserID) []models.UserID {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.UserID, 0, len(ids))
	for _, id := range ids {
		if !c.containsLocked(id) {
			out = append(out, id)
		}
	}
	return out
}

// Forget removes ids from the set.
func (c *UnknownIDs) Forget(ids ...models.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if entry, ok := c.items[id]; ok {
			c.removeEntry(entry)
		}
	}
}

// Len returns the number of entries, expired ones included until they are
// touched.
func (c *UnknownIDs) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes all entries.
func (c *UnknownIDs) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[models.UserID]*unknownEntry)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Stats returns lookup hits, misses and the current size.
func (c *UnknownIDs) Stats() (hits, misses int64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.items)
}

// The helpers below must be called with mu held.

func (c *UnknownIDs) addToFront(entry *unknownEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *UnknownIDs) moveToFront(entry *unknownEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

func (c *UnknownIDs) removeEntry(entry *unknownEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.id)
}

func (c *UnknownIDs) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}
