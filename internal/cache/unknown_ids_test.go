// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package cache

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/chatpresence/internal/models"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestSet(capacity int, ttl time.Duration) (*UnknownIDs, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := NewUnknownIDs(capacity, ttl)
	c.now = clock.Now
	return c, clock
}

func TestNewUnknownIDs_Defaults(t *testing.T) {
	c := NewUnknownIDs(0, 0)
	if c.capacity != DefaultUnknownCapacity || c.ttl != DefaultUnknownTTL {
		t.Errorf("capacity/ttl = %d/%v", c.capacity, c.ttl)
	}
}

func TestUnknownIDs_MarkAndFilter(t *testing.T) {
	c, _ := newTestSet(10, time.Minute)
	c.Mark("ghost", "", "phantom")

	if c.Len() != 2 {
		t.Errorf("blank ids should be ignored, len = %d", c.Len())
	}
	got := c.Filter([]models.UserID{"alice", "ghost", "bob", "phantom"})
	want := []models.UserID{"alice", "bob"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Filter() = %v, want %v", got, want)
	}
}

func TestUnknownIDs_Expiry(t *testing.T) {
	c, clock := newTestSet(10, 30*time.Second)
	c.Mark("ghost")

	clock.Advance(29 * time.Second)
	if !c.Contains("ghost") {
		t.Fatal("ghost should still be marked")
	}

	clock.Advance(2 * time.Second)
	if c.Contains("ghost") {
		t.Error("ghost should have expired")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be dropped on lookup, len = %d", c.Len())
	}
}

func TestUnknownIDs_MarkRefreshesTTL(t *testing.T) {
	c, clock := newTestSet(10, 30*time.Second)
	c.Mark("ghost")
	clock.Advance(20 * time.Second)
	c.Mark("ghost")
	clock.Advance(20 * time.Second)

	if !c.Contains("ghost") {
		t.Error("re-marking should extend the TTL")
	}
}

func TestUnknownIDs_EvictsOldest(t *testing.T) {
	c, _ := newTestSet(3, time.Minute)
	c.Mark("a", "b", "c")
	c.Mark("a") // a becomes most recent
	c.Mark("d") // evicts b

	if c.Contains("b") {
		t.Error("b should have been evicted")
	}
	for _, id := range []models.UserID{"a", "c", "d"} {
		if !c.Contains(id) {
			t.Errorf("%s should be present", id)
		}
	}
}

func TestUnknownIDs_ForgetAndClear(t *testing.T) {
	c, _ := newTestSet(10, time.Minute)
	c.Mark("a", "b", "c")

	c.Forget("b", "missing")
	if c.Contains("b") || c.Len() != 2 {
		t.Errorf("Forget failed, len = %d", c.Len())
	}

	c.Clear()
	if c.Len() != 0 || c.Contains("a") {
		t.Error("Clear should empty the set")
	}
	c.Mark("e")
	if !c.Contains("e") {
		t.Error("set should be usable after Clear")
	}
}

func TestUnknownIDs_Stats(t *testing.T) {
	c, _ := newTestSet(10, time.Minute)
	c.Mark("a")
	c.Contains("a")
	c.Contains("b")

	hits, misses, size := c.Stats()
	if hits != 1 || misses != 1 || size != 1 {
		t.Errorf("stats = %d/%d/%d", hits, misses, size)
	}
}

func TestUnknownIDs_Concurrent(t *testing.T) {
	c := NewUnknownIDs(100, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := models.UserID(fmt.Sprintf("u-%d-%d", g, i))
				c.Mark(id)
				c.Filter([]models.UserID{id, "other"})
				if i%3 == 0 {
					c.Forget(id)
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 100 {
		t.Errorf("len %d exceeds capacity", c.Len())
	}
}
