// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package audit

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryStore_RingKeepsNewest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3)

	for i := 0; i < 5; i++ {
		if err := store.Save(ctx, &Event{ID: fmt.Sprintf("e%d", i), Type: EventTypeChannelState}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	if store.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", store.Len())
	}
	events, err := store.Query(ctx, QueryFilter{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	var ids []string
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	if fmt.Sprint(ids) != "[e4 e3 e2]" {
		t.Errorf("ids = %v, want newest first [e4 e3 e2]", ids)
	}
}

func TestMemoryStore_Filters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	events := []Event{
		{ID: "1", Type: EventTypeSignedIn, UserID: "alice", Timestamp: base},
		{ID: "2", Type: EventTypeChannelState, UserID: "alice", Timestamp: base.Add(time.Minute)},
		{ID: "3", Type: EventTypeSignedIn, UserID: "bob", Timestamp: base.Add(2 * time.Minute)},
		{ID: "4", Type: EventTypeChannelState, UserID: "bob", Timestamp: base.Add(3 * time.Minute)},
	}
	for i := range events {
		_ = store.Save(ctx, &events[i])
	}

	since := base.Add(90 * time.Second)
	tests := []struct {
		name   string
		filter QueryFilter
		want   string
	}{
		{"all", QueryFilter{}, "[4 3 2 1]"},
		{"type", QueryFilter{Types: []EventType{EventTypeSignedIn}}, "[3 1]"},
		{"user", QueryFilter{UserID: "alice"}, "[2 1]"},
		{"since", QueryFilter{Since: &since}, "[4 3]"},
		{"limit", QueryFilter{Limit: 1}, "[4]"},
		{"combined", QueryFilter{Types: []EventType{EventTypeChannelState}, UserID: "bob"}, "[4]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := store.Query(ctx, tt.filter)
			var ids []string
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			if fmt.Sprint(ids) != tt.want {
				t.Errorf("ids = %v, want %s", ids, tt.want)
			}

			count, _ := store.Count(ctx, QueryFilter{Types: tt.filter.Types, UserID: tt.filter.UserID, Since: tt.filter.Since})
			if tt.filter.Limit == 0 && int(count) != len(got) {
				t.Errorf("Count() = %d, want %d", count, len(got))
			}
		})
	}
}

func TestMemoryStore_EmptyQuery(t *testing.T) {
	events, err := NewMemoryStore(4).Query(context.Background(), DefaultQueryFilter())
	if err != nil || events == nil || len(events) != 0 {
		t.Errorf("Query() = %v, %v; want empty non-nil slice", events, err)
	}
}
