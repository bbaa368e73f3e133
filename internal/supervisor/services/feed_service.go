// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package services

import (
	"context"

	ws "github.com/tomtom215/chatpresence/internal/websocket"
)

// FeedService runs the live feed hub and keeps the feed attached to the
// store and the session while the hub runs. A restart re-attaches, so no
// subscription outlives the hub loop that drains it.
type FeedService struct {
	feed *ws.Feed
	name string
}

// NewFeedService creates a supervised live feed.
func NewFeedService(feed *ws.Feed) *FeedService {
	return &FeedService{feed: feed, name: "live-feed"}
}

// Serve implements suture.Service.
func (f *FeedService) Serve(ctx context.Context) error {
	detach := f.feed.Attach()
	defer detach()
	return f.feed.Hub().RunWithContext(ctx)
}

// String implements fmt.Stringer for suture's log messages.
func (f *FeedService) String() string {
	return f.name
}
