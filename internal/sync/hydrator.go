// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package sync

import (
	"context"
	"fmt"

	"github.com/tomtom215/chatpresence/internal/cache"
	"github.com/tomtom215/chatpresence/internal/models"
	"github.com/tomtom215/chatpresence/internal/presence"
)

// Hydrator fills the store from the batch status endpoint.
//
// Hydration is not ordered against live channel events. A fetch that was in
// flight while a UserStatusChanged arrived can overwrite the newer live
// value; the next live event for that user corrects it.
type Hydrator struct {
	fetcher StatusFetcher
	store   *presence.Store
	unknown *cache.UnknownIDs
}

// NewHydrator creates a hydrator writing into store.
func NewHydrator(fetcher StatusFetcher, store *presence.Store) *Hydrator {
	return &Hydrator{fetcher: fetcher, store: store}
}

// WithUnknownCache makes HydrateMissing skip ids that a previous fetch did
// not answer until they expire from c. Hydrate always asks the backend.
func (h *Hydrator) WithUnknownCache(c *cache.UnknownIDs) *Hydrator {
	h.unknown = c
	return h
}

// Hydrate fetches statuses for ids and writes them as one batch. On error the
// store is left untouched. It returns the entries that were written.
func (h *Hydrator) Hydrate(ctx context.Context, ids []models.UserID) ([]models.StatusEntry, error) {
	entries, err := h.fetcher.FetchStatuses(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate %d users: %w", len(ids), err)
	}
	h.store.SetStatuses(entries, presence.SourceHydration)
	h.recordUnanswered(ids, entries)
	return entries, nil
}

// HydrateMissing hydrates only the ids the store does not know yet.
func (h *Hydrator) HydrateMissing(ctx context.Context, ids []models.UserID) ([]models.StatusEntry, error) {
	missing := h.store.Unknown(ids)
	if h.unknown != nil {
		missing = h.unknown.Filter(missing)
	}
	if len(missing) == 0 {
		return []models.StatusEntry{}, nil
	}
	return h.Hydrate(ctx, missing)
}

// recordUnanswered marks requested ids missing from entries as unknown and
// clears the mark for ids that were answered.
func (h *Hydrator) recordUnanswered(ids []models.UserID, entries []models.StatusEntry) {
	if h.unknown == nil {
		return
	}
	answered := make(map[models.UserID]struct{}, len(entries))
	for _, e := range entries {
		answered[e.UserID] = struct{}{}
		h.unknown.Forget(e.UserID)
	}
	var unanswered []models.UserID
	for _, id := range ids {
		if _, ok := answered[id]; !ok {
			unanswered = append(unanswered, id)
		}
	}
	h.unknown.Mark(unanswered...)
}
