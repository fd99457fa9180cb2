// Package repo implements the data persistence layer for domain entities on
// top of a docstore.Store. This file provides the aggregate behind profile
// follower counters.
package repo

import (
	"context"
	"time"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
)

// CollectionStats returns the number of documents in collection and the
// greatest UpdateTime among them.
//
// Return values:
//   - count:        documents in the collection
//   - maxUpdatedAt: pointer to the greatest UpdateTime, or nil if empty
//   - err:          store error, if any
func CollectionStats(ctx context.Context, st docstore.Store, collection string) (count int, maxUpdatedAt *time.Time, err error) {
	snaps, err := st.List(ctx, docstore.Query{Collection: collection})
	if err != nil {
		return 0, nil, err
	}
	for _, s := range snaps {
		if maxUpdatedAt == nil || s.UpdateTime.After(*maxUpdatedAt) {
			ts := s.UpdateTime
			maxUpdatedAt = &ts
		}
	}
	return len(snaps), maxUpdatedAt, nil
}
