// Package repo implements the data persistence layer for domain entities on
// top of a docstore.Store. This file provides the played/wishlist status
// entry functions for users/{uid}/{played|wishlist}/{gameId}.
package repo

import (
	"context"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/domain"
)

// StatusQuery selects a user's status entries, most recently added first.
func StatusQuery(uid string, kind domain.StatusKind, limit int) docstore.Query {
	return docstore.Query{
		Collection: domain.StatusPath(uid, kind),
		OrderBy:    "addedAt",
		Desc:       true,
		Limit:      limit,
	}
}

// GetStatus reads one entry.
func GetStatus(ctx context.Context, st docstore.Store, uid string, kind domain.StatusKind, gameID string) (*domain.StatusEntry, error) {
	snap, err := st.Get(ctx, docstore.Join(domain.StatusPath(uid, kind), gameID))
	if err != nil {
		return nil, err
	}
	var e domain.StatusEntry
	if err := docstore.Decode(snap.Fields, &e); err != nil {
		return nil, err
	}
	e.GameID = snap.ID
	return &e, nil
}

// PutStatus creates or replaces the entry keyed by e.GameID.
func PutStatus(ctx context.Context, st docstore.Store, uid string, kind domain.StatusKind, e domain.StatusEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return st.Set(ctx, docstore.Join(domain.StatusPath(uid, kind), e.GameID), e.Fields())
}

// DeleteStatus removes an entry; missing entries are not an error.
func DeleteStatus(ctx context.Context, st docstore.Store, uid string, kind domain.StatusKind, gameID string) error {
	return st.Delete(ctx, docstore.Join(domain.StatusPath(uid, kind), gameID))
}

// ListStatus runs StatusQuery once.
func ListStatus(ctx context.Context, st docstore.Store, uid string, kind domain.StatusKind, limit int) ([]domain.StatusEntry, error) {
	snaps, err := st.List(ctx, StatusQuery(uid, kind, limit))
	if err != nil {
		return nil, err
	}
	return DecodeStatus(snaps)
}

// DecodeStatus converts snapshots of a status collection. The document id
// is authoritative for the game id.
func DecodeStatus(snaps []docstore.Snapshot) ([]domain.StatusEntry, error) {
	out := make([]domain.StatusEntry, 0, len(snaps))
	for _, s := range snaps {
		var e domain.StatusEntry
		if err := docstore.Decode(s.Fields, &e); err != nil {
			return nil, err
		}
		e.GameID = s.ID
		out = append(out, e)
	}
	return out, nil
}
