// Package repo implements the data persistence layer for domain entities on
// top of a docstore.Store. This file provides the follow-edge functions.
//
// A follow relation a→b is stored twice: users/{a}/following/{b} and
// users/{b}/followers/{a}. The functions here address one copy at a time
// through its collection path (domain.FollowersPath / domain.FollowingPath);
// keeping both copies in step is the caller's job.
package repo

import (
	"context"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/domain"
)

// GetEdge reads the edge describing otherID inside collection.
func GetEdge(ctx context.Context, st docstore.Store, collection, otherID string) (*domain.FollowEdge, error) {
	snap, err := st.Get(ctx, docstore.Join(collection, otherID))
	if err != nil {
		return nil, err
	}
	return decodeEdge(snap)
}

// PutEdge writes e into collection, keyed by e.UserID.
func PutEdge(ctx context.Context, st docstore.Store, collection string, e domain.FollowEdge) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return st.Set(ctx, docstore.Join(collection, e.UserID), e.Fields())
}

// DeleteEdge removes the edge describing otherID. Missing edges are not an
// error.
func DeleteEdge(ctx context.Context, st docstore.Store, collection, otherID string) error {
	return st.Delete(ctx, docstore.Join(collection, otherID))
}

// ListEdges returns every edge in collection, newest first.
func ListEdges(ctx context.Context, st docstore.Store, collection string) ([]domain.FollowEdge, error) {
	snaps, err := st.List(ctx, docstore.Query{Collection: collection, OrderBy: "timestamp", Desc: true})
	if err != nil {
		return nil, err
	}
	out := make([]domain.FollowEdge, 0, len(snaps))
	for _, s := range snaps {
		e, err := decodeEdge(s)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

func decodeEdge(s docstore.Snapshot) (*domain.FollowEdge, error) {
	var e domain.FollowEdge
	if err := docstore.Decode(s.Fields, &e); err != nil {
		return nil, err
	}
	e.UserID = s.ID
	return &e, nil
}
