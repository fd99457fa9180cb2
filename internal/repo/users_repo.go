// Package repo implements the data persistence layer for domain entities on
// top of a docstore.Store. This file provides repository functions for the
// user identity documents at users/{uid}.
//
// All functions are context-aware and accept a docstore.Store handle.
// They follow the "thin repository" approach: no business logic, only
// path construction, record validation and decoding.
//
// Error semantics:
//   - When a document is not found, functions return ErrNotFound
//     (an alias of docstore.ErrNotFound).
//   - Records that fail Validate() are rejected before any write.
//   - Store and decode errors are propagated unchanged.
//
// This repository is designed to be wrapped by the services package, which
// enforces authorization, fallbacks and cross-document behavior.
package repo

import (
	"context"
	"strings"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/domain"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = docstore.ErrNotFound

// GetUser reads the identity document of uid.
func GetUser(ctx context.Context, st docstore.Store, uid string) (*domain.UserIdentity, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, domain.ErrMissingID
	}
	snap, err := st.Get(ctx, domain.UserPath(uid))
	if err != nil {
		return nil, err
	}
	var u domain.UserIdentity
	if err := docstore.Decode(snap.Fields, &u); err != nil {
		return nil, err
	}
	u.ID = uid
	return &u, nil
}

// PutUser creates or replaces the identity document of u.ID.
func PutUser(ctx context.Context, st docstore.Store, u domain.UserIdentity) error {
	if err := u.Validate(); err != nil {
		return err
	}
	return st.Set(ctx, domain.UserPath(u.ID), u.Fields())
}

// ListUsers returns identities ordered by username.
func ListUsers(ctx context.Context, st docstore.Store, limit int) ([]domain.UserIdentity, error) {
	snaps, err := st.List(ctx, docstore.Query{
		Collection: domain.UsersCollection,
		OrderBy:    "username",
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserIdentity, 0, len(snaps))
	for _, s := range snaps {
		var u domain.UserIdentity
		if err := docstore.Decode(s.Fields, &u); err != nil {
			return nil, err
		}
		u.ID = s.ID
		out = append(out, u)
	}
	return out, nil
}
