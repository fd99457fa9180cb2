// Package repo implements the data persistence layer for domain entities on
// top of a docstore.Store. This file provides repository helpers for the
// idempotency markers used to implement safe-retry semantics for POST
// endpoints. Markers live at users/{uid}/idempotency/{key}.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/domain"
)

// ErrDuplicate indicates that an unexpired marker already exists for the
// given (user, key) pair.
var ErrDuplicate = errors.New("duplicate")

// GetIdempotency returns a non-expired marker or ErrNotFound.
func GetIdempotency(ctx context.Context, st docstore.Store, userID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	snap, err := st.Get(ctx, docstore.Join(domain.IdempotencyPath(userID), key))
	if err != nil {
		return nil, err
	}
	var rec domain.Idempotency
	if err := docstore.Decode(snap.Fields, &rec); err != nil {
		return nil, err
	}
	rec.Key = key
	if rec.Expired(now) {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// CreateIdempotency writes a marker pointing at resourceID and returns
// ErrDuplicate when a live one exists. The check and the write are separate
// operations, so two racing first attempts can both succeed.
func CreateIdempotency(ctx context.Context, st docstore.Store, userID, key, resourceID string, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	if _, err := GetIdempotency(ctx, st, userID, key, now); err == nil {
		return nil, ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	rec := &domain.Idempotency{Key: key, ResourceID: resourceID, ExpiresAt: now.Add(ttl)}
	if err := st.Set(ctx, docstore.Join(domain.IdempotencyPath(userID), key), rec.Fields()); err != nil {
		return nil, err
	}
	return rec, nil
}
