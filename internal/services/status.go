// Package services – StatusService
//
// This file implements the per-user played and wishlist collections. An add
// writes (or replaces) the entry keyed by game id and then triggers fan-out
// to the user's followers; a remove deletes the entry and is not broadcast.
// Missing catalog metadata never blocks a write: the name falls back to
// "Unknown Game" and the cover to null.
//
// Fan-out is awaited by default. With Async set it runs on a detached
// context after Add returns; Wait blocks until those background publishes
// finish (used on shutdown and in tests).
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/domain"
	"github.com/tbourn/go-gamesocial-backend/internal/observability"
	"github.com/tbourn/go-gamesocial-backend/internal/repo"
)

// MetadataResolver looks up catalog metadata for a game id.
type MetadataResolver interface {
	Resolve(ctx context.Context, gameID string) (domain.GameSnapshot, error)
}

// StatusService manages played/wishlist entries.
type StatusService struct {
	Store    docstore.Store
	Identity IdentityProvider
	// Catalog is optional; when set it fills a missing name or cover.
	Catalog MetadataResolver
	// Fanout is optional; when nil adds are not broadcast.
	Fanout Publisher
	Async  bool
	Now    func() time.Time

	wg sync.WaitGroup
}

func (s *StatusService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Add stores game in uid's kind collection with addedAt = now and then
// publishes the matching event to uid's followers. The caller must be uid.
// Fan-out failures are logged and never returned.
func (s *StatusService) Add(ctx context.Context, uid string, kind domain.StatusKind, gameID string, game domain.GameSnapshot) (*domain.StatusEntry, error) {
	ctx, span := otel.Tracer("services/StatusService").Start(ctx, "Add",
		trace.WithAttributes(
			attribute.String("user.id", uid),
			attribute.String("status.kind", string(kind)),
			attribute.String("game.id", gameID),
		),
	)
	defer span.End()

	if _, err := requireSelf(ctx, s.Identity, uid); err != nil {
		return nil, err
	}
	if _, err := domain.ParseStatusKind(string(kind)); err != nil {
		return nil, err
	}
	gameID = strings.TrimSpace(gameID)
	if err := checkIDs(gameID); err != nil {
		return nil, err
	}

	game.ID = gameID
	game = s.complete(ctx, game).Normalize()

	entry := domain.StatusEntry{
		GameID:  gameID,
		Name:    game.Name,
		Cover:   game.CoverURL,
		AddedAt: s.now(),
	}
	if err := repo.PutStatus(ctx, s.Store, uid, kind, entry); err != nil {
		return nil, err
	}

	if s.Fanout != nil {
		s.publish(ctx, uid, kind.Event(), game)
	}
	return &entry, nil
}

// complete fills a missing name or cover from the catalog, best-effort.
func (s *StatusService) complete(ctx context.Context, game domain.GameSnapshot) domain.GameSnapshot {
	needName := strings.TrimSpace(game.Name) == ""
	needCover := game.CoverURL == nil || strings.TrimSpace(*game.CoverURL) == ""
	if s.Catalog == nil || (!needName && !needCover) {
		return game
	}
	meta, err := s.Catalog.Resolve(ctx, game.ID)
	if err != nil {
		log.Warn().Err(err).Str("game", game.ID).Msg("catalog metadata unavailable")
		return game
	}
	if needName {
		game.Name = meta.Name
	}
	if needCover {
		game.CoverURL = meta.CoverURL
	}
	return game
}

func (s *StatusService) publish(ctx context.Context, uid string, ev domain.EventKind, game domain.GameSnapshot) {
	run := func(ctx context.Context) {
		res := s.Fanout.Publish(ctx, uid, ev, game)
		if res.Err != nil {
			log.Warn().Err(res.Err).Str("actor", uid).Int("recipients", res.Recipients).Msg("fan-out incomplete")
		}
	}
	if !s.Async {
		run(ctx)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run(context.WithoutCancel(ctx))
	}()
}

// Wait blocks until background fan-outs started by Add have finished.
func (s *StatusService) Wait() { s.wg.Wait() }

// Remove deletes the entry. Removing an absent entry succeeds.
func (s *StatusService) Remove(ctx context.Context, uid string, kind domain.StatusKind, gameID string) error {
	ctx, span := otel.Tracer("services/StatusService").Start(ctx, "Remove",
		trace.WithAttributes(
			attribute.String("user.id", uid),
			attribute.String("status.kind", string(kind)),
			attribute.String("game.id", gameID),
		),
	)
	defer span.End()

	if _, err := requireSelf(ctx, s.Identity, uid); err != nil {
		return err
	}
	if _, err := domain.ParseStatusKind(string(kind)); err != nil {
		return err
	}
	if !domain.ValidID(gameID) {
		return ErrInvalidID
	}
	return repo.DeleteStatus(ctx, s.Store, uid, kind, strings.TrimSpace(gameID))
}

// Contains reads the entry document directly, so it reflects the latest
// completed Add/Remove.
func (s *StatusService) Contains(ctx context.Context, uid string, kind domain.StatusKind, gameID string) (bool, error) {
	if !domain.ValidID(uid) || !domain.ValidID(gameID) {
		return false, ErrInvalidID
	}
	if _, err := domain.ParseStatusKind(string(kind)); err != nil {
		return false, err
	}
	_, err := repo.GetStatus(ctx, s.Store, uid, kind, strings.TrimSpace(gameID))
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Toggle removes the entry when present and adds it otherwise, returning
// whether the game is now in the collection.
func (s *StatusService) Toggle(ctx context.Context, uid string, kind domain.StatusKind, game domain.GameSnapshot) (bool, error) {
	if _, err := requireSelf(ctx, s.Identity, uid); err != nil {
		return false, err
	}
	present, err := s.Contains(ctx, uid, kind, game.ID)
	if err != nil {
		return false, err
	}
	if present {
		return false, s.Remove(ctx, uid, kind, game.ID)
	}
	if _, err := s.Add(ctx, uid, kind, game.ID, game); err != nil {
		return false, err
	}
	return true, nil
}

// List returns uid's entries newest first; limit <= 0 means all.
func (s *StatusService) List(ctx context.Context, uid string, kind domain.StatusKind, limit int) ([]domain.StatusEntry, error) {
	if !domain.ValidID(uid) {
		return nil, ErrInvalidID
	}
	if _, err := domain.ParseStatusKind(string(kind)); err != nil {
		return nil, err
	}
	return repo.ListStatus(ctx, s.Store, uid, kind, limit)
}

// Observe streams uid's entries newest first, pushing a new list after
// every change. The returned stream must be closed by the caller.
func (s *StatusService) Observe(ctx context.Context, uid string, kind domain.StatusKind) (*StatusStream, error) {
	if !domain.ValidID(uid) {
		return nil, ErrInvalidID
	}
	if _, err := domain.ParseStatusKind(string(kind)); err != nil {
		return nil, err
	}
	sub, err := s.Store.Subscribe(ctx, repo.StatusQuery(uid, kind, 0))
	if err != nil {
		return nil, err
	}
	done := observability.TrackSubscription("status")
	st := newStream(sub, repo.DecodeStatus)
	go func() { <-st.Done(); done() }()
	return st, nil
}
