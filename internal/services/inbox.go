// Package services – InboxService
//
// This file implements the recipient side of fan-out: a user's inbox as a
// live, newest-first sequence of NotificationRecords, plus rendering to
// display text with actor names resolved at read time. Only the owner may
// read or prune an inbox.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/domain"
	"github.com/tbourn/go-gamesocial-backend/internal/observability"
	"github.com/tbourn/go-gamesocial-backend/internal/repo"
)

// UnknownActivity is the text for notification types without a mapping.
const UnknownActivity = "Unknown activity"

// RenderedNotification is a record with its display text.
type RenderedNotification struct {
	domain.NotificationRecord
	ActorName string `json:"actor_name"`
	Text      string `json:"text"`
}

// InboxService reads and maintains notification inboxes.
type InboxService struct {
	Store    docstore.Store
	Identity IdentityProvider
	// Cap bounds what the owner sees and keeps: reads return at most Cap
	// records and List trims anything older. Zero keeps everything.
	Cap int
	// LookupConcurrency bounds actor name reads in ListRendered.
	LookupConcurrency int
}

// Render maps a record to display text.
//
//	added_to_played   → "{actor} added {game} to their played games"
//	added_to_wishlist → "{actor} added {game} to their wishlist"
//	anything else     → "Unknown activity"
func Render(rec domain.NotificationRecord, actorName string) string {
	actor := displayName(actorName, "")
	game := rec.GameName
	if strings.TrimSpace(game) == "" {
		game = domain.UnknownGame
	}
	switch rec.Type {
	case domain.EventAddedToPlayed:
		return fmt.Sprintf("%s added %s to their played games", actor, game)
	case domain.EventAddedToWishlist:
		return fmt.Sprintf("%s added %s to their wishlist", actor, game)
	}
	return UnknownActivity
}

// Observe streams uid's inbox newest first. The caller must be uid and must
// close the stream.
func (s *InboxService) Observe(ctx context.Context, uid string) (*InboxStream, error) {
	if _, err := requireSelf(ctx, s.Identity, uid); err != nil {
		return nil, err
	}
	sub, err := s.Store.Subscribe(ctx, repo.NotificationsQuery(uid, s.Cap))
	if err != nil {
		return nil, err
	}
	done := observability.TrackSubscription("inbox")
	st := newStream(sub, repo.DecodeNotifications)
	go func() { <-st.Done(); done() }()
	return st, nil
}

// List returns up to limit records (limit <= 0 or above Cap means Cap),
// newest first. The owner's read is also where retention happens: when the
// inbox holds more than Cap records the overflow is deleted, best-effort.
// Fan-out only ever appends.
func (s *InboxService) List(ctx context.Context, uid string, limit int) ([]domain.NotificationRecord, error) {
	ctx, span := otel.Tracer("services/InboxService").Start(ctx, "List",
		trace.WithAttributes(attribute.String("user.id", uid), attribute.Int("limit", limit)),
	)
	defer span.End()

	if _, err := requireSelf(ctx, s.Identity, uid); err != nil {
		return nil, err
	}
	if s.Cap <= 0 {
		return repo.ListNotifications(ctx, s.Store, uid, limit)
	}

	// one record past the cap tells whether anything needs trimming
	recs, err := repo.ListNotifications(ctx, s.Store, uid, s.Cap+1)
	if err != nil {
		return nil, err
	}
	if len(recs) > s.Cap {
		recs = recs[:s.Cap]
		if n, err := repo.PruneNotifications(ctx, s.Store, uid, s.Cap); err != nil {
			log.Warn().Err(err).Str("user", uid).Msg("inbox trim failed")
		} else {
			log.Debug().Str("user", uid).Int("removed", n).Msg("inbox trimmed")
		}
	}
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	return recs, nil
}

// ListRendered is List plus display text, with each actor's current
// username read once per call.
func (s *InboxService) ListRendered(ctx context.Context, uid string, limit int) ([]RenderedNotification, error) {
	recs, err := s.List(ctx, uid, limit)
	if err != nil {
		return nil, err
	}
	return s.RenderAll(ctx, recs), nil
}

// RenderAll renders recs, resolving each distinct actor once.
func (s *InboxService) RenderAll(ctx context.Context, recs []domain.NotificationRecord) []RenderedNotification {
	seen := make(map[string]struct{}, len(recs))
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		if _, ok := seen[r.UserID]; !ok && r.UserID != "" {
			seen[r.UserID] = struct{}{}
			ids = append(ids, r.UserID)
		}
	}
	names := resolveUsernames(ctx, s.Store, ids, s.LookupConcurrency)

	out := make([]RenderedNotification, len(recs))
	for i, r := range recs {
		name := displayName(names[r.UserID], "")
		out[i] = RenderedNotification{NotificationRecord: r, ActorName: name, Text: Render(r, name)}
	}
	return out
}

// Prune trims uid's inbox to the newest Cap records. A zero Cap keeps
// everything.
func (s *InboxService) Prune(ctx context.Context, uid string) (int, error) {
	if _, err := requireSelf(ctx, s.Identity, uid); err != nil {
		return 0, err
	}
	if s.Cap <= 0 {
		return 0, nil
	}
	return repo.PruneNotifications(ctx, s.Store, uid, s.Cap)
}
