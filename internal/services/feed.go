// Package services – FeedService
//
// This file implements the activity feed, the fan-out-on-read counterpart
// of the inbox: the user's own and each followed user's played/wishlist
// entries merged into one newest-first list.
package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/domain"
	"github.com/tbourn/go-gamesocial-backend/internal/repo"
)

// ActivityItem is one feed line, e.g. "alice · Played · Hades".
type ActivityItem struct {
	UserID   string            `json:"user_id"`
	Username string            `json:"username"`
	GameID   string            `json:"game_id"`
	GameName string            `json:"game_name"`
	Cover    *string           `json:"cover"`
	Kind     domain.StatusKind `json:"kind"`
	Label    string            `json:"label"`
	AddedAt  time.Time         `json:"added_at"`
}

// FeedService builds activity feeds.
type FeedService struct {
	Store docstore.Store
	// PerUserLimit caps entries read per user and kind; 0 means all.
	PerUserLimit int
	Concurrency  int
}

// Activity returns up to limit items (0 = all) for uid and everyone uid
// follows, newest first, one item per (user, game, kind).
func (s *FeedService) Activity(ctx context.Context, uid string, limit int) ([]ActivityItem, error) {
	ctx, span := otel.Tracer("services/FeedService").Start(ctx, "Activity",
		trace.WithAttributes(attribute.String("user.id", uid), attribute.Int("limit", limit)),
	)
	defer span.End()

	if !domain.ValidID(uid) {
		return nil, ErrInvalidID
	}
	following, err := repo.ListEdges(ctx, s.Store, domain.FollowingPath(uid))
	if err != nil {
		return nil, err
	}

	snapshots := map[string]string{uid: ""}
	ids := []string{uid}
	for _, e := range following {
		if _, dup := snapshots[e.UserID]; dup {
			continue
		}
		snapshots[e.UserID] = e.Username
		ids = append(ids, e.UserID)
	}
	return s.collect(ctx, ids, snapshots, limit)
}

// UserActivity returns up to limit of uid's own items, newest first.
func (s *FeedService) UserActivity(ctx context.Context, uid string, limit int) ([]ActivityItem, error) {
	ctx, span := otel.Tracer("services/FeedService").Start(ctx, "UserActivity",
		trace.WithAttributes(attribute.String("user.id", uid), attribute.Int("limit", limit)),
	)
	defer span.End()

	if !domain.ValidID(uid) {
		return nil, ErrInvalidID
	}
	return s.collect(ctx, []string{uid}, map[string]string{uid: ""}, limit)
}

// collect reads both collections of every id and merges them.
func (s *FeedService) collect(ctx context.Context, ids []string, snapshots map[string]string, limit int) ([]ActivityItem, error) {
	names := resolveUsernames(ctx, s.Store, ids, s.Concurrency)

	var (
		mu    sync.Mutex
		items []ActivityItem
		seen  = make(map[string]struct{})
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(orDefault(s.Concurrency, defaultLookupConcurrency))
	for _, id := range ids {
		for _, kind := range []domain.StatusKind{domain.StatusPlayed, domain.StatusWishlist} {
			g.Go(func() error {
				entries, err := repo.ListStatus(gctx, s.Store, id, kind, s.PerUserLimit)
				if err != nil {
					return err
				}
				name := displayName(names[id], snapshots[id])
				mu.Lock()
				defer mu.Unlock()
				for _, e := range entries {
					key := id + "|" + e.GameID + "|" + string(kind)
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
					items = append(items, ActivityItem{
						UserID:   id,
						Username: name,
						GameID:   e.GameID,
						GameName: e.Name,
						Cover:    e.Cover,
						Kind:     kind,
						Label:    kind.Label(),
						AddedAt:  e.AddedAt,
					})
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Str("user", ids[0]).Msg("activity feed read failed")
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].AddedAt.After(items[j].AddedAt)
		}
		if items[i].UserID != items[j].UserID {
			return items[i].UserID < items[j].UserID
		}
		if items[i].GameID != items[j].GameID {
			return items[i].GameID < items[j].GameID
		}
		return items[i].Kind < items[j].Kind
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
