// Package services – FanoutService
//
// This file implements notification fan-out on write: when a user adds a
// game to played or wishlist, one NotificationRecord is appended to the
// inbox of every current follower. Writes are independent; a failed inbox
// does not stop the others and never affects the triggering status change.
// Failures are logged per follower and reported in FanoutResult.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/domain"
	"github.com/tbourn/go-gamesocial-backend/internal/observability"
	"github.com/tbourn/go-gamesocial-backend/internal/repo"
)

const (
	defaultFanoutConcurrency  = 16
	defaultFanoutWriteTimeout = 5 * time.Second
)

// FollowerSource yields the follower snapshot of an actor.
type FollowerSource interface {
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
}

// Publisher is the fan-out contract consumed by StatusService.
type Publisher interface {
	Publish(ctx context.Context, actorID string, kind domain.EventKind, game domain.GameSnapshot) FanoutResult
}

// FanoutResult summarizes one publish.
type FanoutResult struct {
	Recipients int
	Delivered  []string
	Failed     map[string]error
	// Err is set when the follower lookup failed (nothing was sent) or
	// when some deliveries failed (*FanoutError).
	Err error
}

// FanoutService writes notification records into follower inboxes.
type FanoutService struct {
	Store     docstore.Store
	Followers FollowerSource

	// Concurrency bounds in-flight inbox writes.
	Concurrency int
	// WriteTimeout bounds each inbox write.
	WriteTimeout time.Duration
	Now          func() time.Time
}

// Publish notifies every follower of actorID. The follower set is the one
// observed at call time.
func (s *FanoutService) Publish(ctx context.Context, actorID string, kind domain.EventKind, game domain.GameSnapshot) FanoutResult {
	ctx, span := otel.Tracer("services/FanoutService").Start(ctx, "Publish",
		trace.WithAttributes(
			attribute.String("actor.id", actorID),
			attribute.String("event", string(kind)),
			attribute.String("game.id", game.ID),
		),
	)
	defer span.End()
	start := time.Now()

	if _, err := domain.ParseEventKind(string(kind)); err != nil {
		return FanoutResult{Err: err}
	}
	if err := checkIDs(actorID, game.ID); err != nil {
		return FanoutResult{Err: err}
	}
	game = game.Normalize()

	followers, err := s.Followers.FollowerIDs(ctx, actorID)
	if err != nil {
		log.Error().Err(err).Str("actor", actorID).Msg("fan-out follower lookup failed")
		span.SetStatus(codes.Error, err.Error())
		return FanoutResult{Err: err}
	}

	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	rec := domain.NotificationRecord{
		Type:      kind,
		UserID:    actorID,
		GameID:    game.ID,
		GameName:  game.Name,
		GameCover: game.CoverURL,
		Timestamp: now,
	}

	res := FanoutResult{Recipients: len(followers)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(orDefault(s.Concurrency, defaultFanoutConcurrency))
	for _, f := range followers {
		g.Go(func() error {
			err := s.deliver(ctx, f, rec)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if res.Failed == nil {
					res.Failed = make(map[string]error)
				}
				res.Failed[f] = err
				log.Warn().Err(err).Str("actor", actorID).Str("follower", f).Str("game", game.ID).
					Msg("notification delivery failed")
				return nil
			}
			res.Delivered = append(res.Delivered, f)
			return nil
		})
	}
	_ = g.Wait()

	observability.ObserveFanout(len(res.Delivered), len(res.Failed), time.Since(start))
	span.SetAttributes(
		attribute.Int("fanout.recipients", res.Recipients),
		attribute.Int("fanout.failed", len(res.Failed)),
	)
	if len(res.Failed) > 0 {
		res.Err = &FanoutError{Actor: actorID, Failed: res.Failed}
		span.SetStatus(codes.Error, res.Err.Error())
	}
	return res
}

func (s *FanoutService) deliver(ctx context.Context, follower string, rec domain.NotificationRecord) error {
	wctx, cancel := context.WithTimeout(ctx, orDefaultDur(s.WriteTimeout, defaultFanoutWriteTimeout))
	defer cancel()

	_, err := repo.AddNotification(wctx, s.Store, follower, rec)
	return err
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orDefaultDur(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}
