// Package services – GraphService
//
// This file implements the relationship graph: directed follow edges stored
// as two documents (users/{a}/following/{b} and users/{b}/followers/{a}).
// The pair is written without a transaction. A torn pair (one copy only)
// counts as "following" and is repaired by the next Follow or Unfollow of
// the same pair; the failure that produced it is logged and returned as an
// *EdgeError wrapping ErrPartialEdge.
//
// Observability: all public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"strings"
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

const defaultLookupConcurrency = 8

// FollowView is one entry of a followers/following list with the display
// name resolved at read time.
type FollowView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// GraphService manages follow edges.
type GraphService struct {
	Store    docstore.Store
	Identity IdentityProvider

	// LookupConcurrency bounds live username reads in list queries.
	LookupConcurrency int
	Now               func() time.Time
}

func (s *GraphService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Follow makes followerID follow followeeID. The caller must be
// followerID. Calling it again on a complete, current pair is a no-op;
// a torn or stale pair is rewritten, keeping the surviving timestamp.
func (s *GraphService) Follow(ctx context.Context, followerID, followeeID string) error {
	ctx, span := otel.Tracer("services/GraphService").Start(ctx, "Follow",
		trace.WithAttributes(
			attribute.String("follower.id", followerID),
			attribute.String("followee.id", followeeID),
		),
	)
	defer span.End()

	followerID, followeeID = strings.TrimSpace(followerID), strings.TrimSpace(followeeID)
	if err := checkIDs(followerID, followeeID); err != nil {
		return err
	}
	if followerID == followeeID {
		return ErrSelfFollow
	}
	me, err := requireSelf(ctx, s.Identity, followerID)
	if err != nil {
		return err
	}

	followee, err := repo.GetUser(ctx, s.Store, followeeID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	follower, err := s.ensureUser(ctx, me)
	if err != nil {
		return err
	}

	followingCol := domain.FollowingPath(followerID)
	followersCol := domain.FollowersPath(followeeID)

	outgoing, err := getEdge(ctx, s.Store, followingCol, followeeID)
	if err != nil {
		return err
	}
	incoming, err := getEdge(ctx, s.Store, followersCol, followerID)
	if err != nil {
		return err
	}
	if outgoing != nil && incoming != nil &&
		outgoing.Username == followee.Username && incoming.Username == follower.Username {
		return nil
	}

	ts := s.now()
	for _, e := range []*domain.FollowEdge{outgoing, incoming} {
		if e != nil && !e.Timestamp.IsZero() && e.Timestamp.Before(ts) {
			ts = e.Timestamp
		}
	}

	if err := repo.PutEdge(ctx, s.Store, followingCol, domain.FollowEdge{
		UserID: followeeID, Username: followee.Username, Timestamp: ts,
	}); err != nil {
		return err
	}
	if err := repo.PutEdge(ctx, s.Store, followersCol, domain.FollowEdge{
		UserID: followerID, Username: follower.Username, Timestamp: ts,
	}); err != nil {
		perr := &EdgeError{
			Op: "follow", Follower: followerID, Followee: followeeID,
			Done: docstore.Join(followingCol, followeeID), Failed: docstore.Join(followersCol, followerID),
			Err: err,
		}
		log.Error().Err(err).Str("follower", followerID).Str("followee", followeeID).Msg("follow edge partially written")
		return perr
	}
	log.Debug().Str("follower", followerID).Str("followee", followeeID).Msg("follow")
	return nil
}

// Unfollow deletes both copies of the edge. Missing copies are fine, which
// is what repairs a torn pair.
func (s *GraphService) Unfollow(ctx context.Context, followerID, followeeID string) error {
	ctx, span := otel.Tracer("services/GraphService").Start(ctx, "Unfollow",
		trace.WithAttributes(
			attribute.String("follower.id", followerID),
			attribute.String("followee.id", followeeID),
		),
	)
	defer span.End()

	followerID, followeeID = strings.TrimSpace(followerID), strings.TrimSpace(followeeID)
	if err := checkIDs(followerID, followeeID); err != nil {
		return err
	}
	if _, err := requireSelf(ctx, s.Identity, followerID); err != nil {
		return err
	}

	outPath := docstore.Join(domain.FollowingPath(followerID), followeeID)
	inPath := docstore.Join(domain.FollowersPath(followeeID), followerID)
	outErr := repo.DeleteEdge(ctx, s.Store, domain.FollowingPath(followerID), followeeID)
	inErr := repo.DeleteEdge(ctx, s.Store, domain.FollowersPath(followeeID), followerID)

	switch {
	case outErr == nil && inErr == nil:
		return nil
	case outErr != nil && inErr != nil:
		return errors.Join(outErr, inErr)
	}
	perr := &EdgeError{Op: "unfollow", Follower: followerID, Followee: followeeID, Done: inPath, Failed: outPath, Err: outErr}
	if inErr != nil {
		perr.Done, perr.Failed, perr.Err = outPath, inPath, inErr
	}
	log.Error().Err(perr.Err).Str("follower", followerID).Str("followee", followeeID).Msg("unfollow edge partially deleted")
	return perr
}

// FollowersOf lists who follows userID, newest edge first.
func (s *GraphService) FollowersOf(ctx context.Context, userID string) ([]FollowView, error) {
	ctx, span := otel.Tracer("services/GraphService").Start(ctx, "FollowersOf",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()
	return s.list(ctx, domain.FollowersPath, userID)
}

// FollowingOf lists who userID follows, newest edge first.
func (s *GraphService) FollowingOf(ctx context.Context, userID string) ([]FollowView, error) {
	ctx, span := otel.Tracer("services/GraphService").Start(ctx, "FollowingOf",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()
	return s.list(ctx, domain.FollowingPath, userID)
}

// FollowerIDs returns the ids in userID's followers collection without
// resolving names. It is the follower snapshot used by fan-out.
func (s *GraphService) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	if !domain.ValidID(userID) {
		return nil, ErrInvalidID
	}
	edges, err := repo.ListEdges(ctx, s.Store, domain.FollowersPath(userID))
	if err != nil {
		return nil, err
	}
	return edgeIDs(edges), nil
}

// IsFollowing reports whether either copy of followerID→followeeID exists.
func (s *GraphService) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	if !domain.ValidID(followerID) || !domain.ValidID(followeeID) {
		return false, ErrInvalidID
	}
	out, err := getEdge(ctx, s.Store, domain.FollowingPath(followerID), followeeID)
	if err != nil {
		return false, err
	}
	if out != nil {
		return true, nil
	}
	in, err := getEdge(ctx, s.Store, domain.FollowersPath(followeeID), followerID)
	if err != nil {
		return false, err
	}
	return in != nil, nil
}

// Counts returns the sizes of userID's followers and following collections.
func (s *GraphService) Counts(ctx context.Context, userID string) (followers, following int, err error) {
	if !domain.ValidID(userID) {
		return 0, 0, ErrInvalidID
	}
	if followers, _, err = repo.CollectionStats(ctx, s.Store, domain.FollowersPath(userID)); err != nil {
		return 0, 0, err
	}
	if following, _, err = repo.CollectionStats(ctx, s.Store, domain.FollowingPath(userID)); err != nil {
		return 0, 0, err
	}
	return followers, following, nil
}

func (s *GraphService) list(ctx context.Context, path func(string) string, userID string) ([]FollowView, error) {
	if !domain.ValidID(userID) {
		return nil, ErrInvalidID
	}
	edges, err := repo.ListEdges(ctx, s.Store, path(userID))
	if err != nil {
		return nil, err
	}

	out := make([]FollowView, len(edges))
	names := resolveUsernames(ctx, s.Store, edgeIDs(edges), s.LookupConcurrency)
	for i, e := range edges {
		out[i] = FollowView{
			ID:        e.UserID,
			Username:  displayName(names[e.UserID], e.Username),
			Timestamp: e.Timestamp,
		}
	}
	return out, nil
}

// ensureUser returns the caller's identity document, creating it from the
// identity provider when missing.
func (s *GraphService) ensureUser(ctx context.Context, c domain.Caller) (*domain.UserIdentity, error) {
	u, err := repo.GetUser(ctx, s.Store, c.UserID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	nu := domain.UserIdentity{
		ID:        c.UserID,
		Username:  strings.TrimSpace(c.DisplayName),
		Email:     c.Email,
		CreatedAt: s.now(),
	}
	if nu.Username == "" {
		nu.Username = defaultUsername(c.UserID)
	}
	if err := repo.PutUser(ctx, s.Store, nu); err != nil {
		return nil, err
	}
	return &nu, nil
}

func getEdge(ctx context.Context, st docstore.Store, collection, otherID string) (*domain.FollowEdge, error) {
	e, err := repo.GetEdge(ctx, st, collection, otherID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return e, err
}

func edgeIDs(edges []domain.FollowEdge) []string {
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.UserID
	}
	return ids
}

// resolveUsernames re-reads identity documents concurrently. Unreadable or
// missing identities are absent from the result.
func resolveUsernames(ctx context.Context, st docstore.Store, ids []string, limit int) map[string]string {
	if limit <= 0 {
		limit = defaultLookupConcurrency
	}
	names := make(map[string]string, len(ids))
	results := make([]string, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			u, err := repo.GetUser(gctx, st, id)
			if err != nil {
				if !errors.Is(err, repo.ErrNotFound) {
					log.Debug().Err(err).Str("user", id).Msg("live username lookup failed")
				}
				return nil
			}
			results[i] = u.Username
			return nil
		})
	}
	_ = g.Wait()

	for i, id := range ids {
		if results[i] != "" {
			names[id] = results[i]
		}
	}
	return names
}

// displayName prefers the live name, then the snapshot, then UnknownUser.
func displayName(live, snapshot string) string {
	if strings.TrimSpace(live) != "" {
		return live
	}
	if strings.TrimSpace(snapshot) != "" {
		return snapshot
	}
	return domain.UnknownUser
}
