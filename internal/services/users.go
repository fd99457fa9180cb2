// Package services – UserService
//
// This file implements the user directory: profile bootstrap on first
// sign-in, renaming, lookup and username search. Follow edges keep a
// username snapshot, so a rename shows up immediately in list queries (they
// re-read identities) and in edge snapshots on the next follow.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/domain"
	"github.com/tbourn/go-gamesocial-backend/internal/repo"
	"github.com/tbourn/go-gamesocial-backend/internal/search"
)

const maxUsernameRunes = 40

// UserService manages identity documents.
type UserService struct {
	Store    docstore.Store
	Identity IdentityProvider
	// SearchScan caps how many identities a search ranks; 0 means all.
	SearchScan int
	Now        func() time.Time
}

func (s *UserService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// EnsureProfile returns the caller's identity document, creating it from
// the identity provider on first use.
func (s *UserService) EnsureProfile(ctx context.Context) (*domain.UserIdentity, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "EnsureProfile")
	defer span.End()

	c, err := caller(ctx, s.Identity)
	if err != nil {
		return nil, err
	}
	g := &GraphService{Store: s.Store, Now: s.Now}
	return g.ensureUser(ctx, c)
}

// Rename changes the caller's display name.
func (s *UserService) Rename(ctx context.Context, username string) (*domain.UserIdentity, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "Rename")
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" || utf8.RuneCountInString(username) > maxUsernameRunes {
		return nil, ErrInvalidUsername
	}
	u, err := s.EnsureProfile(ctx)
	if err != nil {
		return nil, err
	}
	u.Username = username
	if err := repo.PutUser(ctx, s.Store, *u); err != nil {
		return nil, err
	}
	return u, nil
}

// Get reads a user's identity document.
func (s *UserService) Get(ctx context.Context, uid string) (*domain.UserIdentity, error) {
	if !domain.ValidID(uid) {
		return nil, ErrInvalidID
	}
	u, err := repo.GetUser(ctx, s.Store, uid)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// Search finds users whose username contains q, case-insensitively, best
// match first.
func (s *UserService) Search(ctx context.Context, q string, limit int) ([]domain.UserIdentity, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "Search",
		trace.WithAttributes(attribute.String("query", q), attribute.Int("limit", limit)),
	)
	defer span.End()

	if strings.TrimSpace(q) == "" {
		return []domain.UserIdentity{}, nil
	}
	all, err := repo.ListUsers(ctx, s.Store, s.SearchScan)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.UserIdentity, len(all))
	entries := make([]search.Entry, 0, len(all))
	for _, u := range all {
		byID[u.ID] = u
		entries = append(entries, search.Entry{ID: u.ID, Text: u.Username})
	}

	hits := search.NewIndex(entries).TopK(q, limit)
	out := make([]domain.UserIdentity, 0, len(hits))
	for _, h := range hits {
		out = append(out, byID[h.ID])
	}
	return out, nil
}
