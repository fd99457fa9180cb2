// Package services – CommentService
//
// This file implements game discussions: comments under games/{id}/comments
// with replies and per-user likes. Only the author may edit or delete a
// comment or reply. A like is a marker document plus a counter on the
// comment. The counter is only ever moved by Store.Increment and the text
// only by Store.Update, so likes and edits never clobber each other.
package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/domain"
	"github.com/tbourn/go-gamesocial-backend/internal/observability"
	"github.com/tbourn/go-gamesocial-backend/internal/repo"
)

// CommentSort is a comment list ordering.
type CommentSort string

const (
	SortNewest CommentSort = "newest"
	SortOldest CommentSort = "oldest"
	SortTop    CommentSort = "top"
)

// ParseCommentSort defaults to newest for blank or unknown values.
func ParseCommentSort(s string) CommentSort {
	switch CommentSort(strings.ToLower(strings.TrimSpace(s))) {
	case SortOldest:
		return SortOldest
	case SortTop:
		return SortTop
	}
	return SortNewest
}

const defaultMaxCommentRunes = 2000

// CommentService manages comments, replies and likes.
type CommentService struct {
	Store    docstore.Store
	Identity IdentityProvider
	MaxRunes int
	// IdempotencyTTL is how long a create with an Idempotency-Key is
	// remembered.
	IdempotencyTTL time.Duration
	Now            func() time.Time
}

func (s *CommentService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *CommentService) text(raw string) (string, error) {
	t := strings.TrimSpace(raw)
	if t == "" {
		return "", ErrEmptyText
	}
	if utf8.RuneCountInString(t) > orDefault(s.MaxRunes, defaultMaxCommentRunes) {
		return "", ErrTooLong
	}
	return t, nil
}

// author resolves the caller and the username to stamp on new content.
func (s *CommentService) author(ctx context.Context) (domain.Caller, string, error) {
	c, err := caller(ctx, s.Identity)
	if err != nil {
		return c, "", err
	}
	if u, err := repo.GetUser(ctx, s.Store, c.UserID); err == nil && strings.TrimSpace(u.Username) != "" {
		return c, u.Username, nil
	}
	return c, displayName(c.DisplayName, ""), nil
}

// Add posts a comment on gameID as the caller.
func (s *CommentService) Add(ctx context.Context, gameID, text, platform string) (*domain.Comment, error) {
	ctx, span := otel.Tracer("services/CommentService").Start(ctx, "Add",
		trace.WithAttributes(attribute.String("game.id", gameID)),
	)
	defer span.End()

	c, username, err := s.author(ctx)
	if err != nil {
		return nil, err
	}
	if !domain.ValidID(gameID) {
		return nil, ErrInvalidID
	}
	t, err := s.text(text)
	if err != nil {
		return nil, err
	}
	platform = strings.TrimSpace(platform)
	if platform == "" {
		platform = domain.DefaultPlatform
	}
	return repo.AddComment(ctx, s.Store, domain.Comment{
		GameID:   strings.TrimSpace(gameID),
		UserID:   c.UserID,
		Username: username,
		Text:     t,
		Platform: platform,
		Date:     s.now().Format(time.DateOnly),
		Likes:    0,
	})
}

// AddIdempotent is Add keyed by (caller, key): a retry with the same key
// returns the comment created first and replayed = true.
func (s *CommentService) AddIdempotent(ctx context.Context, gameID, text, platform, key string) (cm *domain.Comment, replayed bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		cm, err = s.Add(ctx, gameID, text, platform)
		return cm, false, err
	}
	if err := checkIDs(key); err != nil {
		return nil, false, err
	}
	c, err := caller(ctx, s.Identity)
	if err != nil {
		return nil, false, err
	}
	if rec, err := repo.GetIdempotency(ctx, s.Store, c.UserID, key, s.now()); err == nil {
		prev, gerr := repo.GetComment(ctx, s.Store, gameID, rec.ResourceID)
		if gerr == nil {
			return prev, true, nil
		}
	}
	cm, err = s.Add(ctx, gameID, text, platform)
	if err != nil {
		return nil, false, err
	}
	ttl := s.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if _, err := repo.CreateIdempotency(ctx, s.Store, c.UserID, key, cm.ID, ttl); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		log.Warn().Err(err).Str("user", c.UserID).Str("key", key).Msg("idempotency marker not stored")
	}
	return cm, false, nil
}

// Lookup reports the comment id remembered for (uid, key), if any.
func (s *CommentService) Lookup(ctx context.Context, uid, key string) (string, bool) {
	rec, err := repo.GetIdempotency(ctx, s.Store, uid, key, s.now())
	if err != nil {
		return "", false
	}
	return rec.ResourceID, true
}

// Get reads one comment.
func (s *CommentService) Get(ctx context.Context, gameID, commentID string) (*domain.Comment, error) {
	if err := checkIDs(gameID, commentID); err != nil {
		return nil, err
	}
	cm, err := repo.GetComment(ctx, s.Store, gameID, commentID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrCommentNotFound
	}
	return cm, err
}

// owned loads a comment and checks the caller wrote it.
func (s *CommentService) owned(ctx context.Context, gameID, commentID string) (*domain.Comment, error) {
	c, err := caller(ctx, s.Identity)
	if err != nil {
		return nil, err
	}
	cm, err := s.Get(ctx, gameID, commentID)
	if err != nil {
		return nil, err
	}
	if cm.UserID != c.UserID {
		return nil, ErrForbidden
	}
	return cm, nil
}

// Edit replaces the text of the caller's comment.
func (s *CommentService) Edit(ctx context.Context, gameID, commentID, text string) (*domain.Comment, error) {
	ctx, span := otel.Tracer("services/CommentService").Start(ctx, "Edit",
		trace.WithAttributes(attribute.String("game.id", gameID), attribute.String("comment.id", commentID)),
	)
	defer span.End()

	cm, err := s.owned(ctx, gameID, commentID)
	if err != nil {
		return nil, err
	}
	t, err := s.text(text)
	if err != nil {
		return nil, err
	}
	if err := repo.UpdateCommentText(ctx, s.Store, gameID, commentID, t); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	cm.Text = t
	return cm, nil
}

// Delete removes the caller's comment with its replies and likes.
func (s *CommentService) Delete(ctx context.Context, gameID, commentID string) error {
	if _, err := s.owned(ctx, gameID, commentID); err != nil {
		return err
	}
	return repo.DeleteCommentTree(ctx, s.Store, gameID, commentID)
}

// ToggleLike likes or unlikes a comment as the caller and returns the new
// state and counter. The counter moves by a store-side increment, so
// concurrent likers and edits do not overwrite each other.
func (s *CommentService) ToggleLike(ctx context.Context, gameID, commentID string) (liked bool, likes int, err error) {
	c, err := caller(ctx, s.Identity)
	if err != nil {
		return false, 0, err
	}
	if _, err := s.Get(ctx, gameID, commentID); err != nil {
		return false, 0, err
	}
	had, err := repo.HasLike(ctx, s.Store, gameID, commentID, c.UserID)
	if err != nil {
		return false, 0, err
	}
	delta := int64(1)
	if had {
		err = repo.DeleteLike(ctx, s.Store, gameID, commentID, c.UserID)
		delta = -1
	} else {
		err = repo.PutLike(ctx, s.Store, gameID, commentID, c.UserID, s.now())
	}
	if err != nil {
		return had, 0, err
	}
	if err := repo.AddLikes(ctx, s.Store, gameID, commentID, delta); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return !had, 0, ErrCommentNotFound
		}
		return !had, 0, err
	}
	cm, err := s.Get(ctx, gameID, commentID)
	if err != nil {
		return !had, 0, err
	}
	return !had, cm.Likes, nil
}

// List returns a game's comments in the requested order, optionally
// restricted to one platform (case-insensitive).
func (s *CommentService) List(ctx context.Context, gameID string, order CommentSort, platform string) ([]domain.Comment, error) {
	if !domain.ValidID(gameID) {
		return nil, ErrInvalidID
	}
	all, err := repo.ListComments(ctx, s.Store, gameID)
	if err != nil {
		return nil, err
	}
	return arrangeComments(all, order, platform), nil
}

// Observe streams a game's comments newest first.
func (s *CommentService) Observe(ctx context.Context, gameID string) (*Stream[domain.Comment], error) {
	if !domain.ValidID(gameID) {
		return nil, ErrInvalidID
	}
	sub, err := s.Store.Subscribe(ctx, repo.CommentsQuery(gameID))
	if err != nil {
		return nil, err
	}
	done := observability.TrackSubscription("comments")
	st := newStream(sub, func(snaps []docstore.Snapshot) ([]domain.Comment, error) {
		cs, err := repo.DecodeComments(gameID, snaps)
		if err != nil {
			return nil, err
		}
		return arrangeComments(cs, SortNewest, ""), nil
	})
	go func() { <-st.Done(); done() }()
	return st, nil
}

func arrangeComments(all []domain.Comment, order CommentSort, platform string) []domain.Comment {
	out := all[:0]
	platform = strings.TrimSpace(platform)
	for _, c := range all {
		if platform == "" || strings.EqualFold(c.Platform, platform) {
			out = append(out, c)
		}
	}
	// Dates are day-granular; ids are time-ordered and break ties.
	newer := func(a, b domain.Comment) bool {
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		return a.ID > b.ID
	}
	sort.SliceStable(out, func(i, j int) bool {
		switch order {
		case SortOldest:
			return newer(out[j], out[i])
		case SortTop:
			if out[i].Likes != out[j].Likes {
				return out[i].Likes > out[j].Likes
			}
		}
		return newer(out[i], out[j])
	})
	return out
}

// AddReply posts a reply under an existing comment.
func (s *CommentService) AddReply(ctx context.Context, gameID, commentID, text string) (*domain.Reply, error) {
	c, username, err := s.author(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, gameID, commentID); err != nil {
		return nil, err
	}
	t, err := s.text(text)
	if err != nil {
		return nil, err
	}
	return repo.AddReply(ctx, s.Store, gameID, commentID, domain.Reply{
		UserID:   c.UserID,
		Username: username,
		Text:     t,
		Date:     s.now().Format(time.DateOnly),
	})
}

// ListReplies returns a comment's replies oldest first.
func (s *CommentService) ListReplies(ctx context.Context, gameID, commentID string) ([]domain.Reply, error) {
	if _, err := s.Get(ctx, gameID, commentID); err != nil {
		return nil, err
	}
	return repo.ListReplies(ctx, s.Store, gameID, commentID)
}

// DeleteReply removes the caller's reply.
func (s *CommentService) DeleteReply(ctx context.Context, gameID, commentID, replyID string) error {
	c, err := caller(ctx, s.Identity)
	if err != nil {
		return err
	}
	if err := checkIDs(gameID, commentID, replyID); err != nil {
		return err
	}
	r, err := repo.GetReply(ctx, s.Store, gameID, commentID, replyID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrReplyNotFound
	}
	if err != nil {
		return err
	}
	if r.UserID != c.UserID {
		return ErrForbidden
	}
	return repo.DeleteReply(ctx, s.Store, gameID, commentID, replyID)
}
