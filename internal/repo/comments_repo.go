// Package repo implements the data persistence layer for domain entities on
// top of a docstore.Store. This file provides repository functions for game
// comments, their replies and per-user like markers:
//
//	games/{gameId}/comments/{cid}
//	games/{gameId}/comments/{cid}/replies/{rid}
//	games/{gameId}/comments/{cid}/likes/{uid}
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/domain"
)

// CommentsQuery selects every comment of a game in id (creation) order.
// Sorting by date, likes or platform filtering happens in the service.
func CommentsQuery(gameID string) docstore.Query {
	return docstore.Query{Collection: domain.CommentsPath(gameID)}
}

// AddComment stores c under its game and returns it with the new id.
func AddComment(ctx context.Context, st docstore.Store, c domain.Comment) (*domain.Comment, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.GameID == "" {
		return nil, domain.ErrMissingID
	}
	id, err := st.Add(ctx, domain.CommentsPath(c.GameID), c.Fields())
	if err != nil {
		return nil, err
	}
	c.ID = id
	return &c, nil
}

// GetComment reads one comment.
func GetComment(ctx context.Context, st docstore.Store, gameID, commentID string) (*domain.Comment, error) {
	snap, err := st.Get(ctx, docstore.Join(domain.CommentsPath(gameID), commentID))
	if err != nil {
		return nil, err
	}
	return decodeComment(gameID, snap)
}

// UpdateCommentText rewrites only the text field, leaving a concurrently
// changed like counter intact.
func UpdateCommentText(ctx context.Context, st docstore.Store, gameID, commentID, text string) error {
	if text == "" {
		return domain.ErrEmptyText
	}
	return st.Update(ctx, docstore.Join(domain.CommentsPath(gameID), commentID), docstore.Fields{"text": text})
}

// AddLikes adjusts the comment's like counter by delta in one atomic store
// operation.
func AddLikes(ctx context.Context, st docstore.Store, gameID, commentID string, delta int64) error {
	return st.Increment(ctx, docstore.Join(domain.CommentsPath(gameID), commentID), "likes", delta)
}

// DeleteComment removes a comment document. Replies and likes below it are
// left to DeleteCommentTree.
func DeleteComment(ctx context.Context, st docstore.Store, gameID, commentID string) error {
	return st.Delete(ctx, docstore.Join(domain.CommentsPath(gameID), commentID))
}

// DeleteCommentTree removes a comment's replies and likes, then the comment
// itself. Best-effort: the first failure is returned.
func DeleteCommentTree(ctx context.Context, st docstore.Store, gameID, commentID string) error {
	for _, col := range []string{domain.RepliesPath(gameID, commentID), domain.LikesPath(gameID, commentID)} {
		snaps, err := st.List(ctx, docstore.Query{Collection: col})
		if err != nil {
			return err
		}
		for _, s := range snaps {
			if err := st.Delete(ctx, s.Path); err != nil {
				return err
			}
		}
	}
	return DeleteComment(ctx, st, gameID, commentID)
}

// ListComments runs CommentsQuery once.
func ListComments(ctx context.Context, st docstore.Store, gameID string) ([]domain.Comment, error) {
	snaps, err := st.List(ctx, CommentsQuery(gameID))
	if err != nil {
		return nil, err
	}
	return DecodeComments(gameID, snaps)
}

// DecodeComments converts comment snapshots of one game.
func DecodeComments(gameID string, snaps []docstore.Snapshot) ([]domain.Comment, error) {
	out := make([]domain.Comment, 0, len(snaps))
	for _, s := range snaps {
		c, err := decodeComment(gameID, s)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func decodeComment(gameID string, s docstore.Snapshot) (*domain.Comment, error) {
	var c domain.Comment
	if err := docstore.Decode(s.Fields, &c); err != nil {
		return nil, err
	}
	c.ID = s.ID
	c.GameID = gameID
	return &c, nil
}

// AddReply stores r under the comment and returns it with the new id.
func AddReply(ctx context.Context, st docstore.Store, gameID, commentID string, r domain.Reply) (*domain.Reply, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	id, err := st.Add(ctx, domain.RepliesPath(gameID, commentID), r.Fields())
	if err != nil {
		return nil, err
	}
	r.ID = id
	return &r, nil
}

// GetReply reads one reply.
func GetReply(ctx context.Context, st docstore.Store, gameID, commentID, replyID string) (*domain.Reply, error) {
	snap, err := st.Get(ctx, docstore.Join(domain.RepliesPath(gameID, commentID), replyID))
	if err != nil {
		return nil, err
	}
	var r domain.Reply
	if err := docstore.Decode(snap.Fields, &r); err != nil {
		return nil, err
	}
	r.ID = snap.ID
	return &r, nil
}

// DeleteReply removes a reply.
func DeleteReply(ctx context.Context, st docstore.Store, gameID, commentID, replyID string) error {
	return st.Delete(ctx, docstore.Join(domain.RepliesPath(gameID, commentID), replyID))
}

// ListReplies returns a comment's replies oldest first.
func ListReplies(ctx context.Context, st docstore.Store, gameID, commentID string) ([]domain.Reply, error) {
	snaps, err := st.List(ctx, docstore.Query{Collection: domain.RepliesPath(gameID, commentID), OrderBy: "date"})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Reply, 0, len(snaps))
	for _, s := range snaps {
		var r domain.Reply
		if err := docstore.Decode(s.Fields, &r); err != nil {
			return nil, err
		}
		r.ID = s.ID
		out = append(out, r)
	}
	return out, nil
}

// HasLike reports whether uid has a like marker on the comment.
func HasLike(ctx context.Context, st docstore.Store, gameID, commentID, uid string) (bool, error) {
	_, err := st.Get(ctx, docstore.Join(domain.LikesPath(gameID, commentID), uid))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// PutLike writes uid's like marker.
func PutLike(ctx context.Context, st docstore.Store, gameID, commentID, uid string, at time.Time) error {
	return st.Set(ctx, docstore.Join(domain.LikesPath(gameID, commentID), uid), docstore.Fields{"timestamp": at.UTC()})
}

// DeleteLike removes uid's like marker.
func DeleteLike(ctx context.Context, st docstore.Store, gameID, commentID, uid string) error {
	return st.Delete(ctx, docstore.Join(domain.LikesPath(gameID, commentID), uid))
}
