// Package services defines the business logic of the social engine: the
// follow graph, per-user game status collections, notification fan-out and
// inboxes, comments, the activity feed and the user directory.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tbourn/go-gamesocial-backend/internal/domain"
)

// Identity and authorization errors.
var (
	// ErrNotAuthenticated is returned by any write invoked without a resolved
	// caller identity.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrForbidden is returned when the caller acts on another user's data.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidID is returned for ids that cannot name a single document:
	// blank, containing "/", or otherwise rejected by domain.ValidID.
	ErrInvalidID = errors.New("invalid id")
)

// checkIDs returns ErrInvalidID unless every id is a valid path segment.
func checkIDs(ids ...string) error {
	for _, id := range ids {
		if !domain.ValidID(id) {
			return ErrInvalidID
		}
	}
	return nil
}

// Relationship graph errors.
var (
	// ErrSelfFollow rejects follow(a, a). Nothing is written.
	ErrSelfFollow = errors.New("cannot follow yourself")

	// ErrUserNotFound indicates that the referenced identity document does
	// not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrPartialEdge reports that only one of the two follow-edge copies was
	// written or deleted. The pair self-heals on the next follow/unfollow.
	ErrPartialEdge = errors.New("follow edge partially written")
)

// Fan-out and status errors.
var (
	// ErrFanoutPartial reports that some follower inboxes did not receive a
	// notification. It never fails the triggering status change.
	ErrFanoutPartial = errors.New("notification fan-out partially failed")

	// ErrMalformedParameter is returned when a serialized game payload cannot
	// be decoded.
	ErrMalformedParameter = errors.New("malformed parameter")
)

// Comment and profile errors.
var (
	// ErrCommentNotFound indicates that the comment does not exist.
	ErrCommentNotFound = errors.New("comment not found")

	// ErrReplyNotFound indicates that the reply does not exist.
	ErrReplyNotFound = errors.New("reply not found")

	// ErrEmptyText is returned for blank comment or reply text.
	ErrEmptyText = errors.New("text is empty")

	// ErrTooLong is returned when text exceeds the configured rune limit.
	ErrTooLong = errors.New("text too long")

	// ErrInvalidUsername is returned for blank or oversized display names.
	ErrInvalidUsername = errors.New("invalid username")
)

// EdgeError describes a follow/unfollow where one copy of the edge changed
// and the other did not.
type EdgeError struct {
	Op       string // "follow" or "unfollow"
	Follower string
	Followee string
	Done     string // path that was written/deleted
	Failed   string // path that was not
	Err      error
}

func (e *EdgeError) Error() string {
	return fmt.Sprintf("%s %s->%s: %s applied, %s failed: %v", e.Op, e.Follower, e.Followee, e.Done, e.Failed, e.Err)
}

// Unwrap exposes both ErrPartialEdge and the store error.
func (e *EdgeError) Unwrap() []error { return []error{ErrPartialEdge, e.Err} }

// FanoutError lists the followers whose inbox write failed.
type FanoutError struct {
	Actor  string
	Failed map[string]error
}

func (e *FanoutError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("fan-out from %s failed for %d follower(s): %s", e.Actor, len(ids), strings.Join(ids, ","))
}

func (e *FanoutError) Unwrap() error { return ErrFanoutPartial }
