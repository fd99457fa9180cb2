package domain

import "strings"

// Collection and document paths of the hierarchical store layout:
//
//	users/{uid}
//	users/{uid}/followers/{otherUid}
//	users/{uid}/following/{otherUid}
//	users/{uid}/played/{gameId}
//	users/{uid}/wishlist/{gameId}
//	users/{uid}/notifications/{autoId}
//	users/{uid}/idempotency/{key}
//	games/{gameId}/comments/{autoId}
//	games/{gameId}/comments/{cid}/replies/{autoId}
//	games/{gameId}/comments/{cid}/likes/{uid}
const (
	UsersCollection = "users"
	GamesCollection = "games"
)

// MaxIDBytes bounds a single path segment.
const MaxIDBytes = 256

// ValidID reports whether id can be used as one path segment: not blank,
// no "/", not "." or "..", not a reserved "__name__" id, at most
// MaxIDBytes long. Ids are compared as given; callers trim first.
func ValidID(id string) bool {
	switch {
	case strings.TrimSpace(id) == "", len(id) > MaxIDBytes:
		return false
	case strings.Contains(id, "/"), id == ".", id == "..":
		return false
	case len(id) > 4 && strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__"):
		return false
	}
	return true
}

func join(parts ...string) string { return strings.Join(parts, "/") }

// UserPath is the identity document of uid.
func UserPath(uid string) string { return join(UsersCollection, uid) }

// FollowersPath is the collection of uid's followers.
func FollowersPath(uid string) string { return join(UsersCollection, uid, "followers") }

// FollowingPath is the collection of users uid follows.
func FollowingPath(uid string) string { return join(UsersCollection, uid, "following") }

// StatusPath is uid's played or wishlist collection.
func StatusPath(uid string, kind StatusKind) string {
	return join(UsersCollection, uid, string(kind))
}

// NotificationsPath is uid's inbox.
func NotificationsPath(uid string) string { return join(UsersCollection, uid, "notifications") }

// IdempotencyPath holds uid's idempotency markers.
func IdempotencyPath(uid string) string { return join(UsersCollection, uid, "idempotency") }

// CommentsPath is the discussion collection of a game.
func CommentsPath(gameID string) string { return join(GamesCollection, gameID, "comments") }

// RepliesPath is the reply collection of a comment.
func RepliesPath(gameID, commentID string) string {
	return join(CommentsPath(gameID), commentID, "replies")
}

// LikesPath holds one marker document per user who liked a comment.
func LikesPath(gameID, commentID string) string {
	return join(CommentsPath(gameID), commentID, "likes")
}
