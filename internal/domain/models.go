// Package domain defines the record types stored in the document store:
// user identities, follow edges, per-user game status entries, notification
// records and game comments. Every record carries both `json` tags (HTTP
// layer) and `firestore` tags (document field names), and knows how to
// validate itself and render itself as document fields.
package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	// UnknownGame replaces a missing game name so status tracking is never
	// blocked by incomplete catalog metadata.
	UnknownGame = "Unknown Game"
	// UnknownUser is shown when neither the live identity nor the edge
	// snapshot carries a username.
	UnknownUser = "Unknown User"
	// DefaultPlatform is attached to comments posted without a platform.
	DefaultPlatform = "PC"
)

// Validation errors returned by the Validate methods.
var (
	ErrMissingID     = errors.New("record id is required")
	ErrUnknownStatus = errors.New("unknown status kind")
	ErrUnknownEvent  = errors.New("unknown event kind")
	ErrEmptyText     = errors.New("text is empty")
)

// StatusKind names one of the per-user game collections.
type StatusKind string

const (
	StatusPlayed   StatusKind = "played"
	StatusWishlist StatusKind = "wishlist"
)

// ParseStatusKind accepts the collection names case-insensitively.
func ParseStatusKind(s string) (StatusKind, error) {
	switch StatusKind(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPlayed:
		return StatusPlayed, nil
	case StatusWishlist:
		return StatusWishlist, nil
	}
	return "", ErrUnknownStatus
}

// Event returns the notification type broadcast when a game is added to k.
func (k StatusKind) Event() EventKind {
	if k == StatusWishlist {
		return EventAddedToWishlist
	}
	return EventAddedToPlayed
}

// Label is the short activity-feed verb for the kind.
func (k StatusKind) Label() string {
	if k == StatusWishlist {
		return "Wants"
	}
	return "Played"
}

// EventKind is the type of a NotificationRecord.
type EventKind string

const (
	EventAddedToPlayed   EventKind = "added_to_played"
	EventAddedToWishlist EventKind = "added_to_wishlist"
)

// ParseEventKind rejects anything outside the known notification types.
func ParseEventKind(s string) (EventKind, error) {
	switch EventKind(s) {
	case EventAddedToPlayed, EventAddedToWishlist:
		return EventKind(s), nil
	}
	return "", ErrUnknownEvent
}

// UserIdentity is the profile document at users/{uid}. The id is immutable,
// the username is not.
type UserIdentity struct {
	ID        string    `json:"id"         firestore:"-"          mapstructure:"-"`
	Username  string    `json:"username"   firestore:"username"   mapstructure:"username"`
	Email     string    `json:"email"      firestore:"email"      mapstructure:"email"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"  mapstructure:"createdAt"`
}

// Fields renders the identity as document fields.
func (u UserIdentity) Fields() map[string]any {
	return map[string]any{
		"username":  u.Username,
		"email":     u.Email,
		"createdAt": u.CreatedAt.UTC(),
	}
}

// Validate checks the required identity fields.
func (u UserIdentity) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return ErrMissingID
	}
	return nil
}

// FollowEdge is one copy of a directed follow relation. Under
// users/{a}/following/{b} it describes b; under users/{b}/followers/{a} it
// describes a. Username is a snapshot of the other party's display name at
// write time and may go stale.
type FollowEdge struct {
	UserID    string    `json:"id"        firestore:"-"         mapstructure:"-"`
	Username  string    `json:"username"  firestore:"username"  mapstructure:"username"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp" mapstructure:"timestamp"`
}

// Fields renders the edge as document fields.
func (e FollowEdge) Fields() map[string]any {
	return map[string]any{
		"username":  e.Username,
		"timestamp": e.Timestamp.UTC(),
	}
}

// Validate checks the edge carries the other party's id.
func (e FollowEdge) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return ErrMissingID
	}
	return nil
}

// GameSnapshot is the denormalized game metadata captured at write time.
type GameSnapshot struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	CoverURL *string `json:"cover,omitempty"`
}

// Normalize applies the missing-metadata policy: an absent name becomes
// UnknownGame and a blank cover becomes nil.
func (g GameSnapshot) Normalize() GameSnapshot {
	if strings.TrimSpace(g.Name) == "" {
		g.Name = UnknownGame
	}
	if g.CoverURL != nil && strings.TrimSpace(*g.CoverURL) == "" {
		g.CoverURL = nil
	}
	return g
}

// StatusEntry is a game in a user's played or wishlist collection, keyed by
// game id. Entries are replaced, never updated in place.
type StatusEntry struct {
	GameID  string    `json:"game_id"  firestore:"gameId"  mapstructure:"gameId"`
	Name    string    `json:"name"     firestore:"name"    mapstructure:"name"`
	Cover   *string   `json:"cover"    firestore:"cover"   mapstructure:"cover"`
	AddedAt time.Time `json:"added_at" firestore:"addedAt" mapstructure:"addedAt"`
}

// Fields renders the entry as document fields. A nil cover is stored as an
// explicit null.
func (s StatusEntry) Fields() map[string]any {
	var cover any
	if s.Cover != nil {
		cover = *s.Cover
	}
	return map[string]any{
		"gameId":  s.GameID,
		"name":    s.Name,
		"cover":   cover,
		"addedAt": s.AddedAt.UTC(),
	}
}

// Validate checks the entry is keyed.
func (s StatusEntry) Validate() error {
	if strings.TrimSpace(s.GameID) == "" {
		return ErrMissingID
	}
	return nil
}

// NotificationRecord is one fan-out delivery stored under the recipient's
// notifications collection. Immutable once written.
type NotificationRecord struct {
	ID        string    `json:"id"         firestore:"-"         mapstructure:"-"`
	Type      EventKind `json:"type"       firestore:"type"      mapstructure:"type"`
	UserID    string    `json:"user_id"    firestore:"userId"    mapstructure:"userId"`
	GameID    string    `json:"game_id"    firestore:"gameId"    mapstructure:"gameId"`
	GameName  string    `json:"game_name"  firestore:"gameName"  mapstructure:"gameName"`
	GameCover *string   `json:"game_cover" firestore:"gameCover" mapstructure:"gameCover"`
	Timestamp time.Time `json:"timestamp"  firestore:"timestamp" mapstructure:"timestamp"`
}

// Fields renders the record as document fields.
func (n NotificationRecord) Fields() map[string]any {
	var cover any
	if n.GameCover != nil {
		cover = *n.GameCover
	}
	return map[string]any{
		"type":      string(n.Type),
		"userId":    n.UserID,
		"gameId":    n.GameID,
		"gameName":  n.GameName,
		"gameCover": cover,
		"timestamp": n.Timestamp.UTC(),
	}
}

// Validate checks the record type and its actor/game references.
func (n NotificationRecord) Validate() error {
	if _, err := ParseEventKind(string(n.Type)); err != nil {
		return err
	}
	if strings.TrimSpace(n.UserID) == "" || strings.TrimSpace(n.GameID) == "" {
		return ErrMissingID
	}
	return nil
}

// Comment is a discussion entry under games/{gameId}/comments.
type Comment struct {
	ID       string `json:"id"       firestore:"-"        mapstructure:"-"`
	GameID   string `json:"game_id"  firestore:"-"        mapstructure:"-"`
	UserID   string `json:"user_id"  firestore:"userId"   mapstructure:"userId"`
	Username string `json:"username" firestore:"username" mapstructure:"username"`
	Text     string `json:"text"     firestore:"text"     mapstructure:"text"`
	Platform string `json:"platform" firestore:"platform" mapstructure:"platform"`
	Date     string `json:"date"     firestore:"date"     mapstructure:"date"`
	Likes    int    `json:"likes"    firestore:"likes"    mapstructure:"likes"`
}

// Fields renders the comment as document fields.
func (c Comment) Fields() map[string]any {
	return map[string]any{
		"userId":   c.UserID,
		"username": c.Username,
		"text":     c.Text,
		"platform": c.Platform,
		"date":     c.Date,
		"likes":    c.Likes,
	}
}

// Validate checks author and text.
func (c Comment) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(c.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

// Reply is nested under a comment's replies collection.
type Reply struct {
	ID       string `json:"id"       firestore:"-"        mapstructure:"-"`
	UserID   string `json:"user_id"  firestore:"userId"   mapstructure:"userId"`
	Username string `json:"username" firestore:"username" mapstructure:"username"`
	Text     string `json:"text"     firestore:"text"     mapstructure:"text"`
	Date     string `json:"date"     firestore:"date"     mapstructure:"date"`
}

// Fields renders the reply as document fields.
func (r Reply) Fields() map[string]any {
	return map[string]any{
		"userId":   r.UserID,
		"username": r.Username,
		"text":     r.Text,
		"date":     r.Date,
	}
}

// Validate checks author and text.
func (r Reply) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

// Idempotency marks a previously completed create request, keyed by
// (user, Idempotency-Key), so a retried request returns the original
// resource instead of creating a duplicate.
type Idempotency struct {
	Key        string    `json:"key"         firestore:"-"          mapstructure:"-"`
	ResourceID string    `json:"resource_id" firestore:"resourceId" mapstructure:"resourceId"`
	ExpiresAt  time.Time `json:"expires_at"  firestore:"expiresAt"  mapstructure:"expiresAt"`
}

// Fields renders the marker as document fields.
func (i Idempotency) Fields() map[string]any {
	return map[string]any{
		"resourceId": i.ResourceID,
		"expiresAt":  i.ExpiresAt.UTC(),
	}
}

// Expired reports whether the marker is no longer valid at now.
func (i Idempotency) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
