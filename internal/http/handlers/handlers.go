// Social HTTP handlers: wiring and shared helpers.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses
// and live websocket streams). Identity is read from the request context,
// where the auth middleware stores the bearer token's caller.
package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-gamesocial-backend/internal/auth"
	"github.com/tbourn/go-gamesocial-backend/internal/domain"
	"github.com/tbourn/go-gamesocial-backend/internal/services"
	"github.com/tbourn/go-gamesocial-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// UserService is the user directory consumed by HTTP handlers.
type UserService interface {
	// EnsureProfile returns the caller's identity, creating it on first use.
	EnsureProfile(ctx context.Context) (*domain.UserIdentity, error)
	// Rename changes the caller's display name.
	Rename(ctx context.Context, username string) (*domain.UserIdentity, error)
	Get(ctx context.Context, uid string) (*domain.UserIdentity, error)
	// Search ranks identities by username match.
	Search(ctx context.Context, q string, limit int) ([]domain.UserIdentity, error)
}

// GraphService manages follow edges.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type GraphService interface {
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	FollowersOf(ctx context.Context, userID string) ([]services.FollowView, error)
	FollowingOf(ctx context.Context, userID string) ([]services.FollowView, error)
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	Counts(ctx context.Context, userID string) (followers, following int, err error)
}

// StatusService manages played and wishlist collections.
type StatusService interface {
	Add(ctx context.Context, uid string, kind domain.StatusKind, gameID string, game domain.GameSnapshot) (*domain.StatusEntry, error)
	Remove(ctx context.Context, uid string, kind domain.StatusKind, gameID string) error
	Contains(ctx context.Context, uid string, kind domain.StatusKind, gameID string) (bool, error)
	Toggle(ctx context.Context, uid string, kind domain.StatusKind, game domain.GameSnapshot) (bool, error)
	List(ctx context.Context, uid string, kind domain.StatusKind, limit int) ([]domain.StatusEntry, error)
	// Observe streams the collection; the caller must close the stream.
	Observe(ctx context.Context, uid string, kind domain.StatusKind) (*services.StatusStream, error)
}

// InboxService reads notification inboxes.
type InboxService interface {
	ListRendered(ctx context.Context, uid string, limit int) ([]services.RenderedNotification, error)
	Observe(ctx context.Context, uid string) (*services.InboxStream, error)
	RenderAll(ctx context.Context, recs []domain.NotificationRecord) []services.RenderedNotification
	Prune(ctx context.Context, uid string) (int, error)
}

// FeedService builds activity feeds.
type FeedService interface {
	Activity(ctx context.Context, uid string, limit int) ([]services.ActivityItem, error)
	UserActivity(ctx context.Context, uid string, limit int) ([]services.ActivityItem, error)
}

// CommentService manages game discussions.
type CommentService interface {
	AddIdempotent(ctx context.Context, gameID, text, platform, key string) (*domain.Comment, bool, error)
	Get(ctx context.Context, gameID, commentID string) (*domain.Comment, error)
	Edit(ctx context.Context, gameID, commentID, text string) (*domain.Comment, error)
	Delete(ctx context.Context, gameID, commentID string) error
	ToggleLike(ctx context.Context, gameID, commentID string) (liked bool, likes int, err error)
	List(ctx context.Context, gameID string, order services.CommentSort, platform string) ([]domain.Comment, error)
	Observe(ctx context.Context, gameID string) (*services.Stream[domain.Comment], error)
	AddReply(ctx context.Context, gameID, commentID, text string) (*domain.Reply, error)
	ListReplies(ctx context.Context, gameID, commentID string) ([]domain.Reply, error)
	DeleteReply(ctx context.Context, gameID, commentID, replyID string) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the social API. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic.
type Handlers struct {
	userSvc    UserService
	graphSvc   GraphService
	statusSvc  StatusService
	inboxSvc   InboxService
	feedSvc    FeedService
	commentSvc CommentService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(users UserService, graph GraphService, status StatusService, inbox InboxService, feed FeedService, comments CommentService) *Handlers {
	return &Handlers{
		userSvc:    users,
		graphSvc:   graph,
		statusSvc:  status,
		inboxSvc:   inbox,
		feedSvc:    feed,
		commentSvc: comments,
	}
}

//
// Helpers
//

// me is the path alias for the signed-in user.
const me = "me"

// callerID returns the authenticated user id, or "" for anonymous requests.
func callerID(c *gin.Context) string {
	if cl, ok := auth.CallerFrom(c.Request.Context()); ok {
		return cl.UserID
	}
	return ""
}

// pathUser resolves the :id path parameter, mapping "me" to the caller.
func pathUser(c *gin.Context) string {
	id := strings.TrimSpace(c.Param("id"))
	if id == me {
		return callerID(c)
	}
	return id
}

// statusKind parses the :kind path parameter (played|wishlist).
func statusKind(c *gin.Context) (domain.StatusKind, error) {
	return domain.ParseStatusKind(c.Param("kind"))
}

// clampLimit reads the limit query parameter bounded to [1, max].
func clampLimit(c *gin.Context, def, max int) int {
	return utils.ClampLimit(c.Query("limit"), def, max)
}
