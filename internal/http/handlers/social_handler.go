// Follow graph HTTP handlers.
//
//   - POST   /users/{id}/follow         (caller follows id)
//   - DELETE /users/{id}/follow         (caller unfollows id)
//   - GET    /users/{id}/followers      (public)
//   - GET    /users/{id}/following      (public)
//   - GET    /users/{id}/follow-status  (counts, plus relation to the caller)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-gamesocial-backend/internal/services"
)

// FollowListResponse wraps a followers or following list.
type FollowListResponse struct {
	UserID string                `json:"user_id"`
	Users  []services.FollowView `json:"users"`
	Count  int                   `json:"count"`
}

// FollowStatusResponse reports the follow counts of a user and, for a
// signed-in caller, the relation between the two.
type FollowStatusResponse struct {
	UserID    string `json:"user_id"`
	Followers int    `json:"followers"`
	Following int    `json:"following"`
	IFollow   *bool  `json:"i_follow,omitempty"`
	FollowsMe *bool  `json:"follows_me,omitempty"`
}

// Follow godoc
// @ID          followUser
// @Summary     Follow a user
// @Description Writes both copies of the follow edge. Following yourself is rejected; following twice is a no-op.
// @Tags        Follows
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "User to follow"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Self follow"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Edge partially written; retry"
// @Router      /users/{id}/follow [post]
func (h *Handlers) Follow(c *gin.Context) {
	if err := h.graphSvc.Follow(c.Request.Context(), callerID(c), pathUser(c)); err != nil {
		failErr(c, err, ErrCodeWriteFailed)
		return
	}
	noContent(c)
}

// Unfollow godoc
// @ID          unfollowUser
// @Summary     Unfollow a user
// @Tags        Follows
// @Security    BearerAuth
// @Param       id   path  string  true  "User to unfollow"
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     503  {object}  handlers.ErrorResponse  "Edge partially deleted; retry"
// @Router      /users/{id}/follow [delete]
func (h *Handlers) Unfollow(c *gin.Context) {
	if err := h.graphSvc.Unfollow(c.Request.Context(), callerID(c), pathUser(c)); err != nil {
		failErr(c, err, ErrCodeWriteFailed)
		return
	}
	noContent(c)
}

// ListFollowers godoc
// @ID          listFollowers
// @Summary     List a user's followers
// @Description Usernames are resolved at read time, falling back to the edge snapshot.
// @Tags        Follows
// @Produce     json
// @Param       id   path      string  true  "User ID"
// @Success     200  {object}  handlers.FollowListResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /users/{id}/followers [get]
func (h *Handlers) ListFollowers(c *gin.Context) {
	uid := pathUser(c)
	users, err := h.graphSvc.FollowersOf(c.Request.Context(), uid)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, FollowListResponse{UserID: uid, Users: users, Count: len(users)})
}

// ListFollowing godoc
// @ID          listFollowing
// @Summary     List the users a user follows
// @Tags        Follows
// @Produce     json
// @Param       id   path      string  true  "User ID"
// @Success     200  {object}  handlers.FollowListResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /users/{id}/following [get]
func (h *Handlers) ListFollowing(c *gin.Context) {
	uid := pathUser(c)
	users, err := h.graphSvc.FollowingOf(c.Request.Context(), uid)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, FollowListResponse{UserID: uid, Users: users, Count: len(users)})
}

// FollowStatus godoc
// @ID          followStatus
// @Summary     Follow counts and relation to the caller
// @Tags        Follows
// @Produce     json
// @Param       id   path      string  true  "User ID"
// @Success     200  {object}  handlers.FollowStatusResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /users/{id}/follow-status [get]
func (h *Handlers) FollowStatus(c *gin.Context) {
	ctx := c.Request.Context()
	uid := pathUser(c)
	followers, following, err := h.graphSvc.Counts(ctx, uid)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	resp := FollowStatusResponse{UserID: uid, Followers: followers, Following: following}

	if self := callerID(c); self != "" && self != uid {
		iFollow, err := h.graphSvc.IsFollowing(ctx, self, uid)
		if err != nil {
			failErr(c, err, ErrCodeListFailed)
			return
		}
		followsMe, err := h.graphSvc.IsFollowing(ctx, uid, self)
		if err != nil {
			failErr(c, err, ErrCodeListFailed)
			return
		}
		resp.IFollow, resp.FollowsMe = &iFollow, &followsMe
	}
	ok(c, http.StatusOK, resp)
}
