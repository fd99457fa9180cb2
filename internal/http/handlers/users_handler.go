package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RenameRequest is the JSON payload for changing the caller's username.
type RenameRequest struct {
	// Username is the new display name (1–40 chars).
	Username string `json:"username" binding:"required" example:"alice"`
}

// EnsureProfile godoc
// @ID          ensureProfile
// @Summary     Create or fetch the caller's profile
// @Description Creates the identity document on first sign-in and returns it.
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.UserIdentity
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/me [post]
func (h *Handlers) EnsureProfile(c *gin.Context) {
	u, err := h.userSvc.EnsureProfile(c.Request.Context())
	if err != nil {
		failErr(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusOK, u)
}

// RenameUser godoc
// @ID          renameUser
// @Summary     Change the caller's username
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.RenameRequest  true  "New username"
// @Success     200   {object}  domain.UserIdentity
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid username"
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /users/me/username [put]
func (h *Handlers) RenameUser(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username required")
		return
	}
	u, err := h.userSvc.Rename(c.Request.Context(), req.Username)
	if err != nil {
		failErr(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusOK, u)
}

// GetUser godoc
// @ID          getUser
// @Summary     Get a user profile
// @Tags        Users
// @Produce     json
// @Param       id   path      string  true  "User ID or \"me\""
// @Success     200  {object}  domain.UserIdentity
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Router      /users/{id} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	uid := pathUser(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "sign in to use \"me\"")
		return
	}
	u, err := h.userSvc.Get(c.Request.Context(), uid)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, u)
}

// SearchUsers godoc
// @ID          searchUsers
// @Summary     Search users by username
// @Description Case-insensitive match; prefix matches rank first.
// @Tags        Users
// @Produce     json
// @Param       q      query  string  true   "Search text"
// @Param       limit  query  int     false  "Max results"  minimum(1) maximum(50) default(20)
// @Success     200  {array}   domain.UserIdentity
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /users/search [get]
func (h *Handlers) SearchUsers(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q is required")
		return
	}
	users, err := h.userSvc.Search(c.Request.Context(), q, clampLimit(c, 20, 50))
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, users)
}
