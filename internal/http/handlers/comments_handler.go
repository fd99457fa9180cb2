// Game discussion HTTP handlers.
//
//   - GET    /games/{id}/comments                              (sort, platform filter, ETag)
//   - POST   /games/{id}/comments                              (Idempotency-Key aware)
//   - GET    /games/{id}/comments/ws                           (live, newest first)
//   - GET    /games/{id}/comments/{commentId}
//   - PUT    /games/{id}/comments/{commentId}                  (author only)
//   - DELETE /games/{id}/comments/{commentId}                  (author only)
//   - POST   /games/{id}/comments/{commentId}/like             (toggle)
//   - GET    /games/{id}/comments/{commentId}/replies
//   - POST   /games/{id}/comments/{commentId}/replies
//   - DELETE /games/{id}/comments/{commentId}/replies/{replyId} (author only)
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-gamesocial-backend/internal/domain"
	"github.com/tbourn/go-gamesocial-backend/internal/http/middleware"
	"github.com/tbourn/go-gamesocial-backend/internal/services"
)

//
// DTOs
//

// CreateCommentRequest is the payload for a new comment.
type CreateCommentRequest struct {
	Text     string `json:"text"     binding:"required" example:"Best roguelike I've played"`
	Platform string `json:"platform" example:"PC"`
}

// EditCommentRequest replaces the text of a comment.
type EditCommentRequest struct {
	Text string `json:"text" binding:"required" example:"Edited: still the best"`
}

// CreateReplyRequest is the payload for a new reply.
type CreateReplyRequest struct {
	Text string `json:"text" binding:"required" example:"Agreed!"`
}

// LikeResponse reports the like state after a toggle.
type LikeResponse struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}


//
// Comments
//

// ListComments godoc
// @ID          listComments
// @Summary     List a game's comments
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Comments
// @Produce     json
// @Param       id             path    string  true   "Game ID"
// @Param       sort           query   string  false  "Order"  Enums(newest, oldest, top) default(newest)
// @Param       platform       query   string  false  "Only comments for this platform"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {array}   domain.Comment
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /games/{id}/comments [get]
func (h *Handlers) ListComments(c *gin.Context) {
	ctx := c.Request.Context()
	gameID := strings.TrimSpace(c.Param("id"))
	order := services.ParseCommentSort(c.Query("sort"))
	platform := strings.TrimSpace(c.Query("platform"))

	cs, err := h.commentSvc.List(ctx, gameID, order, platform)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	okTagged(c, fmt.Sprintf("comments:%s:%s:%s", gameID, order, strings.ToLower(platform)), asArray(cs))
}

// CreateComment godoc
// @ID          createComment
// @Summary     Comment on a game
// @Description With an Idempotency-Key, a retry returns the comment created first (200 instead of 201).
// @Tags        Comments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id               path    string  true   "Game ID"
// @Param       Idempotency-Key  header  string  false  "Retry key"
// @Param       body             body    handlers.CreateCommentRequest  true  "Comment"
// @Success     201  {object}  domain.Comment
// @Success     200  {object}  domain.Comment  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid text"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /games/{id}/comments [post]
func (h *Handlers) CreateComment(c *gin.Context) {
	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text is required")
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)
	cm, replayed, err := h.commentSvc.AddIdempotent(c.Request.Context(), c.Param("id"), req.Text, req.Platform, key)
	if err != nil {
		failErr(c, err, ErrCodeWriteFailed)
		return
	}
	if replayed {
		ok(c, http.StatusOK, cm)
		return
	}
	ok(c, http.StatusCreated, cm)
}

// ObserveComments godoc
// @ID          observeComments
// @Summary     Live comment list (websocket)
// @Tags        Comments
// @Param       id   path  string  true  "Game ID"
// @Success     101  {array}   domain.Comment
// @Failure     400  {object}  handlers.ErrorResponse  "Not a websocket request"
// @Router      /games/{id}/comments/ws [get]
func (h *Handlers) ObserveComments(c *gin.Context) {
	gameID := c.Param("id")
	serveStream(c,
		func(ctx context.Context) (*services.Stream[domain.Comment], error) {
			return h.commentSvc.Observe(ctx, gameID)
		},
		func(_ context.Context, cs []domain.Comment) []domain.Comment { return asArray(cs) },
	)
}

// GetComment godoc
// @ID          getComment
// @Summary     Get one comment
// @Tags        Comments
// @Produce     json
// @Param       id         path  string  true  "Game ID"
// @Param       commentId  path  string  true  "Comment ID"
// @Success     200  {object}  domain.Comment
// @Failure     404  {object}  handlers.ErrorResponse  "Comment not found"
// @Router      /games/{id}/comments/{commentId} [get]
func (h *Handlers) GetComment(c *gin.Context) {
	cm, err := h.commentSvc.Get(c.Request.Context(), c.Param("id"), c.Param("commentId"))
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, cm)
}

// EditComment godoc
// @ID          editComment
// @Summary     Edit a comment
// @Tags        Comments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id         path  string  true  "Game ID"
// @Param       commentId  path  string  true  "Comment ID"
// @Param       body       body  handlers.EditCommentRequest  true  "New text"
// @Success     200  {object}  domain.Comment
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid text"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the author"
// @Failure     404  {object}  handlers.ErrorResponse  "Comment not found"
// @Router      /games/{id}/comments/{commentId} [put]
func (h *Handlers) EditComment(c *gin.Context) {
	var req EditCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text is required")
		return
	}
	cm, err := h.commentSvc.Edit(c.Request.Context(), c.Param("id"), c.Param("commentId"), req.Text)
	if err != nil {
		failErr(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusOK, cm)
}

// DeleteComment godoc
// @ID          deleteComment
// @Summary     Delete a comment
// @Tags        Comments
// @Security    BearerAuth
// @Param       id         path  string  true  "Game ID"
// @Param       commentId  path  string  true  "Comment ID"
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the author"
// @Failure     404  {object}  handlers.ErrorResponse  "Comment not found"
// @Router      /games/{id}/comments/{commentId} [delete]
func (h *Handlers) DeleteComment(c *gin.Context) {
	if err := h.commentSvc.Delete(c.Request.Context(), c.Param("id"), c.Param("commentId")); err != nil {
		failErr(c, err, ErrCodeWriteFailed)
		return
	}
	noContent(c)
}

// LikeComment godoc
// @ID          likeComment
// @Summary     Like or unlike a comment
// @Tags        Comments
// @Produce     json
// @Security    BearerAuth
// @Param       id         path  string  true  "Game ID"
// @Param       commentId  path  string  true  "Comment ID"
// @Success     200  {object}  handlers.LikeResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Comment not found"
// @Router      /games/{id}/comments/{commentId}/like [post]
func (h *Handlers) LikeComment(c *gin.Context) {
	liked, likes, err := h.commentSvc.ToggleLike(c.Request.Context(), c.Param("id"), c.Param("commentId"))
	if err != nil {
		failErr(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusOK, LikeResponse{Liked: liked, Likes: likes})
}

//
// Replies
//

// ListReplies godoc
// @ID          listReplies
// @Summary     List replies to a comment
// @Description Oldest first.
// @Tags        Comments
// @Produce     json
// @Param       id         path  string  true  "Game ID"
// @Param       commentId  path  string  true  "Comment ID"
// @Success     200  {array}   domain.Reply
// @Failure     404  {object}  handlers.ErrorResponse  "Comment not found"
// @Router      /games/{id}/comments/{commentId}/replies [get]
func (h *Handlers) ListReplies(c *gin.Context) {
	rs, err := h.commentSvc.ListReplies(c.Request.Context(), c.Param("id"), c.Param("commentId"))
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, asArray(rs))
}

// CreateReply godoc
// @ID          createReply
// @Summary     Reply to a comment
// @Tags        Comments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id         path  string  true  "Game ID"
// @Param       commentId  path  string  true  "Comment ID"
// @Param       body       body  handlers.CreateReplyRequest  true  "Reply"
// @Success     201  {object}  domain.Reply
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid text"
// @Failure     404  {object}  handlers.ErrorResponse  "Comment not found"
// @Router      /games/{id}/comments/{commentId}/replies [post]
func (h *Handlers) CreateReply(c *gin.Context) {
	var req CreateReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text is required")
		return
	}
	r, err := h.commentSvc.AddReply(c.Request.Context(), c.Param("id"), c.Param("commentId"), req.Text)
	if err != nil {
		failErr(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusCreated, r)
}

// DeleteReply godoc
// @ID          deleteReply
// @Summary     Delete a reply
// @Tags        Comments
// @Security    BearerAuth
// @Param       id         path  string  true  "Game ID"
// @Param       commentId  path  string  true  "Comment ID"
// @Param       replyId    path  string  true  "Reply ID"
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the author"
// @Failure     404  {object}  handlers.ErrorResponse  "Reply not found"
// @Router      /games/{id}/comments/{commentId}/replies/{replyId} [delete]
func (h *Handlers) DeleteReply(c *gin.Context) {
	if err := h.commentSvc.DeleteReply(c.Request.Context(), c.Param("id"), c.Param("commentId"), c.Param("replyId")); err != nil {
		failErr(c, err, ErrCodeWriteFailed)
		return
	}
	noContent(c)
}
