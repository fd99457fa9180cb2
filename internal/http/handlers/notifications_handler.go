// Notification inbox HTTP handlers.
//
//   - GET    /users/me/notifications     (rendered inbox, newest first)
//   - GET    /users/me/notifications/ws  (live rendered inbox)
//   - DELETE /users/me/notifications     (trim to the retention cap)
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-gamesocial-backend/internal/domain"
	"github.com/tbourn/go-gamesocial-backend/internal/services"
)

// PruneResponse reports how many records a prune removed.
type PruneResponse struct {
	Pruned int `json:"pruned"`
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     List the caller's notifications
// @Description Newest first, each with its display text.
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
// @Param       limit  query  int  false  "Max records"  minimum(1) maximum(200) default(50)
// @Success     200  {array}   services.RenderedNotification
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /users/me/notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	out, err := h.inboxSvc.ListRendered(c.Request.Context(), callerID(c), clampLimit(c, 50, 200))
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, asArray(out))
}

// ObserveNotifications godoc
// @ID          observeNotifications
// @Summary     Live notification inbox (websocket)
// @Description Sends the rendered inbox as a JSON array on connect and after every delivery.
// @Tags        Notifications
// @Security    BearerAuth
// @Success     101  {array}   services.RenderedNotification
// @Failure     400  {object}  handlers.ErrorResponse  "Not a websocket request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /users/me/notifications/ws [get]
func (h *Handlers) ObserveNotifications(c *gin.Context) {
	uid := callerID(c)
	serveStream(c,
		func(ctx context.Context) (*services.InboxStream, error) {
			return h.inboxSvc.Observe(ctx, uid)
		},
		func(ctx context.Context, recs []domain.NotificationRecord) []services.RenderedNotification {
			return asArray(h.inboxSvc.RenderAll(ctx, recs))
		},
	)
}

// PruneNotifications godoc
// @ID          pruneNotifications
// @Summary     Trim the caller's inbox
// @Description Deletes everything but the newest records up to the configured cap.
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.PruneResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /users/me/notifications [delete]
func (h *Handlers) PruneNotifications(c *gin.Context) {
	n, err := h.inboxSvc.Prune(c.Request.Context(), callerID(c))
	if err != nil {
		failErr(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusOK, PruneResponse{Pruned: n})
}
