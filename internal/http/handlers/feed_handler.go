// Activity feed HTTP handlers.
//
//   - GET /users/me/feed            (own + followed activity, JSON)
//   - GET /users/{id}/activity.atom (a user's own activity, Atom)
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/feeds"

	"github.com/tbourn/go-gamesocial-backend/internal/services"
)

const atomContentType = "application/atom+xml; charset=utf-8"

// GetFeed godoc
// @ID          getFeed
// @Summary     Activity of the caller and everyone they follow
// @Description Played and wishlist additions merged newest first, e.g. "alice · Played · Hades".
// @Tags        Feed
// @Produce     json
// @Security    BearerAuth
// @Param       limit  query  int  false  "Max items"  minimum(1) maximum(200) default(50)
// @Success     200  {array}   services.ActivityItem
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /users/me/feed [get]
func (h *Handlers) GetFeed(c *gin.Context) {
	uid := callerID(c)
	if uid == "" {
		failErr(c, services.ErrNotAuthenticated, ErrCodeUnauthorized)
		return
	}
	items, err := h.feedSvc.Activity(c.Request.Context(), uid, clampLimit(c, 50, 200))
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, asArray(items))
}

// ActivityAtom godoc
// @ID          activityAtom
// @Summary     A user's activity as an Atom feed
// @Tags        Feed
// @Produce     application/atom+xml
// @Param       id     path   string  true   "User ID"
// @Param       limit  query  int     false  "Max entries"  minimum(1) maximum(100) default(50)
// @Success     200  {string}  string  "Atom document"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /users/{id}/activity.atom [get]
func (h *Handlers) ActivityAtom(c *gin.Context) {
	uid := pathUser(c)
	items, err := h.feedSvc.UserActivity(c.Request.Context(), uid, clampLimit(c, 50, 100))
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}

	base := baseURL(c)
	self := fmt.Sprintf("%s%s", base, c.Request.URL.Path)
	name := uid
	if len(items) > 0 {
		name = items[0].Username
	}
	feed := &feeds.Feed{
		Id:          self,
		Title:       fmt.Sprintf("%s · activity", name),
		Link:        &feeds.Link{Href: self, Rel: "self"},
		Description: "Played and wishlist additions",
		Author:      &feeds.Author{Name: name},
		Created:     time.Unix(0, 0).UTC(),
	}
	if len(items) > 0 {
		feed.Created = items[0].AddedAt
		feed.Updated = items[0].AddedAt
	}
	for _, it := range items {
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          fmt.Sprintf("%s/%s/%s/%s", self, it.UserID, it.Kind, it.GameID),
			Title:       fmt.Sprintf("%s · %s · %s", it.Username, it.Label, it.GameName),
			Link:        &feeds.Link{Href: fmt.Sprintf("%s/games/%s", base, it.GameID)},
			Author:      &feeds.Author{Name: it.Username},
			Description: it.GameName,
			Created:     it.AddedAt,
			Updated:     it.AddedAt,
		})
	}

	atom, err := feed.ToAtom()
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	c.Data(http.StatusOK, atomContentType, []byte(atom))
}

// baseURL is the scheme and host the client used to reach us.
func baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if p := c.GetHeader("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + c.Request.Host
}
