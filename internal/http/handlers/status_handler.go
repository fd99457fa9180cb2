// Played/wishlist HTTP handlers.
//
//   - PUT    /users/me/status/{kind}/{gameId}  (add, fans out to followers)
//   - DELETE /users/me/status/{kind}/{gameId}  (remove, not broadcast)
//   - POST   /users/me/status/{kind}/toggle    (serialized game payload)
//   - GET    /users/me/status/{kind}/{gameId}  (contains)
//   - GET    /users/{id}/status/{kind}         (list, ETag support)
//   - GET    /users/{id}/status/{kind}/ws      (live list)
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-gamesocial-backend/internal/domain"
	"github.com/tbourn/go-gamesocial-backend/internal/services"
)

//
// DTOs
//

// AddStatusRequest optionally carries the game metadata known to the
// client. Missing values are filled from the catalog or defaulted.
type AddStatusRequest struct {
	Name  string  `json:"name"  example:"Hades"`
	Cover *string `json:"cover" example:"https://images.igdb.com/igdb/image/upload/t_1080p/co1r7f.jpg"`
}

// ToggleStatusRequest carries the game as a serialized JSON object, as
// passed between client screens.
type ToggleStatusRequest struct {
	Game string `json:"game" binding:"required" example:"{\"id\":\"1942\",\"name\":\"Hades\"}"`
}

// ToggleStatusResponse reports membership after the toggle.
type ToggleStatusResponse struct {
	GameID string            `json:"game_id"`
	Kind   domain.StatusKind `json:"kind"`
	Member bool              `json:"member"`
}

// ContainsResponse reports whether a game is in the caller's collection.
type ContainsResponse struct {
	GameID string            `json:"game_id"`
	Kind   domain.StatusKind `json:"kind"`
	Member bool              `json:"member"`
}

// decodeGamePayload parses the serialized game object of a toggle request.
func decodeGamePayload(raw string) (domain.GameSnapshot, error) {
	var g struct {
		ID    json.RawMessage `json:"id"`
		Name  string          `json:"name"`
		Cover *string         `json:"cover"`
	}
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return domain.GameSnapshot{}, fmt.Errorf("%w: game: %v", services.ErrMalformedParameter, err)
	}
	// ids arrive as numbers or strings depending on the catalog client
	id := strings.Trim(strings.TrimSpace(string(g.ID)), `"`)
	if id == "" || id == "null" {
		return domain.GameSnapshot{}, fmt.Errorf("%w: game id missing", services.ErrMalformedParameter)
	}
	if !domain.ValidID(id) {
		return domain.GameSnapshot{}, fmt.Errorf("%w: game id %q: %w", services.ErrMalformedParameter, id, services.ErrInvalidID)
	}
	return domain.GameSnapshot{ID: id, Name: g.Name, CoverURL: g.Cover}, nil
}

//
// Handlers
//

// AddStatus godoc
// @ID          addStatus
// @Summary     Add a game to played or wishlist
// @Description Stores the entry (replacing any previous one) and notifies every follower. Missing metadata never blocks the write.
// @Tags        Status
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       kind    path  string  true  "Collection"  Enums(played, wishlist)
// @Param       gameId  path  string  true  "Game ID"
// @Param       body    body  handlers.AddStatusRequest  false  "Known metadata"
// @Success     200  {object}  domain.StatusEntry
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown kind or bad body"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /users/me/status/{kind}/{gameId} [put]
func (h *Handlers) AddStatus(c *gin.Context) {
	kind, err := statusKind(c)
	if err != nil {
		failErr(c, err, ErrCodeBadRequest)
		return
	}
	var req AddStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	gameID := c.Param("gameId")
	entry, err := h.statusSvc.Add(c.Request.Context(), callerID(c), kind, gameID,
		domain.GameSnapshot{ID: gameID, Name: req.Name, CoverURL: req.Cover})
	if err != nil {
		failErr(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusOK, entry)
}

// RemoveStatus godoc
// @ID          removeStatus
// @Summary     Remove a game from played or wishlist
// @Tags        Status
// @Security    BearerAuth
// @Param       kind    path  string  true  "Collection"  Enums(played, wishlist)
// @Param       gameId  path  string  true  "Game ID"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown kind"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /users/me/status/{kind}/{gameId} [delete]
func (h *Handlers) RemoveStatus(c *gin.Context) {
	kind, err := statusKind(c)
	if err != nil {
		failErr(c, err, ErrCodeBadRequest)
		return
	}
	if err := h.statusSvc.Remove(c.Request.Context(), callerID(c), kind, c.Param("gameId")); err != nil {
		failErr(c, err, ErrCodeWriteFailed)
		return
	}
	noContent(c)
}

// ToggleStatus godoc
// @ID          toggleStatus
// @Summary     Toggle a game in played or wishlist
// @Description Removes the game when present, otherwise adds it (and notifies followers).
// @Tags        Status
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       kind  path  string  true  "Collection"  Enums(played, wishlist)
// @Param       body  body  handlers.ToggleStatusRequest  true  "Serialized game"
// @Success     200  {object}  handlers.ToggleStatusResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed game payload"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /users/me/status/{kind}/toggle [post]
func (h *Handlers) ToggleStatus(c *gin.Context) {
	kind, err := statusKind(c)
	if err != nil {
		failErr(c, err, ErrCodeBadRequest)
		return
	}
	var req ToggleStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeMalformedParameter, "game payload required")
		return
	}
	game, err := decodeGamePayload(req.Game)
	if err != nil {
		failErr(c, err, ErrCodeBadRequest)
		return
	}
	member, err := h.statusSvc.Toggle(c.Request.Context(), callerID(c), kind, game)
	if err != nil {
		failErr(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusOK, ToggleStatusResponse{GameID: game.ID, Kind: kind, Member: member})
}

// ContainsStatus godoc
// @ID          containsStatus
// @Summary     Is a game in the caller's collection
// @Tags        Status
// @Produce     json
// @Security    BearerAuth
// @Param       kind    path  string  true  "Collection"  Enums(played, wishlist)
// @Param       gameId  path  string  true  "Game ID"
// @Success     200  {object}  handlers.ContainsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown kind"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /users/me/status/{kind}/{gameId} [get]
func (h *Handlers) ContainsStatus(c *gin.Context) {
	// /users/me/status/:kind/ws shares this route shape
	if c.Param("gameId") == "ws" && isUpgrade(c) {
		h.observeStatus(c, callerID(c))
		return
	}
	kind, err := statusKind(c)
	if err != nil {
		failErr(c, err, ErrCodeBadRequest)
		return
	}
	uid := callerID(c)
	if uid == "" {
		failErr(c, services.ErrNotAuthenticated, ErrCodeUnauthorized)
		return
	}
	gameID := c.Param("gameId")
	member, err := h.statusSvc.Contains(c.Request.Context(), uid, kind, gameID)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, ContainsResponse{GameID: gameID, Kind: kind, Member: member})
}

// ListStatus godoc
// @ID          listStatus
// @Summary     List a user's played or wishlist games
// @Description Newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Status
// @Produce     json
// @Param       id             path    string  true   "User ID or \"me\""
// @Param       kind           path    string  true   "Collection"  Enums(played, wishlist)
// @Param       limit          query   int     false  "Max entries"  minimum(1) maximum(500) default(100)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {array}   domain.StatusEntry
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /users/{id}/status/{kind} [get]
func (h *Handlers) ListStatus(c *gin.Context) {
	ctx := c.Request.Context()
	kind, err := statusKind(c)
	if err != nil {
		failErr(c, err, ErrCodeBadRequest)
		return
	}
	uid := pathUser(c)
	limit := clampLimit(c, 100, 500)

	entries, err := h.statusSvc.List(ctx, uid, kind, limit)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	okTagged(c, fmt.Sprintf("status:%s:%s:%d", uid, kind, limit), asArray(entries))
}

// ObserveStatus godoc
// @ID          observeStatus
// @Summary     Live played or wishlist list (websocket)
// @Description Upgrades to a websocket and sends the full list as a JSON array after every change.
// @Tags        Status
// @Param       id    path  string  true  "User ID"
// @Param       kind  path  string  true  "Collection"  Enums(played, wishlist)
// @Success     101  {array}   domain.StatusEntry
// @Failure     400  {object}  handlers.ErrorResponse  "Not a websocket request"
// @Router      /users/{id}/status/{kind}/ws [get]
func (h *Handlers) ObserveStatus(c *gin.Context) {
	h.observeStatus(c, pathUser(c))
}

func (h *Handlers) observeStatus(c *gin.Context, uid string) {
	kind, err := statusKind(c)
	if err != nil {
		failErr(c, err, ErrCodeBadRequest)
		return
	}
	serveStream(c,
		func(ctx context.Context) (*services.StatusStream, error) {
			return h.statusSvc.Observe(ctx, uid, kind)
		},
		func(_ context.Context, items []domain.StatusEntry) []domain.StatusEntry { return asArray(items) },
	)
}
