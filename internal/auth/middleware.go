package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-gamesocial-backend/internal/domain"
)

// GinKeyUserID is the gin context key read by the idempotency and rate
// limiting middleware.
const GinKeyUserID = "userID"

type callerKey struct{}

// WithCaller returns ctx carrying c.
func WithCaller(ctx context.Context, c domain.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored by the auth middleware.
func CallerFrom(ctx context.Context) (domain.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(domain.Caller)
	return c, ok && c.UserID != ""
}

// ContextProvider is the services.IdentityProvider backed by the request
// context.
type ContextProvider struct{}

func (ContextProvider) Current(ctx context.Context) (domain.Caller, bool) { return CallerFrom(ctx) }

// RequireAuth rejects requests without a valid token with 401. A caller
// already attached by OptionalAuth is accepted as is.
func RequireAuth(tokens *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CallerFrom(c.Request.Context()); !ok && !authenticate(c, tokens) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "unauthorized",
				"message":    "valid authentication required",
			})
			return
		}
		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(tokens *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticate(c, tokens)
		c.Next()
	}
}

func authenticate(c *gin.Context, tokens *TokenService) bool {
	raw := bearer(c)
	if raw == "" || tokens == nil {
		return false
	}
	caller, err := tokens.Validate(raw)
	if err != nil {
		return false
	}
	c.Set(GinKeyUserID, caller.UserID)
	c.Request = c.Request.WithContext(WithCaller(c.Request.Context(), caller))
	return true
}

// bearer reads the token from the Authorization header, falling back to the
// access_token query parameter for websocket upgrades, where browsers
// cannot set headers.
func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return strings.TrimSpace(c.Query("access_token"))
	}
	return ""
}
