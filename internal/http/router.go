// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// authentication, CORS, compression, security headers, idempotency, and rate
// limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-gamesocial-backend/internal/auth"
	"github.com/tbourn/go-gamesocial-backend/internal/config"
	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/http/handlers"
	"github.com/tbourn/go-gamesocial-backend/internal/http/middleware"
	"github.com/tbourn/go-gamesocial-backend/internal/repo"
	"github.com/tbourn/go-gamesocial-backend/internal/services"
)

// Services bundles the application services mounted by RegisterRoutes.
type Services struct {
	Users    *services.UserService
	Graph    *services.GraphService
	Fanout   *services.FanoutService
	Status   *services.StatusService
	Inbox    *services.InboxService
	Feed     *services.FeedService
	Comments *services.CommentService
}

// NewServices builds the service graph over st. catalog may be nil.
func NewServices(st docstore.Store, catalog services.MetadataResolver, cfg config.Config) *Services {
	identity := auth.ContextProvider{}

	graph := &services.GraphService{Store: st, Identity: identity}
	fanout := &services.FanoutService{
		Store:        st,
		Followers:    graph,
		Concurrency:  cfg.Fanout.Concurrency,
		WriteTimeout: cfg.Fanout.WriteTimeout,
	}
	return &Services{
		Users:  &services.UserService{Store: st, Identity: identity},
		Graph:  graph,
		Fanout: fanout,
		Status: &services.StatusService{
			Store:    st,
			Identity: identity,
			Catalog:  catalog,
			Fanout:   fanout,
			Async:    cfg.Fanout.Async,
		},
		Inbox:    &services.InboxService{Store: st, Identity: identity, Cap: cfg.Fanout.InboxMaxItems},
		Feed:     &services.FeedService{Store: st},
		Comments: &services.CommentService{Store: st, Identity: identity, IdempotencyTTL: cfg.IdempotencyTTL},
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), authentication,
// idempotency and rate limiting, CORS and security headers, health and
// metrics endpoints, and then mounts the versioned public API under
// cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Optional auth (attaches the caller for the two below)
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS, compression and security headers
func RegisterRoutes(r *gin.Engine, st docstore.Store, tokens *auth.TokenService, svcs *Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Caller identity, when a bearer token is present
	r.Use(auth.OptionalAuth(tokens))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, st, userID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).
		Exempt("/health", "/metrics")
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Compression; websocket upgrades and the Prometheus endpoint stay raw
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/metrics"}),
		gzip.WithExcludedPathsRegexs([]string{`.*/ws$`}),
	))

	// Security headers (HSTS only when enabled and request is HTTPS)
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		NoStorePrefixes: []string{joinPath(apiBase, "/users/me")},
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(svcs.Users, svcs.Graph, svcs.Status, svcs.Inbox, svcs.Feed, svcs.Comments)
	authed := auth.RequireAuth(tokens)

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		// Users
		api.POST("/users/me", authed, h.EnsureProfile)
		api.PUT("/users/me/username", authed, h.RenameUser)
		api.GET("/users/search", h.SearchUsers)
		api.GET("/users/:id", h.GetUser)

		// Follows
		api.POST("/users/:id/follow", authed, h.Follow)
		api.DELETE("/users/:id/follow", authed, h.Unfollow)
		api.GET("/users/:id/followers", h.ListFollowers)
		api.GET("/users/:id/following", h.ListFollowing)
		api.GET("/users/:id/follow-status", h.FollowStatus)

		// Played / wishlist
		api.PUT("/users/me/status/:kind/:gameId", authed, h.AddStatus)
		api.DELETE("/users/me/status/:kind/:gameId", authed, h.RemoveStatus)
		api.POST("/users/me/status/:kind/toggle", authed, h.ToggleStatus)
		api.GET("/users/me/status/:kind/:gameId", h.ContainsStatus)
		api.GET("/users/:id/status/:kind", h.ListStatus)
		api.GET("/users/:id/status/:kind/ws", h.ObserveStatus)

		// Notifications
		api.GET("/users/me/notifications", authed, h.ListNotifications)
		api.GET("/users/me/notifications/ws", authed, h.ObserveNotifications)
		api.DELETE("/users/me/notifications", authed, h.PruneNotifications)

		// Feeds
		api.GET("/users/me/feed", authed, h.GetFeed)
		api.GET("/users/:id/activity.atom", h.ActivityAtom)

		// Comments
		api.GET("/games/:id/comments", h.ListComments)
		api.POST("/games/:id/comments", authed, h.CreateComment)
		api.GET("/games/:id/comments/ws", h.ObserveComments)
		api.GET("/games/:id/comments/:commentId", h.GetComment)
		api.PUT("/games/:id/comments/:commentId", authed, h.EditComment)
		api.DELETE("/games/:id/comments/:commentId", authed, h.DeleteComment)
		api.POST("/games/:id/comments/:commentId/like", authed, h.LikeComment)
		api.GET("/games/:id/comments/:commentId/replies", h.ListReplies)
		api.POST("/games/:id/comments/:commentId/replies", authed, h.CreateReply)
		api.DELETE("/games/:id/comments/:commentId/replies/:replyId", authed, h.DeleteReply)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func joinPath(prefix, p string) string {
	if prefix == "" || prefix == "/" {
		return p
	}
	return prefix + p
}
