// Command server runs the game social API: follow graph, played and
// wishlist collections, notification fan-out, feeds and game discussions.
//
// @title                      Game Social API
// @version                    1.0
// @description                Follows, played/wishlist collections, notification inboxes, activity feeds and comments.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-gamesocial-backend/docs"
	"github.com/tbourn/go-gamesocial-backend/internal/auth"
	"github.com/tbourn/go-gamesocial-backend/internal/catalog"
	"github.com/tbourn/go-gamesocial-backend/internal/config"
	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/docstore/firestore"
	"github.com/tbourn/go-gamesocial-backend/internal/docstore/redisnotify"
	"github.com/tbourn/go-gamesocial-backend/internal/docstore/sqlstore"
	httpapi "github.com/tbourn/go-gamesocial-backend/internal/http"
	"github.com/tbourn/go-gamesocial-backend/internal/observability"
	"github.com/tbourn/go-gamesocial-backend/internal/services"
	"github.com/tbourn/go-gamesocial-backend/internal/sysutil"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, nil)
	version := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), "dev")

	if err := run(cfg, version); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg config.Config, version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("store close")
		}
	}()

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, time.Hour)
	if err != nil {
		return err
	}

	var resolver services.MetadataResolver
	if cfg.IGDB.Enabled() {
		igdb, err := catalog.NewIGDB(ctx, catalog.Config{
			ClientID:     cfg.IGDB.ClientID,
			ClientSecret: cfg.IGDB.ClientSecret,
			BaseURL:      cfg.IGDB.BaseURL,
			TokenURL:     cfg.IGDB.TokenURL,
			RPS:          cfg.IGDB.RPS,
		})
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		resolver = igdb
	} else {
		log.Info().Msg("IGDB credentials not set; game metadata comes from clients only")
	}

	gin.SetMode(cfg.GinMode)
	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	docs.SwaggerInfo.Version = version

	r := gin.New()
	svcs := httpapi.NewServices(st, resolver, cfg)
	httpapi.RegisterRoutes(r, st, tokens, svcs, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		// stream handlers derive their lifetime from ctx
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Str("store", cfg.Store.Backend).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	// let in-flight fan-outs land before the store closes
	svcs.Status.Wait()
	return nil
}

// openStore opens the configured backend. With REDIS_ADDR set, change
// signals of the SQLite store are shared with the other instances.
func openStore(ctx context.Context, cfg config.Config) (docstore.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendFirestore:
		st, err := firestore.Open(ctx, cfg.Store.FirestoreProjectID)
		if err != nil {
			return nil, fmt.Errorf("firestore: %w", err)
		}
		return st, nil
	default:
		hub := docstore.NewHub()
		if cfg.Redis.Addr != "" {
			n, err := redisnotify.New(ctx, redisnotify.Config{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			}, hub)
			if err != nil {
				return nil, err
			}
			go func() {
				defer n.Close()
				if err := n.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error().Err(err).Msg("redis change listener stopped")
				}
			}()
		}
		st, err := sqlstore.Open(cfg.Store.DBPath, sqlstore.WithHub(hub), sqlstore.WithTracing())
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return st, nil
	}
}
