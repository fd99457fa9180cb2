// Package catalog resolves game metadata (name and cover art) for the status
// service when a client submits an incomplete game payload.
//
// IGDB is the production source. Its API takes a Twitch app token obtained
// with the OAuth2 client-credentials grant and allows 4 requests per second
// per client, so every call waits on a token-bucket limiter first.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-gamesocial-backend/internal/domain"
)

const (
	DefaultBaseURL  = "https://api.igdb.com/v4"
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"
	DefaultRPS      = 4.0

	coverTemplate = "https://images.igdb.com/igdb/image/upload/t_1080p/%s.jpg"
)

var (
	// ErrGameNotFound is returned when the catalog has no game with the id.
	ErrGameNotFound = errors.New("catalog: game not found")
	// ErrInvalidGameID is returned for ids IGDB cannot address (non-numeric).
	ErrInvalidGameID = errors.New("catalog: invalid game id")
)

// Config configures the IGDB client.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	RPS          float64
	Timeout      time.Duration
}

// IGDB resolves metadata against the IGDB v4 API.
type IGDB struct {
	client   *http.Client
	base     string
	clientID string
	limiter  *rate.Limiter
}

// NewIGDB returns a client whose HTTP transport fetches and refreshes the
// app token on demand. ctx scopes token requests.
func NewIGDB(ctx context.Context, cfg Config) (*IGDB, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("catalog: IGDB client id and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.RPS <= 0 {
		cfg.RPS = DefaultRPS
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	// token requests share the timeout of API calls
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})
	hc := cc.Client(ctx)
	hc.Timeout = cfg.Timeout

	return &IGDB{
		client:   hc,
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		clientID: cfg.ClientID,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RPS), 1),
	}, nil
}

type igdbCover struct {
	URL     string `json:"url"`
	ImageID string `json:"image_id"`
}

type igdbGame struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	Cover *igdbCover `json:"cover"`
}

// Resolve fetches name and cover of gameID.
func (c *IGDB) Resolve(ctx context.Context, gameID string) (domain.GameSnapshot, error) {
	ctx, span := otel.Tracer("catalog/IGDB").Start(ctx, "Resolve",
		trace.WithAttributes(attribute.String("game.id", gameID)),
	)
	defer span.End()

	id, err := strconv.ParseInt(strings.TrimSpace(gameID), 10, 64)
	if err != nil || id <= 0 {
		return domain.GameSnapshot{}, ErrInvalidGameID
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.GameSnapshot{}, err
	}

	body := fmt.Sprintf("fields name,cover.url,cover.image_id; where id = %d; limit 1;", id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/games", bytes.NewBufferString(body))
	if err != nil {
		return domain.GameSnapshot{}, err
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")

	res, err := c.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("game", gameID).Msg("igdb request failed")
		return domain.GameSnapshot{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return domain.GameSnapshot{}, fmt.Errorf("catalog: igdb status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}

	var games []igdbGame
	if err := json.NewDecoder(res.Body).Decode(&games); err != nil {
		return domain.GameSnapshot{}, fmt.Errorf("catalog: decode igdb response: %w", err)
	}
	if len(games) == 0 {
		return domain.GameSnapshot{}, ErrGameNotFound
	}
	g := games[0]
	return domain.GameSnapshot{
		ID:       strconv.FormatInt(id, 10),
		Name:     g.Name,
		CoverURL: coverURL(g.Cover),
	}.Normalize(), nil
}

// coverURL turns an IGDB cover into an absolute 1080p image URL. The image
// id is preferred; a protocol-relative url is upgraded to https and its
// size segment replaced.
func coverURL(cv *igdbCover) *string {
	if cv == nil {
		return nil
	}
	var u string
	switch {
	case strings.TrimSpace(cv.ImageID) != "":
		u = fmt.Sprintf(coverTemplate, strings.TrimSpace(cv.ImageID))
	case strings.TrimSpace(cv.URL) != "":
		u = strings.TrimSpace(cv.URL)
		if strings.HasPrefix(u, "//") {
			u = "https:" + u
		}
		u = strings.Replace(u, "/t_thumb/", "/t_1080p/", 1)
	default:
		return nil
	}
	return &u
}
