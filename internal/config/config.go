// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the document store backend, fan-out
// tuning, identity, the game catalog, rate limiting, and observability.
//
// Values are resolved in order: environment variable, then the optional
// YAML file named by CONFIG_FILE (a flat map keyed by the same variable
// names), then the built-in default.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-gamesocial-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Backend            string // sqlite|firestore
	DBPath             string // SQLite path (sqlite backend)
	FirestoreProjectID string // GCP project (firestore backend)
}

// RedisConfig enables cross-instance change notifications when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig configures bearer-token validation.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// FanoutConfig tunes notification fan-out and inbox retention.
type FanoutConfig struct {
	Concurrency   int           // parallel inbox writes per publish
	WriteTimeout  time.Duration // per inbox write
	Async         bool          // publish after the status write returns
	InboxMaxItems int           // newest records kept per inbox; 0 keeps all
}

// IGDBConfig configures the catalog metadata resolver. Empty credentials
// run the service without a catalog.
type IGDBConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	RPS          float64
}

// Enabled reports whether credentials are configured.
func (c IGDBConfig) Enabled() bool { return c.ClientID != "" && c.ClientSecret != "" }

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Domain
	Store  StoreConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Fanout FanoutConfig
	IGDB   IGDBConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from the environment and CONFIG_FILE, applies
// defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	src, err := newSource(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		// Server
		Port:              src.getenv("PORT", "8080"),
		ReadTimeout:       src.getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: src.getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      src.getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       src.getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    src.getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(src.getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(src.getenv("LOG_LEVEL", "info")),
		LogPretty:      src.getbool("LOG_PRETTY", false),
		SwaggerEnabled: src.getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(src.getenv("API_BASE_PATH", "/api/v1")),

		// Domain
		Store: StoreConfig{
			Backend:            strings.ToLower(src.getenv("STORE_BACKEND", BackendSQLite)),
			DBPath:             src.getenv("DB_PATH", "gamesocial.db"),
			FirestoreProjectID: src.getenv("FIRESTORE_PROJECT_ID", ""),
		},
		Redis: RedisConfig{
			Addr:     src.getenv("REDIS_ADDR", ""),
			Password: src.getenv("REDIS_PASSWORD", ""),
			DB:       src.getint("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: src.getenv("JWT_SECRET", ""),
			JWTIssuer: src.getenv("JWT_ISSUER", "gamesocial"),
		},
		Fanout: FanoutConfig{
			Concurrency:   src.getint("FANOUT_CONCURRENCY", 16),
			WriteTimeout:  src.getdur("FANOUT_WRITE_TIMEOUT", 5*time.Second),
			Async:         src.getbool("FANOUT_ASYNC", false),
			InboxMaxItems: src.getint("INBOX_MAX_ITEMS", 200),
		},
		IGDB: IGDBConfig{
			ClientID:     src.getenv("IGDB_CLIENT_ID", ""),
			ClientSecret: src.getenv("IGDB_CLIENT_SECRET", ""),
			BaseURL:      src.getenv("IGDB_BASE_URL", "https://api.igdb.com/v4"),
			TokenURL:     src.getenv("IGDB_TOKEN_URL", "https://id.twitch.tv/oauth2/token"),
			RPS:          src.getfloat("IGDB_RPS", 4),
		},

		// Rate limiting
		RateRPS:   src.getfloat("RATE_RPS", 5.0),
		RateBurst: src.getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(src.getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: src.getbool("ENABLE_HSTS", false),
			HSTSMaxAge: src.getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: src.getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     src.getbool("OTEL_ENABLED", false),
			Endpoint:    src.getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    src.getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: src.getenv("OTEL_SERVICE_NAME", "go-gamesocial-backend"),
			SampleRatio: src.getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.Store.Backend {
	case BackendSQLite:
		if strings.TrimSpace(cfg.Store.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case BackendFirestore:
		if strings.TrimSpace(cfg.Store.FirestoreProjectID) == "" {
			return cfg, errors.New("FIRESTORE_PROJECT_ID is required for the firestore backend")
		}
	default:
		return cfg, errors.New("STORE_BACKEND must be one of: sqlite, firestore")
	}
	if len(cfg.Auth.JWTSecret) < 16 {
		return cfg, errors.New("JWT_SECRET must be at least 16 characters")
	}
	if cfg.Fanout.Concurrency < 1 {
		return cfg, errors.New("FANOUT_CONCURRENCY must be >= 1")
	}
	if cfg.Fanout.WriteTimeout <= 0 {
		return cfg, errors.New("FANOUT_WRITE_TIMEOUT must be > 0")
	}
	if cfg.Fanout.InboxMaxItems < 0 {
		return cfg, errors.New("INBOX_MAX_ITEMS must be >= 0")
	}
	if cfg.IGDB.RPS <= 0 {
		return cfg, errors.New("IGDB_RPS must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- sources ----

// source resolves keys from the environment first and the file overlay
// second.
type source struct {
	file map[string]string
}

func newSource(path string) (source, error) {
	if strings.TrimSpace(path) == "" {
		return source{}, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return source{}, fmt.Errorf("config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(buf, &raw); err != nil {
		return source{}, fmt.Errorf("in config file %s: %w", path, err)
	}
	file := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		if list, ok := v.([]any); ok {
			parts := make([]string, 0, len(list))
			for _, p := range list {
				parts = append(parts, fmt.Sprint(p))
			}
			file[strings.ToUpper(k)] = strings.Join(parts, ",")
			continue
		}
		file[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return source{file: file}, nil
}

func (s source) lookup(k string) (string, bool) {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v, true
	}
	if v, ok := s.file[k]; ok && v != "" {
		return v, true
	}
	return "", false
}

func (s source) getenv(k, def string) string {
	if v, ok := s.lookup(k); ok {
		return v
	}
	return def
}

func (s source) getfloat(k string, def float64) float64 {
	if v, ok := s.lookup(k); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func (s source) getint(k string, def int) int {
	if v, ok := s.lookup(k); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func (s source) getbool(k string, def bool) bool {
	if v, ok := s.lookup(k); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func (s source) getdur(k string, def time.Duration) time.Duration {
	if v, ok := s.lookup(k); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
