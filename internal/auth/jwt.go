// Package auth is the identity provider of the HTTP layer: it validates
// HS256 bearer tokens, puts the resulting caller on the request context and
// exposes it to the services through ContextProvider.
//
// Tokens carry the user id in `sub` and the display name in `name`. They are
// minted by the sign-in service; Issue exists for tooling and tests.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-gamesocial-backend/internal/domain"
)

var (
	// ErrInvalidToken covers malformed, badly signed or subject-less tokens.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrTokenExpired is returned for tokens past their exp claim.
	ErrTokenExpired = errors.New("auth: token expired")
)

const minSecretLen = 16

// TokenService signs and validates access tokens.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenService requires a secret of at least 16 bytes. An empty issuer
// disables the iss check.
func NewTokenService(secret, issuer string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", minSecretLen)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenService{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

type claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token for c valid for the configured ttl.
func (s *TokenService) Issue(c domain.Caller) (string, error) {
	if !domain.ValidID(c.UserID) {
		return "", ErrInvalidToken
	}
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name:  c.DisplayName,
		Email: c.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses raw and returns the caller it identifies.
func (s *TokenService) Validate(raw string) (domain.Caller, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var c claims
	tok, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) { return s.secret, nil }, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Caller{}, ErrTokenExpired
		}
		return domain.Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid || !domain.ValidID(c.Subject) {
		return domain.Caller{}, ErrInvalidToken
	}
	return domain.Caller{UserID: c.Subject, DisplayName: c.Name, Email: c.Email}, nil
}
