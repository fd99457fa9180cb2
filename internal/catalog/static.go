package catalog

import (
	"context"

	"github.com/tbourn/go-gamesocial-backend/internal/domain"
)

// Static resolves from a fixed map. It serves offline mode (no IGDB
// credentials configured) and tests.
type Static map[string]domain.GameSnapshot

func (s Static) Resolve(_ context.Context, gameID string) (domain.GameSnapshot, error) {
	g, ok := s[gameID]
	if !ok {
		return domain.GameSnapshot{}, ErrGameNotFound
	}
	g.ID = gameID
	return g.Normalize(), nil
}
