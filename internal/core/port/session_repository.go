package port

import (
	"context"

	"github.com/finvora/invoicing-auth/internal/core/domain"
)

// SessionRepository persists refresh-token sessions. Rows are never
// deleted; invalidation flips is_valid in place.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByRefreshTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Session, error)
	Invalidate(ctx context.Context, sessionID string) error
	// InvalidateAllForUser flips every valid session for the user and
	// returns how many rows were affected.
	InvalidateAllForUser(ctx context.Context, userID string) (int, error)
}
