package port

import (
	"context"
	"time"

	"github.com/finvora/invoicing-auth/internal/core/domain"
)

// ResetTokenRepository persists single-use password reset tokens.
type ResetTokenRepository interface {
	Create(ctx context.Context, token *domain.PasswordResetToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error)
	MarkUsed(ctx context.Context, id string, usedAt time.Time) error
}
