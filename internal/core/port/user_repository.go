package port

import (
	"context"
	"time"

	"github.com/finvora/invoicing-auth/internal/core/domain"
)

// UserRepository persists user accounts and credentials.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// UpdatePassword swaps the stored hash and stamps password_changed_at,
	// which in turn invalidates access tokens issued before changedAt.
	UpdatePassword(ctx context.Context, userID, passwordHash string, changedAt time.Time) error
	// SetTwoFactor stores or clears the TOTP secret and toggles enforcement.
	SetTwoFactor(ctx context.Context, userID string, secret *string, enabled bool) error
}
