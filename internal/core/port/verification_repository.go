package port

import (
	"context"

	"github.com/finvora/invoicing-auth/internal/core/domain"
)

// VerificationRepository manages the one-live-token-per-user email
// verification ledger.
type VerificationRepository interface {
	// Upsert replaces any existing verification row for the token's user.
	Upsert(ctx context.Context, verification *domain.EmailVerification) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.EmailVerification, error)
	// Consume marks the user's email verified and removes the verification
	// row. Both writes happen in a single transaction.
	Consume(ctx context.Context, userID string) error
}
