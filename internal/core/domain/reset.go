package domain

import "time"

// PasswordResetToken is a single-use credential for completing a password
// reset. Multiple live tokens may exist per user; each is consumed
// independently.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// IsExpired reports whether the token has passed its expiry at the given
// instant. Expiring exactly now counts as expired.
func (t *PasswordResetToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// Consume marks the token used at the given instant. It returns false when
// the token was already used or expired, leaving the token unchanged.
func (t *PasswordResetToken) Consume(at time.Time) bool {
	if t.UsedAt != nil || t.IsExpired(at) {
		return false
	}
	used := at
	t.UsedAt = &used
	return true
}
