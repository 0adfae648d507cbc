package domain

import "time"

// EmailVerification is the single live verification token for a user.
// Only the SHA-256 hash of the token is persisted; issuing a new token
// replaces any previous row for the same user.
type EmailVerification struct {
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the verification is no longer usable at the
// given instant. A token expiring exactly now counts as expired.
func (v *EmailVerification) IsExpired(at time.Time) bool {
	return !v.ExpiresAt.After(at)
}
