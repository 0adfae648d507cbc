package domain

import "time"

// User represents an account holder on the invoicing platform.
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	EmailVerified     bool
	TwoFactorSecret   *string
	TwoFactorEnabled  bool
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
}

// RequiresTwoFactor reports whether login must be completed with a TOTP code.
func (u *User) RequiresTwoFactor() bool {
	return u.TwoFactorEnabled && u.TwoFactorSecret != nil && *u.TwoFactorSecret != ""
}

// TokenIssuedBeforePasswordChange reports whether a token issued at the given
// time predates the most recent password change. Such tokens are stale and
// must be rejected.
func (u *User) TokenIssuedBeforePasswordChange(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Before(*u.PasswordChangedAt)
}
