package domain

import "time"

// Session records one refresh-token grant. Sessions are never deleted;
// invalidation flips IsValid so the row remains as an audit trail.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	UserAgent        *string
	IPAddress        *string
	IsValid          bool
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// IsExpired reports whether the session has passed its expiry at the given
// instant. Expiring exactly now counts as expired.
func (s *Session) IsExpired(at time.Time) bool {
	return !s.ExpiresAt.After(at)
}

// IsActive reports whether the session can still mint access tokens.
func (s *Session) IsActive(at time.Time) bool {
	return s.IsValid && !s.IsExpired(at)
}

// Invalidate flips the session invalid. It returns false when the session
// was already invalid.
func (s *Session) Invalidate() bool {
	if !s.IsValid {
		return false
	}
	s.IsValid = false
	return true
}
