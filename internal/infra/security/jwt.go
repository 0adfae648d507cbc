package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenExpired indicates a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("security: token expired")
	// ErrTokenInvalid indicates a malformed token, a bad signature, or a
	// token signed for the other token class.
	ErrTokenInvalid = errors.New("security: token invalid")
)

// TokenClaims is the decoded payload of an access or refresh token.
type TokenClaims struct {
	UserID   string
	TokenID  string
	IssuedAt time.Time
	ExpireAt time.Time
}

// TokenCodecConfig configures the JWT codec. Access and refresh tokens are
// signed with distinct secrets so one class can never be replayed as the
// other.
type TokenCodecConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// TokenCodec issues and verifies HS256 JWTs.
type TokenCodec struct {
	cfg TokenCodecConfig
	now func() time.Time
}

// NewTokenCodec validates the config and returns a codec.
func NewTokenCodec(cfg TokenCodecConfig) (*TokenCodec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("security: token secrets must not be empty")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("security: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 168 * time.Hour
	}

	return &TokenCodec{cfg: cfg, now: time.Now}, nil
}

// WithClock injects a custom clock, primarily for tests.
func (tc *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	if now != nil {
		tc.now = now
	}
	return tc
}

// AccessTTL returns the configured access token lifetime.
func (tc *TokenCodec) AccessTTL() time.Duration {
	return tc.cfg.AccessTTL
}

// RefreshTTL returns the configured refresh token lifetime.
func (tc *TokenCodec) RefreshTTL() time.Duration {
	return tc.cfg.RefreshTTL
}

// IssueAccessToken mints a short-lived access token for the user.
func (tc *TokenCodec) IssueAccessToken(userID string) (string, error) {
	return tc.issue(userID, tc.cfg.AccessSecret, tc.cfg.AccessTTL)
}

// IssueRefreshToken mints a long-lived refresh token for the user.
func (tc *TokenCodec) IssueRefreshToken(userID string) (string, error) {
	return tc.issue(userID, tc.cfg.RefreshSecret, tc.cfg.RefreshTTL)
}

func (tc *TokenCodec) issue(userID string, secret []byte, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("security: user id is required")
	}

	now := tc.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    tc.cfg.Issuer,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseAccessToken verifies an access token and returns its claims.
func (tc *TokenCodec) ParseAccessToken(tokenString string) (*TokenClaims, error) {
	return tc.parse(tokenString, tc.cfg.AccessSecret)
}

// ParseRefreshToken verifies a refresh token and returns its claims.
func (tc *TokenCodec) ParseRefreshToken(tokenString string) (*TokenClaims, error) {
	return tc.parse(tokenString, tc.cfg.RefreshSecret)
}

func (tc *TokenCodec) parse(tokenString string, secret []byte) (*TokenClaims, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return secret, nil
	}, jwt.WithTimeFunc(tc.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	parsed := &TokenClaims{
		UserID:  claims.Subject,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		parsed.ExpireAt = claims.ExpiresAt.Time
	}

	return parsed, nil
}
