package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finvora/invoicing-auth/internal/core/domain"
	"github.com/finvora/invoicing-auth/internal/core/port"
	"github.com/finvora/invoicing-auth/internal/infra/logger"
	"github.com/finvora/invoicing-auth/internal/infra/security"
	"github.com/finvora/invoicing-auth/internal/repository"
)

var (
	// ErrInvalidCredentials is returned for both unknown email and wrong
	// password so callers cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotVerified blocks login until the address is confirmed.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrInvalidRefreshToken covers missing, invalidated, and expired
	// refresh tokens.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrExpiredAccessToken indicates a well-formed access token past expiry.
	ErrExpiredAccessToken = errors.New("access token expired")
	// ErrInvalidAccessToken indicates a malformed or stale access token.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrTwoFactorCodeInvalid indicates a rejected TOTP code.
	ErrTwoFactorCodeInvalid = errors.New("two-factor code invalid")
	// ErrTwoFactorNotPending is returned when the 2FA step is attempted for
	// a user without 2FA enabled.
	ErrTwoFactorNotPending = errors.New("two-factor verification not pending")
	// ErrTwoFactorAlreadyEnabled guards repeated enrollment.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor already enabled")
	// ErrUserNotFound indicates the referenced account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound indicates the referenced session does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

// TokenPair carries a freshly issued access/refresh token pair.
type TokenPair struct {
	AccessToken          string
	RefreshToken         string
	AccessTokenExpiresAt time.Time
}

// LoginInput captures the credentials and client metadata for a login attempt.
type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

// LoginResult is the outcome of the first login step. When the account has
// two-factor enabled, Tokens is nil and TwoFactorRequired is set; the caller
// must complete VerifyTwoFactor to obtain tokens.
type LoginResult struct {
	User              *domain.User
	Tokens            *TokenPair
	TwoFactorRequired bool
}

// AuthService implements credential verification and the session lifecycle.
type AuthService struct {
	users    port.UserRepository
	sessions port.SessionRepository
	hasher   *security.PasswordHasher
	codec    *security.TokenCodec
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService constructs the authentication service.
func NewAuthService(
	users port.UserRepository,
	sessions port.SessionRepository,
	hasher *security.PasswordHasher,
	codec *security.TokenCodec,
	log *zap.Logger,
) (*AuthService, error) {
	if users == nil || sessions == nil {
		return nil, errors.New("user and session repositories are required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	if codec == nil {
		return nil, errors.New("token codec is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		codec:    codec,
		logger:   log,
		now:      time.Now,
	}, nil
}

// WithClock injects a custom clock, primarily for testing.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// Login verifies the credentials and, unless two-factor is enabled, opens a
// session and issues a token pair.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	match, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return nil, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	if user.RequiresTwoFactor() {
		s.logger.Info("login pending two-factor",
			zap.String("user_id", user.ID),
			zap.String("email", logger.MaskEmail(user.Email)),
		)
		return &LoginResult{User: user, TwoFactorRequired: true}, nil
	}

	tokens, err := s.openSession(ctx, user, input.UserAgent, input.IPAddress)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login succeeded",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	return &LoginResult{User: user, Tokens: tokens}, nil
}

// VerifyTwoFactor completes a two-factor login. On success it opens the
// session and issues the token pair that the first step withheld.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, userID, code, userAgent, ipAddress string) (*LoginResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !user.RequiresTwoFactor() {
		return nil, ErrTwoFactorNotPending
	}

	ok, err := security.VerifyTOTP(*user.TwoFactorSecret, code, s.now())
	if err != nil {
		return nil, fmt.Errorf("verify totp: %w", err)
	}
	if !ok {
		s.logger.Warn("two-factor code rejected", zap.String("user_id", user.ID))
		return nil, ErrTwoFactorCodeInvalid
	}

	tokens, err := s.openSession(ctx, user, userAgent, ipAddress)
	if err != nil {
		return nil, err
	}

	s.logger.Info("two-factor login succeeded", zap.String("user_id", user.ID))

	return &LoginResult{User: user, Tokens: tokens}, nil
}

// openSession issues a token pair and records the refresh grant. Only the
// SHA-256 hash of the refresh token reaches storage.
func (s *AuthService) openSession(ctx context.Context, user *domain.User, userAgent, ipAddress string) (*TokenPair, error) {
	accessToken, err := s.codec.IssueAccessToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, err := s.codec.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	now := s.now().UTC()
	session := &domain.Session{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		RefreshTokenHash: security.HashToken(refreshToken),
		IsValid:          true,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.codec.RefreshTTL()),
	}
	if ua := strings.TrimSpace(userAgent); ua != "" {
		session.UserAgent = &ua
	}
	if ip := strings.TrimSpace(ipAddress); ip != "" {
		session.IPAddress = &ip
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &TokenPair{
		AccessToken:          accessToken,
		RefreshToken:         refreshToken,
		AccessTokenExpiresAt: now.Add(s.codec.AccessTTL()),
	}, nil
}

// RefreshAccessToken mints a new access token for a live session. A refresh
// token that fails verification, or whose session is gone, invalid, or
// expired, is treated as a compromise signal: every session belonging to
// the token's user is invalidated before the error is returned.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := s.codec.ParseRefreshToken(refreshToken)
	if err != nil {
		return "", time.Time{}, ErrInvalidRefreshToken
	}

	session, err := s.sessions.GetByRefreshTokenHash(ctx, security.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.invalidateAllOnDeadToken(ctx, claims.UserID, "session missing")
			return "", time.Time{}, ErrInvalidRefreshToken
		}
		return "", time.Time{}, fmt.Errorf("lookup session: %w", err)
	}

	if !session.IsActive(s.now()) {
		s.invalidateAllOnDeadToken(ctx, session.UserID, "session dead")
		return "", time.Time{}, ErrInvalidRefreshToken
	}

	accessToken, err := s.codec.IssueAccessToken(session.UserID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("issue access token: %w", err)
	}

	return accessToken, s.now().UTC().Add(s.codec.AccessTTL()), nil
}

func (s *AuthService) invalidateAllOnDeadToken(ctx context.Context, userID, reason string) {
	if userID == "" {
		return
	}
	count, err := s.sessions.InvalidateAllForUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to invalidate sessions after dead refresh token",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return
	}
	s.logger.Warn("invalidated all sessions after dead refresh token",
		zap.String("user_id", userID),
		zap.String("reason", reason),
		zap.Int("sessions", count),
	)
}

// ParseAccessToken verifies an access token and rejects tokens issued before
// the user's most recent password change.
func (s *AuthService) ParseAccessToken(ctx context.Context, accessToken string) (*security.TokenClaims, error) {
	claims, err := s.codec.ParseAccessToken(accessToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidAccessToken
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if user.TokenIssuedBeforePasswordChange(claims.IssuedAt) {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}

// Logout invalidates the session carried by the presented refresh token.
// Unknown tokens are reported as invalid without touching other sessions.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.sessions.GetByRefreshTokenHash(ctx, security.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidRefreshToken
		}
		return fmt.Errorf("lookup session: %w", err)
	}

	if err := s.sessions.Invalidate(ctx, session.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidRefreshToken
		}
		return fmt.Errorf("invalidate session: %w", err)
	}

	s.logger.Info("logout", zap.String("user_id", session.UserID), zap.String("session_id", session.ID))

	return nil
}

// LogoutAll invalidates every session for the user and returns the count.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int, error) {
	count, err := s.sessions.InvalidateAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("invalidate sessions: %w", err)
	}

	s.logger.Info("logout all", zap.String("user_id", userID), zap.Int("sessions", count))

	return count, nil
}

// SetupTwoFactor generates and stores a fresh TOTP secret for the user,
// leaving enforcement disabled until EnableTwoFactor confirms a code.
func (s *AuthService) SetupTwoFactor(ctx context.Context, userID, issuer string) (secret, otpauthURL string, err error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", "", ErrUserNotFound
		}
		return "", "", fmt.Errorf("lookup user: %w", err)
	}

	if user.TwoFactorEnabled {
		return "", "", ErrTwoFactorAlreadyEnabled
	}

	secret, err = security.GenerateTOTPSecret()
	if err != nil {
		return "", "", fmt.Errorf("generate totp secret: %w", err)
	}

	if err := s.users.SetTwoFactor(ctx, user.ID, &secret, false); err != nil {
		return "", "", fmt.Errorf("store totp secret: %w", err)
	}

	return secret, security.BuildOTPAuthURL(issuer, user.Email, secret), nil
}

// EnableTwoFactor turns enforcement on after the user proves possession of
// the secret with a valid code.
func (s *AuthService) EnableTwoFactor(ctx context.Context, userID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if user.TwoFactorEnabled {
		return ErrTwoFactorAlreadyEnabled
	}
	if user.TwoFactorSecret == nil || *user.TwoFactorSecret == "" {
		return ErrTwoFactorNotPending
	}

	ok, err := security.VerifyTOTP(*user.TwoFactorSecret, code, s.now())
	if err != nil {
		return fmt.Errorf("verify totp: %w", err)
	}
	if !ok {
		return ErrTwoFactorCodeInvalid
	}

	if err := s.users.SetTwoFactor(ctx, user.ID, user.TwoFactorSecret, true); err != nil {
		return fmt.Errorf("enable two factor: %w", err)
	}

	s.logger.Info("two-factor enabled", zap.String("user_id", user.ID))

	return nil
}

// NormalizeEmail lower-cases and trims an email address. All storage and
// lookups use the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
