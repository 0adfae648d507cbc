package usecase

import (
	"context"
	"errors"
	"fmt"
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
	// ErrCurrentPasswordInvalid indicates a failed current-password check.
	ErrCurrentPasswordInvalid = errors.New("current password invalid")
	// ErrResetTokenInvalid covers unknown and already-used reset tokens.
	ErrResetTokenInvalid = errors.New("reset token invalid")
	// ErrResetTokenExpired indicates a known reset token past its TTL.
	ErrResetTokenExpired = errors.New("reset token expired")
	// ErrResetRateLimited indicates too many reset requests for one account.
	ErrResetRateLimited = errors.New("too many reset requests")
)

// ResetIssue carries a freshly minted password reset token. The raw token
// exists only in memory; storage holds its hash.
type ResetIssue struct {
	Token     string
	ExpiresAt time.Time
}

// PasswordService implements password change and the reset lifecycle.
type PasswordService struct {
	users       port.UserRepository
	resetTokens port.ResetTokenRepository
	sessions    port.SessionRepository
	rateLimits  port.RateLimitStore
	hasher      *security.PasswordHasher
	validator   *security.PasswordValidator
	mailer      port.Mailer
	frontendURL string
	resetTTL    time.Duration
	rateWindow  time.Duration
	rateLimit   int
	logger      *zap.Logger
	now         func() time.Time
}

// NewPasswordService constructs the password service. resetTTL bounds the
// reset token lifetime; zero selects the 1h default.
func NewPasswordService(
	users port.UserRepository,
	resetTokens port.ResetTokenRepository,
	sessions port.SessionRepository,
	hasher *security.PasswordHasher,
	validator *security.PasswordValidator,
	mailer port.Mailer,
	frontendURL string,
	resetTTL time.Duration,
	log *zap.Logger,
) (*PasswordService, error) {
	if users == nil || resetTokens == nil || sessions == nil {
		return nil, errors.New("user, reset token, and session repositories are required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &PasswordService{
		users:       users,
		resetTokens: resetTokens,
		sessions:    sessions,
		hasher:      hasher,
		validator:   validator,
		mailer:      mailer,
		frontendURL: frontendURL,
		resetTTL:    resetTTL,
		logger:      log,
		now:         time.Now,
	}, nil
}

// WithClock injects a custom clock, primarily for testing.
func (s *PasswordService) WithClock(now func() time.Time) *PasswordService {
	if now != nil {
		s.now = now
	}
	return s
}

// WithRateLimit enables per-account reset request throttling on top of the
// transport-level IP limits.
func (s *PasswordService) WithRateLimit(store port.RateLimitStore, limit int, window time.Duration) *PasswordService {
	if store != nil && limit > 0 && window > 0 {
		s.rateLimits = store
		s.rateLimit = limit
		s.rateWindow = window
	}
	return s
}

// ChangePassword verifies the current password, stores the new hash, stamps
// password_changed_at, and invalidates every session. Access tokens issued
// before the change stop verifying immediately.
func (s *PasswordService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	match, err := s.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify current password: %w", err)
	}
	if !match {
		return ErrCurrentPasswordInvalid
	}

	if err := s.validateNewPassword(newPassword, currentPassword); err != nil {
		return err
	}

	return s.applyNewPassword(ctx, user, newPassword)
}

// RequestReset issues a reset token for the account and dispatches the
// reset mail. Unknown emails return ErrUserNotFound; the HTTP layer still
// answers generically so the endpoint cannot be used to probe accounts.
func (s *PasswordService) RequestReset(ctx context.Context, email string) (*ResetIssue, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrUserNotFound
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.enforceResetRateLimit(ctx, user.ID); err != nil {
		return nil, err
	}

	rawToken, err := security.GenerateOpaqueToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate reset token: %w", err)
	}

	now := s.now().UTC()
	token := &domain.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: security.HashToken(rawToken),
		CreatedAt: now,
		ExpiresAt: now.Add(s.resetTTL),
	}

	if err := s.resetTokens.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("store reset token: %w", err)
	}

	issue := &ResetIssue{Token: rawToken, ExpiresAt: token.ExpiresAt}

	s.dispatchResetMail(ctx, user, issue)

	s.logger.Info("password reset requested",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	return issue, nil
}

// ConfirmReset consumes a reset token and applies the new password. The
// token is single-use; a token expiring exactly now is already expired.
func (s *PasswordService) ConfirmReset(ctx context.Context, rawToken, newPassword string) error {
	if rawToken == "" {
		return ErrResetTokenInvalid
	}

	token, err := s.resetTokens.GetByTokenHash(ctx, security.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}

	now := s.now()
	if token.UsedAt != nil {
		return ErrResetTokenInvalid
	}
	if token.IsExpired(now) {
		return ErrResetTokenExpired
	}

	if err := s.validateNewPassword(newPassword, ""); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	// Claim the token before touching credentials; losing the race means
	// another confirmation already consumed it.
	if err := s.resetTokens.MarkUsed(ctx, token.ID, now.UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("mark reset token used: %w", err)
	}

	return s.applyNewPassword(ctx, user, newPassword)
}

// applyNewPassword stores the new hash, stamps password_changed_at, and
// invalidates every session for the user.
func (s *PasswordService) applyNewPassword(ctx context.Context, user *domain.User, newPassword string) error {
	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	changedAt := s.now().UTC()
	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash, changedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	revoked, err := s.sessions.InvalidateAllForUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("invalidate sessions: %w", err)
	}

	s.logger.Info("password changed",
		zap.String("user_id", user.ID),
		zap.Int("sessions_invalidated", revoked),
	)

	return nil
}

func (s *PasswordService) validateNewPassword(newPassword, currentPassword string) error {
	if currentPassword != "" {
		if err := security.RequireDifferentFrom(currentPassword).Validate(newPassword); err != nil {
			return fmt.Errorf("%w: %w", ErrPasswordPolicyViolation, err)
		}
	}
	if err := s.validator.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %w", ErrPasswordPolicyViolation, err)
	}
	return nil
}

func (s *PasswordService) enforceResetRateLimit(ctx context.Context, userID string) error {
	if s.rateLimits == nil {
		return nil
	}

	key := fmt.Sprintf("password_reset_user:%s", userID)
	now := s.now()

	if err := s.rateLimits.TrimWindow(ctx, key, s.rateWindow, now); err != nil {
		s.logger.Warn("reset rate limit trim failed", zap.Error(err))
		return nil
	}

	count, err := s.rateLimits.CountAttempts(ctx, key, s.rateWindow, now)
	if err != nil {
		s.logger.Warn("reset rate limit count failed", zap.Error(err))
		return nil
	}
	if count >= s.rateLimit {
		return ErrResetRateLimited
	}

	if err := s.rateLimits.RecordAttempt(ctx, key, now); err != nil {
		s.logger.Warn("reset rate limit record failed", zap.Error(err))
	}

	return nil
}

// dispatchResetMail hands the mail to the dispatcher. Delivery failures are
// logged and never fail the reset flow.
func (s *PasswordService) dispatchResetMail(ctx context.Context, user *domain.User, issue *ResetIssue) {
	if s.mailer == nil {
		return
	}

	mail := port.Mail{
		To:       user.Email,
		Subject:  "Reset your password",
		Template: "password_reset",
		Data: map[string]string{
			"reset_url":  fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, issue.Token),
			"expires_at": issue.ExpiresAt.Format(time.RFC3339),
		},
	}

	if err := s.mailer.Send(ctx, mail); err != nil {
		s.logger.Error("failed to dispatch reset mail",
			zap.String("user_id", user.ID),
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(err),
		)
	}
}
