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
	// ErrEmailRequired indicates a missing or blank email address.
	ErrEmailRequired = errors.New("email is required")
	// ErrPasswordPolicyViolation wraps the specific rule failure.
	ErrPasswordPolicyViolation = errors.New("password does not meet policy")
	// ErrVerificationTokenInvalid covers unknown verification tokens. An
	// expired token surfaces as ErrVerificationTokenExpired internally but
	// handlers collapse both to the same client response.
	ErrVerificationTokenInvalid = errors.New("verification token invalid")
	// ErrVerificationTokenExpired indicates a known token past its TTL.
	ErrVerificationTokenExpired = errors.New("verification token expired")
	// ErrEmailAlreadyVerified guards redundant verification requests.
	ErrEmailAlreadyVerified = errors.New("email already verified")
)

// VerificationIssue carries a freshly minted verification token. The raw
// token exists only in memory; storage holds its hash.
type VerificationIssue struct {
	Token     string
	ExpiresAt time.Time
}

// RegistrationService implements account creation and the email
// verification lifecycle.
type RegistrationService struct {
	users         port.UserRepository
	verifications port.VerificationRepository
	hasher        *security.PasswordHasher
	validator     *security.PasswordValidator
	mailer        port.Mailer
	frontendURL   string
	tokenTTL      time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewRegistrationService constructs the registration service. tokenTTL
// bounds the verification token lifetime; zero selects the 24h default.
func NewRegistrationService(
	users port.UserRepository,
	verifications port.VerificationRepository,
	hasher *security.PasswordHasher,
	validator *security.PasswordValidator,
	mailer port.Mailer,
	frontendURL string,
	tokenTTL time.Duration,
	log *zap.Logger,
) (*RegistrationService, error) {
	if users == nil || verifications == nil {
		return nil, errors.New("user and verification repositories are required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &RegistrationService{
		users:         users,
		verifications: verifications,
		hasher:        hasher,
		validator:     validator,
		mailer:        mailer,
		frontendURL:   frontendURL,
		tokenTTL:      tokenTTL,
		logger:        log,
		now:           time.Now,
	}, nil
}

// WithClock injects a custom clock, primarily for testing.
func (s *RegistrationService) WithClock(now func() time.Time) *RegistrationService {
	if now != nil {
		s.now = now
	}
	return s
}

// Register creates an unverified account and issues its first verification
// token. The verification mail is dispatched fire-and-forget.
func (s *RegistrationService) Register(ctx context.Context, email, password string) (*domain.User, *VerificationIssue, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, nil, ErrEmailRequired
	}

	if err := s.validator.Validate(password); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrPasswordPolicyViolation, err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	// Provision a shared secret up front; 2FA stays disabled until the user
	// confirms a code through the setup flow.
	totpSecret, err := security.GenerateTOTPSecret()
	if err != nil {
		return nil, nil, fmt.Errorf("generate totp secret: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:              uuid.NewString(),
		Email:           email,
		PasswordHash:    passwordHash,
		TwoFactorSecret: &totpSecret,
		CreatedAt:       now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	issue, err := s.issueVerification(ctx, user, now)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	return user, issue, nil
}

// VerifyEmail consumes a verification token, marking the account verified
// and deleting the token in one transaction. Expired and unknown tokens are
// indistinguishable to the caller.
func (s *RegistrationService) VerifyEmail(ctx context.Context, rawToken string) (*domain.User, error) {
	if rawToken == "" {
		return nil, ErrVerificationTokenInvalid
	}

	verification, err := s.verifications.GetByTokenHash(ctx, security.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVerificationTokenInvalid
		}
		return nil, fmt.Errorf("lookup verification: %w", err)
	}

	if verification.IsExpired(s.now()) {
		s.logger.Info("verification token expired", zap.String("user_id", verification.UserID))
		return nil, ErrVerificationTokenExpired
	}

	if err := s.verifications.Consume(ctx, verification.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Raced with another consumption or the user vanished.
			return nil, ErrVerificationTokenInvalid
		}
		return nil, fmt.Errorf("consume verification: %w", err)
	}

	user, err := s.users.GetByID(ctx, verification.UserID)
	if err != nil {
		return nil, fmt.Errorf("load verified user: %w", err)
	}

	s.logger.Info("email verified", zap.String("user_id", user.ID))

	return user, nil
}

// ResendVerification replaces the user's live verification token with a
// fresh one and dispatches a new mail.
func (s *RegistrationService) ResendVerification(ctx context.Context, email string) (*VerificationIssue, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrEmailRequired
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if user.EmailVerified {
		return nil, ErrEmailAlreadyVerified
	}

	issue, err := s.issueVerification(ctx, user, s.now().UTC())
	if err != nil {
		return nil, err
	}

	s.logger.Info("verification resent",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	return issue, nil
}

func (s *RegistrationService) issueVerification(ctx context.Context, user *domain.User, now time.Time) (*VerificationIssue, error) {
	rawToken, err := security.GenerateOpaqueToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	verification := &domain.EmailVerification{
		UserID:    user.ID,
		TokenHash: security.HashToken(rawToken),
		ExpiresAt: now.Add(s.tokenTTL),
		CreatedAt: now,
	}

	if err := s.verifications.Upsert(ctx, verification); err != nil {
		return nil, fmt.Errorf("store verification: %w", err)
	}

	issue := &VerificationIssue{Token: rawToken, ExpiresAt: verification.ExpiresAt}

	s.dispatchVerificationMail(ctx, user, issue)

	return issue, nil
}

// dispatchVerificationMail hands the mail to the dispatcher. Delivery
// failures are logged and never fail the registration flow.
func (s *RegistrationService) dispatchVerificationMail(ctx context.Context, user *domain.User, issue *VerificationIssue) {
	if s.mailer == nil {
		return
	}

	mail := port.Mail{
		To:       user.Email,
		Subject:  "Verify your email address",
		Template: "email_verification",
		Data: map[string]string{
			"verification_url": fmt.Sprintf("%s/verify-email?token=%s", s.frontendURL, issue.Token),
			"expires_at":       issue.ExpiresAt.Format(time.RFC3339),
		},
	}

	if err := s.mailer.Send(ctx, mail); err != nil {
		s.logger.Error("failed to dispatch verification mail",
			zap.String("user_id", user.ID),
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(err),
		)
	}
}
