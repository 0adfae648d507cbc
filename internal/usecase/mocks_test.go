package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finvora/invoicing-auth/internal/core/domain"
	"github.com/finvora/invoicing-auth/internal/core/port"
	"github.com/finvora/invoicing-auth/internal/infra/security"
)

const strongTestPassword = "Sup3r!SecurePass#7890"

func newTestHasher(t *testing.T) *security.PasswordHasher {
	t.Helper()
	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  8,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewPasswordHasher returned error: %v", err)
	}
	return hasher
}

func newTestCodec(t *testing.T) *security.TokenCodec {
	t.Helper()
	codec, err := security.NewTokenCodec(security.TokenCodecConfig{
		AccessSecret:  []byte("access-secret-for-tests"),
		RefreshSecret: []byte("refresh-secret-for-tests"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    168 * time.Hour,
		Issuer:        "invoicing-auth-test",
	})
	if err != nil {
		t.Fatalf("NewTokenCodec returned error: %v", err)
	}
	return codec
}

func mustHash(t *testing.T, hasher *security.PasswordHasher, password string) string {
	t.Helper()
	hash, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	return hash
}

type mockUserRepository struct {
	createErr   error
	createCalls int
	createdUser *domain.User

	getByIDResult *domain.User
	getByIDErr    error
	getByIDCalls  int
	getByIDLastID string

	getByEmailResult    *domain.User
	getByEmailErr       error
	getByEmailCalls     int
	getByEmailLastEmail string

	updatePasswordErr       error
	updatePasswordCalls     int
	updatePasswordUserID    string
	updatePasswordHash      string
	updatePasswordChangedAt time.Time

	setTwoFactorErr     error
	setTwoFactorCalls   int
	setTwoFactorUserID  string
	setTwoFactorSecret  *string
	setTwoFactorEnabled bool
}

func (m *mockUserRepository) Create(_ context.Context, user *domain.User) error {
	m.createCalls++
	copied := *user
	m.createdUser = &copied
	return m.createErr
}

func (m *mockUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.getByIDCalls++
	m.getByIDLastID = id
	if m.getByIDErr != nil {
		return nil, m.getByIDErr
	}
	if m.getByIDResult == nil {
		return nil, errors.New("unexpected call: GetByID")
	}
	copied := *m.getByIDResult
	return &copied, nil
}

func (m *mockUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.getByEmailCalls++
	m.getByEmailLastEmail = email
	if m.getByEmailErr != nil {
		return nil, m.getByEmailErr
	}
	if m.getByEmailResult == nil {
		return nil, errors.New("unexpected call: GetByEmail")
	}
	copied := *m.getByEmailResult
	return &copied, nil
}

func (m *mockUserRepository) UpdatePassword(_ context.Context, userID, passwordHash string, changedAt time.Time) error {
	m.updatePasswordCalls++
	m.updatePasswordUserID = userID
	m.updatePasswordHash = passwordHash
	m.updatePasswordChangedAt = changedAt
	return m.updatePasswordErr
}

func (m *mockUserRepository) SetTwoFactor(_ context.Context, userID string, secret *string, enabled bool) error {
	m.setTwoFactorCalls++
	m.setTwoFactorUserID = userID
	m.setTwoFactorSecret = secret
	m.setTwoFactorEnabled = enabled
	return m.setTwoFactorErr
}

type mockSessionRepository struct {
	createErr      error
	createCalls    int
	createdSession *domain.Session

	getByHashResult   *domain.Session
	getByHashErr      error
	getByHashCalls    int
	getByHashLastHash string

	listResult []domain.Session
	listErr    error
	listCalls  int

	invalidateErr    error
	invalidateCalls  int
	invalidateLastID string

	invalidateAllCount  int
	invalidateAllErr    error
	invalidateAllCalls  int
	invalidateAllUserID string
}

func (m *mockSessionRepository) Create(_ context.Context, session *domain.Session) error {
	m.createCalls++
	copied := *session
	m.createdSession = &copied
	return m.createErr
}

func (m *mockSessionRepository) GetByRefreshTokenHash(_ context.Context, tokenHash string) (*domain.Session, error) {
	m.getByHashCalls++
	m.getByHashLastHash = tokenHash
	if m.getByHashErr != nil {
		return nil, m.getByHashErr
	}
	if m.getByHashResult == nil {
		return nil, errors.New("unexpected call: GetByRefreshTokenHash")
	}
	copied := *m.getByHashResult
	return &copied, nil
}

func (m *mockSessionRepository) ListByUser(_ context.Context, _ string) ([]domain.Session, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.Session, len(m.listResult))
	copy(out, m.listResult)
	return out, nil
}

func (m *mockSessionRepository) Invalidate(_ context.Context, sessionID string) error {
	m.invalidateCalls++
	m.invalidateLastID = sessionID
	return m.invalidateErr
}

func (m *mockSessionRepository) InvalidateAllForUser(_ context.Context, userID string) (int, error) {
	m.invalidateAllCalls++
	m.invalidateAllUserID = userID
	if m.invalidateAllErr != nil {
		return 0, m.invalidateAllErr
	}
	return m.invalidateAllCount, nil
}

type mockVerificationRepository struct {
	upsertErr    error
	upsertCalls  int
	upsertedLast *domain.EmailVerification

	getByHashResult   *domain.EmailVerification
	getByHashErr      error
	getByHashCalls    int
	getByHashLastHash string

	consumeErr        error
	consumeCalls      int
	consumeLastUserID string
}

func (m *mockVerificationRepository) Upsert(_ context.Context, verification *domain.EmailVerification) error {
	m.upsertCalls++
	copied := *verification
	m.upsertedLast = &copied
	return m.upsertErr
}

func (m *mockVerificationRepository) GetByTokenHash(_ context.Context, tokenHash string) (*domain.EmailVerification, error) {
	m.getByHashCalls++
	m.getByHashLastHash = tokenHash
	if m.getByHashErr != nil {
		return nil, m.getByHashErr
	}
	if m.getByHashResult == nil {
		return nil, errors.New("unexpected call: GetByTokenHash")
	}
	copied := *m.getByHashResult
	return &copied, nil
}

func (m *mockVerificationRepository) Consume(_ context.Context, userID string) error {
	m.consumeCalls++
	m.consumeLastUserID = userID
	return m.consumeErr
}

type mockResetTokenRepository struct {
	createErr    error
	createCalls  int
	createdToken *domain.PasswordResetToken

	getByHashResult   *domain.PasswordResetToken
	getByHashErr      error
	getByHashCalls    int
	getByHashLastHash string

	markUsedErr    error
	markUsedCalls  int
	markUsedLastID string
	markUsedAt     time.Time
}

func (m *mockResetTokenRepository) Create(_ context.Context, token *domain.PasswordResetToken) error {
	m.createCalls++
	copied := *token
	m.createdToken = &copied
	return m.createErr
}

func (m *mockResetTokenRepository) GetByTokenHash(_ context.Context, tokenHash string) (*domain.PasswordResetToken, error) {
	m.getByHashCalls++
	m.getByHashLastHash = tokenHash
	if m.getByHashErr != nil {
		return nil, m.getByHashErr
	}
	if m.getByHashResult == nil {
		return nil, errors.New("unexpected call: GetByTokenHash")
	}
	copied := *m.getByHashResult
	return &copied, nil
}

func (m *mockResetTokenRepository) MarkUsed(_ context.Context, id string, usedAt time.Time) error {
	m.markUsedCalls++
	m.markUsedLastID = id
	m.markUsedAt = usedAt
	return m.markUsedErr
}

type mockMailer struct {
	calls    int
	lastMail port.Mail
	err      error
}

func (m *mockMailer) Send(_ context.Context, mail port.Mail) error {
	m.calls++
	m.lastMail = mail
	return m.err
}

type mockRateLimitStore struct {
	recordCalls int
	recordErr   error

	countResult int
	countErr    error
	countCalls  int

	trimCalls int
	trimErr   error
}

func (m *mockRateLimitStore) RecordAttempt(context.Context, string, time.Time) error {
	m.recordCalls++
	return m.recordErr
}

func (m *mockRateLimitStore) CountAttempts(context.Context, string, time.Duration, time.Time) (int, error) {
	m.countCalls++
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.countResult, nil
}

func (m *mockRateLimitStore) TrimWindow(context.Context, string, time.Duration, time.Time) error {
	m.trimCalls++
	return m.trimErr
}

func (m *mockRateLimitStore) OldestAttempt(context.Context, string, time.Duration, time.Time) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("unexpected call: OldestAttempt")
}

func ptrString(s string) *string {
	return &s
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
