package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/finvora/invoicing-auth/internal/core/domain"
	"github.com/finvora/invoicing-auth/internal/repository"
)

func TestResetTokenRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewResetTokenRepository(mock)

	createdAt := time.Now().UTC()
	token := domain.PasswordResetToken{
		ID:        "token-1",
		UserID:    "user-1",
		TokenHash: "token-hash",
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(time.Hour),
	}

	mock.ExpectExec(`INSERT INTO auth\.password_reset_tokens`).
		WithArgs(
			token.ID,
			token.UserID,
			token.TokenHash,
			token.CreatedAt,
			token.ExpiresAt,
			pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), &token); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetTokenRepository_GetByTokenHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewResetTokenRepository(mock)

	createdAt := time.Now().UTC()
	expiresAt := createdAt.Add(time.Hour)

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "token_hash", "created_at", "expires_at", "used_at",
	}).AddRow(
		"token-1", "user-1", "token-hash", createdAt, expiresAt, nil,
	)

	mock.ExpectQuery(`SELECT .*FROM auth\.password_reset_tokens`).
		WithArgs("token-hash").
		WillReturnRows(rows)

	token, err := repo.GetByTokenHash(context.Background(), "token-hash")
	if err != nil {
		t.Fatalf("GetByTokenHash returned error: %v", err)
	}
	if token.ID != "token-1" || token.UserID != "user-1" {
		t.Fatalf("unexpected token: %+v", token)
	}
	if token.UsedAt != nil {
		t.Fatalf("expected an unused token")
	}
	if !token.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("unexpected expiry: %v", token.ExpiresAt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetTokenRepository_GetByTokenHash_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewResetTokenRepository(mock)

	mock.ExpectQuery(`SELECT .*FROM auth\.password_reset_tokens`).
		WithArgs("unknown-hash").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByTokenHash(context.Background(), "unknown-hash"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected repository.ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetTokenRepository_MarkUsed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewResetTokenRepository(mock)

	usedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE auth\.password_reset_tokens`).
		WithArgs(usedAt, "token-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.MarkUsed(context.Background(), "token-1", usedAt); err != nil {
		t.Fatalf("MarkUsed returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetTokenRepository_MarkUsed_AlreadyUsed(t *testing.T) {
	// The update is guarded by used_at IS NULL; a consumed token matches no
	// rows, which is how the single-use guarantee holds under races.
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewResetTokenRepository(mock)

	usedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE auth\.password_reset_tokens`).
		WithArgs(usedAt, "token-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.MarkUsed(context.Background(), "token-1", usedAt); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected repository.ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
