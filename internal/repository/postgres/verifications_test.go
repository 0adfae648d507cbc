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

func TestVerificationRepository_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewVerificationRepository(mock, mock)

	createdAt := time.Now().UTC()
	verification := domain.EmailVerification{
		UserID:    "user-1",
		TokenHash: "token-hash",
		ExpiresAt: createdAt.Add(24 * time.Hour),
		CreatedAt: createdAt,
	}

	mock.ExpectExec(`INSERT INTO auth\.email_verifications`).
		WithArgs(
			verification.UserID,
			verification.TokenHash,
			verification.ExpiresAt,
			verification.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Upsert(context.Background(), &verification); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVerificationRepository_GetByTokenHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewVerificationRepository(mock, mock)

	createdAt := time.Now().UTC()
	expiresAt := createdAt.Add(24 * time.Hour)

	rows := pgxmock.NewRows([]string{
		"user_id", "token_hash", "expires_at", "created_at",
	}).AddRow(
		"user-1", "token-hash", expiresAt, createdAt,
	)

	mock.ExpectQuery(`SELECT .*FROM auth\.email_verifications`).
		WithArgs("token-hash").
		WillReturnRows(rows)

	verification, err := repo.GetByTokenHash(context.Background(), "token-hash")
	if err != nil {
		t.Fatalf("GetByTokenHash returned error: %v", err)
	}
	if verification.UserID != "user-1" || verification.TokenHash != "token-hash" {
		t.Fatalf("unexpected verification: %+v", verification)
	}
	if !verification.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("unexpected expiry: %v", verification.ExpiresAt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVerificationRepository_GetByTokenHash_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewVerificationRepository(mock, mock)

	mock.ExpectQuery(`SELECT .*FROM auth\.email_verifications`).
		WithArgs("unknown-hash").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByTokenHash(context.Background(), "unknown-hash"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected repository.ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVerificationRepository_Consume(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewVerificationRepository(mock, mock)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE auth\.users`).
		WithArgs(true, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM auth\.email_verifications`).
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	if err := repo.Consume(context.Background(), "user-1"); err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVerificationRepository_Consume_UnknownUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewVerificationRepository(mock, mock)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE auth\.users`).
		WithArgs(true, "missing-user").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	if err := repo.Consume(context.Background(), "missing-user"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected repository.ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVerificationRepository_Consume_TokenAlreadyGone(t *testing.T) {
	// Two concurrent confirmations race on the delete; the loser sees zero
	// rows and must report not found so the whole transaction rolls back.
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewVerificationRepository(mock, mock)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE auth\.users`).
		WithArgs(true, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM auth\.email_verifications`).
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	if err := repo.Consume(context.Background(), "user-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected repository.ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
