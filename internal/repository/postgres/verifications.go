package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/finvora/invoicing-auth/internal/core/domain"
	"github.com/finvora/invoicing-auth/internal/core/port"
	"github.com/finvora/invoicing-auth/internal/repository"
)

// VerificationRepository implements port.VerificationRepository using
// PostgreSQL. The table holds at most one row per user; issuing a new token
// replaces the previous one via upsert.
type VerificationRepository struct {
	exec    pgExecutor
	tx      txBeginner
	builder squirrel.StatementBuilderType
}

// NewVerificationRepository wires a PostgreSQL-backed verification ledger.
// The txBeginner is required for Consume, which updates the user and deletes
// the verification row atomically.
func NewVerificationRepository(exec pgExecutor, tx txBeginner) *VerificationRepository {
	return &VerificationRepository{
		exec:    exec,
		tx:      tx,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Upsert inserts the verification or replaces the user's existing row.
func (r *VerificationRepository) Upsert(ctx context.Context, verification *domain.EmailVerification) error {
	stmt, args, err := r.builder.Insert("auth.email_verifications").
		Columns("user_id", "token_hash", "expires_at", "created_at").
		Values(
			verification.UserID,
			verification.TokenHash,
			verification.ExpiresAt,
			verification.CreatedAt,
		).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert verification sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert verification: %w", err)
	}

	return nil
}

// GetByTokenHash retrieves the verification matching the hashed token.
func (r *VerificationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.EmailVerification, error) {
	stmt, args, err := r.builder.
		Select("user_id", "token_hash", "expires_at", "created_at").
		From("auth.email_verifications").
		Where(squirrel.Eq{"token_hash": tokenHash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select verification sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var verification domain.EmailVerification
	if err := row.Scan(
		&verification.UserID,
		&verification.TokenHash,
		&verification.ExpiresAt,
		&verification.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan verification: %w", err)
	}

	return &verification, nil
}

// Consume marks the user verified and deletes the verification row in a
// single transaction. Returns repository.ErrNotFound when either the user
// or the verification row is missing.
func (r *VerificationRepository) Consume(ctx context.Context, userID string) error {
	tx, err := r.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin consume verification tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	updateStmt, updateArgs, err := r.builder.Update("auth.users").
		Set("is_email_verified", true).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build verify user sql: %w", err)
	}

	tag, err := tx.Exec(ctx, updateStmt, updateArgs...)
	if err != nil {
		return fmt.Errorf("mark user verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	deleteStmt, deleteArgs, err := r.builder.Delete("auth.email_verifications").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete verification sql: %w", err)
	}

	tag, err = tx.Exec(ctx, deleteStmt, deleteArgs...)
	if err != nil {
		return fmt.Errorf("delete verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit consume verification tx: %w", err)
	}

	return nil
}

var _ port.VerificationRepository = (*VerificationRepository)(nil)
