package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/finvora/invoicing-auth/internal/core/domain"
	"github.com/finvora/invoicing-auth/internal/core/port"
	"github.com/finvora/invoicing-auth/internal/repository"
)

var sessionColumns = []string{
	"id",
	"user_id",
	"refresh_token_hash",
	"user_agent",
	"ip_address",
	"is_valid",
	"created_at",
	"expires_at",
}

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
// Rows are append-only apart from the is_valid flag.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create persists a new session.
func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	stmt, args, err := r.builder.Insert("auth.sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.UserID,
			session.RefreshTokenHash,
			optionalString(session.UserAgent),
			optionalString(session.IPAddress),
			session.IsValid,
			session.CreatedAt,
			session.ExpiresAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetByRefreshTokenHash retrieves the session owning the hashed refresh token.
func (r *SessionRepository) GetByRefreshTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("auth.sessions").
		Where(squirrel.Eq{"refresh_token_hash": tokenHash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return session, nil
}

// ListByUser returns all sessions for a user, newest first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("auth.sessions").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// Invalidate flips a single session invalid.
func (r *SessionRepository) Invalidate(ctx context.Context, sessionID string) error {
	stmt, args, err := r.builder.Update("auth.sessions").
		Set("is_valid", false).
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build invalidate session sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// InvalidateAllForUser flips every valid session for the user and returns
// how many rows changed.
func (r *SessionRepository) InvalidateAllForUser(ctx context.Context, userID string) (int, error) {
	stmt, args, err := r.builder.Update("auth.sessions").
		Set("is_valid", false).
		Where(squirrel.Eq{"user_id": userID, "is_valid": true}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build invalidate sessions sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("invalidate sessions: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		session   domain.Session
		userAgent sql.NullString
		ipAddress sql.NullString
	)

	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.RefreshTokenHash,
		&userAgent,
		&ipAddress,
		&session.IsValid,
		&session.CreatedAt,
		&session.ExpiresAt,
	); err != nil {
		return nil, err
	}

	if userAgent.Valid {
		ua := userAgent.String
		session.UserAgent = &ua
	}
	if ipAddress.Valid {
		ip := ipAddress.String
		session.IPAddress = &ip
	}

	return &session, nil
}

func optionalString(value *string) any {
	if value == nil || *value == "" {
		return nil
	}
	return *value
}

var _ port.SessionRepository = (*SessionRepository)(nil)
