package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/finvora/invoicing-auth/internal/core/domain"
	"github.com/finvora/invoicing-auth/internal/core/port"
	"github.com/finvora/invoicing-auth/internal/repository"
)

// SessionService exposes session listing and revocation for account pages.
type SessionService struct {
	sessions port.SessionRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionService constructs the session service.
func NewSessionService(sessions port.SessionRepository, log *zap.Logger) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionService{
		sessions: sessions,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock injects a custom clock, primarily for testing.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	if now != nil {
		s.now = now
	}
	return s
}

// SessionView is a session annotated with its liveness at read time.
type SessionView struct {
	Session domain.Session
	Active  bool
}

// ListSessions returns every session for the user, newest first, with each
// row's liveness evaluated against the current clock.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]SessionView, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := s.now()
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, SessionView{
			Session: session,
			Active:  session.IsActive(now),
		})
	}

	return views, nil
}

// InvalidateSession invalidates one session. The session must belong to the
// requesting user; foreign sessions are reported as not found.
func (s *SessionService) InvalidateSession(ctx context.Context, userID, sessionID string) error {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	owned := false
	for _, session := range sessions {
		if session.ID == sessionID {
			owned = true
			break
		}
	}
	if !owned {
		return ErrSessionNotFound
	}

	if err := s.sessions.Invalidate(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("invalidate session: %w", err)
	}

	s.logger.Info("session invalidated",
		zap.String("user_id", userID),
		zap.String("session_id", sessionID),
	)

	return nil
}

// InvalidateAll invalidates every session for the user and returns the count.
func (s *SessionService) InvalidateAll(ctx context.Context, userID string) (int, error) {
	count, err := s.sessions.InvalidateAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("invalidate sessions: %w", err)
	}

	s.logger.Info("all sessions invalidated",
		zap.String("user_id", userID),
		zap.Int("count", count),
	)

	return count, nil
}
