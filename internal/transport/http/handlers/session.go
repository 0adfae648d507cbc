package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finvora/invoicing-auth/internal/transport/http/middleware"
	"github.com/finvora/invoicing-auth/internal/usecase"
)

// SessionHandler exposes session listing and revocation for account pages.
type SessionHandler struct {
	sessions *usecase.SessionService
}

func NewSessionHandler(sessions *usecase.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// RegisterRoutes binds session endpoints. The group must already require
// authentication.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.List)
	r.DELETE("/:id", h.Invalidate)
}

// List returns the user's sessions, newest first.
func (h *SessionHandler) List(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	views, err := h.sessions.ListSessions(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list sessions"))
		return
	}

	summaries := make([]SessionSummary, 0, len(views))
	for _, view := range views {
		summaries = append(summaries, SessionSummary{
			ID:        view.Session.ID,
			UserAgent: view.Session.UserAgent,
			IPAddress: view.Session.IPAddress,
			Active:    view.Active,
			CreatedAt: view.Session.CreatedAt,
			ExpiresAt: view.Session.ExpiresAt,
		})
	}

	c.JSON(http.StatusOK, SessionListResponse{Sessions: summaries})
}

var invalidateSessionErrorCases = []ErrorCase{
	{Err: usecase.ErrSessionNotFound, Status: http.StatusNotFound, Message: "session not found"},
}

// Invalidate revokes one of the user's own sessions.
func (h *SessionHandler) Invalidate(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session id is required"))
		return
	}

	if err := h.sessions.InvalidateSession(c.Request.Context(), userID, sessionID); err != nil {
		RespondWithMappedError(c, err, invalidateSessionErrorCases, http.StatusInternalServerError, "failed to invalidate session")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "session invalidated"})
}
