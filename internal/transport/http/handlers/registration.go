package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/finvora/invoicing-auth/internal/usecase"
)

// RegistrationHandler exposes endpoints for account creation and email
// verification.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
	isDev        bool
}

func NewRegistrationHandler(registration *usecase.RegistrationService, isDev bool) *RegistrationHandler {
	return &RegistrationHandler{
		registration: registration,
		isDev:        isDev,
	}
}

// Register creates an unverified account and issues a verification token.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	user, verification, err := h.registration.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			c.JSON(http.StatusConflict, NewErrorResponse(c, "email already registered"))
			return
		}
		if errors.Is(err, usecase.ErrPasswordPolicyViolation) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "password does not meet requirements"))
			return
		}
		if errors.Is(err, usecase.ErrEmailRequired) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email is required"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to register user"))
		return
	}

	resp := RegisterResponse{
		User:    newUserSummary(user),
		Message: "verification required",
	}
	if !verification.ExpiresAt.IsZero() {
		expires := verification.ExpiresAt.UTC().Format(time.RFC3339)
		resp.ExpiresAt = &expires
	}

	// SECURITY: raw tokens are exposed only in development mode. In
	// production the token travels via email alone.
	if h.isDev && verification.Token != "" {
		token := verification.Token
		resp.DevToken = &token
	}

	c.JSON(http.StatusCreated, resp)
}

var verifyEmailErrorCases = []ErrorCase{
	// Expired tokens surface exactly like unknown tokens so the endpoint
	// leaks nothing about token existence.
	{Err: usecase.ErrVerificationTokenInvalid, Status: http.StatusBadRequest, Message: "verification token is invalid or expired"},
	{Err: usecase.ErrVerificationTokenExpired, Status: http.StatusBadRequest, Message: "verification token is invalid or expired"},
}

// VerifyEmail consumes a verification token and activates the account.
func (h *RegistrationHandler) VerifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	user, err := h.registration.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		RespondWithMappedError(c, err, verifyEmailErrorCases, http.StatusInternalServerError, "failed to verify email")
		return
	}

	c.JSON(http.StatusOK, VerifyEmailResponse{
		Message: "email verified",
		User:    newUserSummary(user),
	})
}

var resendVerificationErrorCases = []ErrorCase{
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
	{Err: usecase.ErrEmailAlreadyVerified, Status: http.StatusConflict, Message: "email is already verified"},
}

// ResendVerification replaces the live verification token with a fresh one.
func (h *RegistrationHandler) ResendVerification(c *gin.Context) {
	var req ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid resend payload"))
		return
	}

	if _, err := h.registration.ResendVerification(c.Request.Context(), req.Email); err != nil {
		RespondWithMappedError(c, err, resendVerificationErrorCases, http.StatusInternalServerError, "failed to resend verification")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "verification email sent"})
}
