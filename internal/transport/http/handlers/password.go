package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	applog "github.com/finvora/invoicing-auth/internal/infra/logger"
	"github.com/finvora/invoicing-auth/internal/transport/http/middleware"
	"github.com/finvora/invoicing-auth/internal/usecase"
)

// PasswordHandler exposes password change and reset endpoints.
type PasswordHandler struct {
	passwords *usecase.PasswordService
	isDev     bool
	logger    *zap.Logger
}

func NewPasswordHandler(passwords *usecase.PasswordService, isDev bool, log *zap.Logger) *PasswordHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PasswordHandler{
		passwords: passwords,
		isDev:     isDev,
		logger:    log,
	}
}

var changePasswordErrorCases = []ErrorCase{
	{Err: usecase.ErrCurrentPasswordInvalid, Status: http.StatusUnauthorized, Message: "current password is incorrect"},
	{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "new password does not meet requirements"},
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
}

// ChangePassword swaps the password for the authenticated user and logs
// out every session.
func (h *PasswordHandler) ChangePassword(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid change password payload"))
		return
	}

	if err := h.passwords.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		RespondWithMappedError(c, err, changePasswordErrorCases, http.StatusInternalServerError, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed; please log in again"})
}

// RequestReset starts the password reset flow. The response is identical
// whether or not the email is registered.
func (h *PasswordHandler) RequestReset(c *gin.Context) {
	var req ResetRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset payload"))
		return
	}

	resp := ResetRequestResponse{
		Message: "if the address is registered, a reset email has been sent",
	}

	issue, err := h.passwords.RequestReset(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, usecase.ErrResetRateLimited) {
			c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, "too many reset requests; try again later"))
			return
		}
		// Unknown emails and internal failures both answer generically, but
		// internal failures still need to reach the log stream.
		if !errors.Is(err, usecase.ErrUserNotFound) {
			h.logger.Error("password reset request failed",
				zap.String("email", applog.MaskEmail(req.Email)),
				zap.String("trace_id", middleware.GetTraceID(c)),
				zap.Error(err),
			)
		}
		c.JSON(http.StatusAccepted, resp)
		return
	}

	if h.isDev && issue.Token != "" {
		token := issue.Token
		resp.DevToken = &token
	}

	c.JSON(http.StatusAccepted, resp)
}

var resetConfirmErrorCases = []ErrorCase{
	// Expired tokens answer exactly like unknown ones so the endpoint leaks
	// nothing about whether a token ever existed.
	{Err: usecase.ErrResetTokenInvalid, Status: http.StatusBadRequest, Message: "reset token is invalid or expired"},
	{Err: usecase.ErrResetTokenExpired, Status: http.StatusBadRequest, Message: "reset token is invalid or expired"},
	{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "new password does not meet requirements"},
}

// ConfirmReset completes the reset flow with a single-use token.
func (h *PasswordHandler) ConfirmReset(c *gin.Context) {
	var req ResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset confirmation payload"))
		return
	}

	if err := h.passwords.ConfirmReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		RespondWithMappedError(c, err, resetConfirmErrorCases, http.StatusInternalServerError, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password reset; please log in again"})
}
