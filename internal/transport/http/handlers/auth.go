package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finvora/invoicing-auth/internal/transport/http/middleware"
	"github.com/finvora/invoicing-auth/internal/usecase"
)

// AuthHandler exposes login, two-factor, refresh, and logout endpoints.
type AuthHandler struct {
	auth   *usecase.AuthService
	issuer string
}

// NewAuthHandler constructs an auth handler. issuer labels TOTP enrollments
// in authenticator apps.
func NewAuthHandler(auth *usecase.AuthService, issuer string) *AuthHandler {
	return &AuthHandler{auth: auth, issuer: issuer}
}

// RegisterRoutes binds auth endpoints. loginMiddlewares apply only to the
// credential-bearing login step.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, authRequired gin.HandlerFunc, loginMiddlewares ...gin.HandlerFunc) {
	loginHandlers := append([]gin.HandlerFunc{}, loginMiddlewares...)
	loginHandlers = append(loginHandlers, h.Login)
	r.POST("/login", loginHandlers...)

	twoFactorHandlers := append([]gin.HandlerFunc{}, loginMiddlewares...)
	twoFactorHandlers = append(twoFactorHandlers, h.VerifyTwoFactor)
	r.POST("/2fa/verify", twoFactorHandlers...)

	r.POST("/refresh", h.Refresh)
	r.POST("/logout", h.Logout)
	r.POST("/logout-all", authRequired, h.LogoutAll)
	r.POST("/2fa/setup", authRequired, h.SetupTwoFactor)
	r.POST("/2fa/enable", authRequired, h.EnableTwoFactor)
}

var loginErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
	{Err: usecase.ErrEmailNotVerified, Status: http.StatusUnauthorized, Message: "email address is not verified"},
}

// Login verifies credentials. Accounts with two-factor enabled receive a
// challenge instead of tokens.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	reqCtx := middleware.GetRequestContext(c)

	result, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: reqCtx.UserAgent,
		IPAddress: reqCtx.IP,
	})
	if err != nil {
		RespondWithMappedError(c, err, loginErrorCases, http.StatusInternalServerError, "failed to log in")
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(result))
}

var twoFactorErrorCases = []ErrorCase{
	{Err: usecase.ErrTwoFactorCodeInvalid, Status: http.StatusUnauthorized, Message: "two-factor code is invalid"},
	{Err: usecase.ErrTwoFactorNotPending, Status: http.StatusBadRequest, Message: "two-factor verification is not pending"},
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
}

// VerifyTwoFactor completes a two-factor login and issues the token pair.
func (h *AuthHandler) VerifyTwoFactor(c *gin.Context) {
	var req TwoFactorVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid two-factor payload"))
		return
	}

	reqCtx := middleware.GetRequestContext(c)

	result, err := h.auth.VerifyTwoFactor(c.Request.Context(), req.UserID, req.Code, reqCtx.UserAgent, reqCtx.IP)
	if err != nil {
		RespondWithMappedError(c, err, twoFactorErrorCases, http.StatusInternalServerError, "failed to verify two-factor code")
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(result))
}

var refreshErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidRefreshToken, Status: http.StatusUnauthorized, Message: "refresh token is invalid or expired"},
}

// Refresh exchanges a refresh token for a new access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid refresh payload"))
		return
	}

	accessToken, expiresAt, err := h.auth.RefreshAccessToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondWithMappedError(c, err, refreshErrorCases, http.StatusInternalServerError, "failed to refresh access token")
		return
	}

	c.JSON(http.StatusOK, RefreshResponse{
		AccessToken: accessToken,
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout invalidates the session owning the presented refresh token.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid logout payload"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		RespondWithMappedError(c, err, refreshErrorCases, http.StatusInternalServerError, "failed to log out")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

// LogoutAll invalidates every session for the authenticated user.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	count, err := h.auth.LogoutAll(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to log out"))
		return
	}

	c.JSON(http.StatusOK, LogoutAllResponse{
		Message:             "logged out of all sessions",
		SessionsInvalidated: count,
	})
}

var twoFactorSetupErrorCases = []ErrorCase{
	{Err: usecase.ErrTwoFactorAlreadyEnabled, Status: http.StatusConflict, Message: "two-factor is already enabled"},
	{Err: usecase.ErrTwoFactorNotPending, Status: http.StatusBadRequest, Message: "two-factor enrollment has not been started"},
	{Err: usecase.ErrTwoFactorCodeInvalid, Status: http.StatusUnauthorized, Message: "two-factor code is invalid"},
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
}

// SetupTwoFactor begins TOTP enrollment for the authenticated user.
func (h *AuthHandler) SetupTwoFactor(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	secret, otpauthURL, err := h.auth.SetupTwoFactor(c.Request.Context(), userID, h.issuer)
	if err != nil {
		RespondWithMappedError(c, err, twoFactorSetupErrorCases, http.StatusInternalServerError, "failed to set up two-factor")
		return
	}

	c.JSON(http.StatusOK, TwoFactorSetupResponse{
		Secret:     secret,
		OTPAuthURL: otpauthURL,
	})
}

// EnableTwoFactor turns on enforcement after a successful code check.
func (h *AuthHandler) EnableTwoFactor(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req TwoFactorEnableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid two-factor payload"))
		return
	}

	if err := h.auth.EnableTwoFactor(c.Request.Context(), userID, req.Code); err != nil {
		RespondWithMappedError(c, err, twoFactorSetupErrorCases, http.StatusInternalServerError, "failed to enable two-factor")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "two-factor enabled"})
}
