package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finvora/invoicing-auth/internal/core/domain"
	"github.com/finvora/invoicing-auth/internal/transport/http/middleware"
	"github.com/finvora/invoicing-auth/internal/usecase"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response carrying the request trace ID.
func NewErrorResponse(c *gin.Context, message string) ErrorResponse {
	return ErrorResponse{
		Error:   message,
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse is a bare informational payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary is the sanitized user representation returned to clients.
// Password hashes and TOTP secrets never leave the service.
type UserSummary struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	EmailVerified    bool      `json:"email_verified"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`
}

func newUserSummary(user *domain.User) UserSummary {
	return UserSummary{
		ID:               user.ID,
		Email:            user.Email,
		EmailVerified:    user.EmailVerified,
		TwoFactorEnabled: user.TwoFactorEnabled,
		CreatedAt:        user.CreatedAt,
	}
}

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse confirms account creation. DevToken carries the raw
// verification token in development mode only.
type RegisterResponse struct {
	User      UserSummary `json:"user"`
	Message   string      `json:"message"`
	ExpiresAt *string     `json:"verification_expires_at,omitempty"`
	DevToken  *string     `json:"dev_token,omitempty"`
}

// VerifyEmailRequest carries the raw verification token.
type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// VerifyEmailResponse confirms a successful verification.
type VerifyEmailResponse struct {
	Message string      `json:"message"`
	User    UserSummary `json:"user"`
}

// ResendVerificationRequest asks for a fresh verification token.
type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// LoginRequest is the payload for the first login step.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the outcome of the first login step. When
// TwoFactorRequired is set, tokens are withheld and the client must call
// the two-factor verification endpoint with UserID.
type LoginResponse struct {
	TwoFactorRequired bool         `json:"two_factor_required"`
	UserID            string       `json:"user_id,omitempty"`
	User              *UserSummary `json:"user,omitempty"`
	AccessToken       string       `json:"access_token,omitempty"`
	RefreshToken      string       `json:"refresh_token,omitempty"`
	ExpiresAt         string       `json:"expires_at,omitempty"`
}

func newLoginResponse(result *usecase.LoginResult) LoginResponse {
	if result.TwoFactorRequired {
		return LoginResponse{
			TwoFactorRequired: true,
			UserID:            result.User.ID,
		}
	}

	summary := newUserSummary(result.User)
	return LoginResponse{
		User:         &summary,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		ExpiresAt:    result.Tokens.AccessTokenExpiresAt.UTC().Format(time.RFC3339),
	}
}

// TwoFactorVerifyRequest completes a two-factor login.
type TwoFactorVerifyRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Code   string `json:"code" binding:"required"`
}

// TwoFactorSetupResponse returns enrollment material for authenticator apps.
type TwoFactorSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// TwoFactorEnableRequest confirms possession of the enrolled secret.
type TwoFactorEnableRequest struct {
	Code string `json:"code" binding:"required"`
}

// RefreshRequest exchanges a refresh token for a new access token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshResponse carries the newly minted access token.
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

// LogoutRequest invalidates the session owning the refresh token.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutAllResponse reports how many sessions were invalidated.
type LogoutAllResponse struct {
	Message             string `json:"message"`
	SessionsInvalidated int    `json:"sessions_invalidated"`
}

// ChangePasswordRequest swaps the password for an authenticated user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ResetRequestRequest starts the password reset flow.
type ResetRequestRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetRequestResponse is deliberately generic so the endpoint cannot be
// used to probe which emails are registered. DevToken carries the raw
// reset token in development mode only.
type ResetRequestResponse struct {
	Message  string  `json:"message"`
	DevToken *string `json:"dev_token,omitempty"`
}

// ResetConfirmRequest completes the password reset flow.
type ResetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// SessionSummary is one session row on the account page.
type SessionSummary struct {
	ID        string    `json:"id"`
	UserAgent *string   `json:"user_agent,omitempty"`
	IPAddress *string   `json:"ip_address,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionListResponse lists the user's sessions, newest first.
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}
