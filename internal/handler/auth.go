package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/finiti-glossary/internal/auth"
	"github.com/iliyamo/finiti-glossary/internal/metrics"
	"github.com/iliyamo/finiti-glossary/internal/middleware"
	"github.com/iliyamo/finiti-glossary/internal/model"
)

// AuthService is implemented by *auth.Service.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) error
	Login(ctx context.Context, email, password string) (*auth.TokenPair, error)
	Refresh(ctx context.Context, raw string) (*auth.TokenPair, error)
	Logout(ctx context.Context, raw string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	IssueResetToken(ctx context.Context, email string) (*model.User, string, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	svc     AuthService
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewAuthHandler returns an AuthHandler.  m may be nil.
func NewAuthHandler(svc AuthService, m *metrics.Metrics, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, metrics: m, log: log.With().Str("component", "auth").Logger()}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}
type emailReq struct {
	Email string `json:"email" validate:"required,email"`
}
type resetConfirmReq struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

type authResp struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Message      string    `json:"message"`
}

// Register creates an account.  Tokens are issued by Login.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), opTimeout)
	defer cancel()

	if err := h.svc.Register(ctx, req.Username, req.Email, req.Password); err != nil {
		h.attempt("register", "fail")
		return h.fail(c, err, http.StatusBadRequest)
	}
	h.attempt("register", "ok")
	return c.JSON(http.StatusOK, echo.Map{"message": "User registered successfully."})
}

// Login verifies credentials and returns a token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), opTimeout)
	defer cancel()

	pair, err := h.svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.attempt("login", "fail")
		return h.fail(c, err, http.StatusUnauthorized)
	}
	h.attempt("login", "ok")
	return c.JSON(http.StatusOK, authResp{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExpires,
		Message:      "Login successful.",
	})
}

// Refresh rotates the refresh token and returns a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), opTimeout)
	defer cancel()

	pair, err := h.svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		h.attempt("refresh", "fail")
		return h.fail(c, err, http.StatusUnauthorized)
	}
	h.attempt("refresh", "ok")
	return c.JSON(http.StatusOK, authResp{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExpires,
		Message:      "Token refreshed successfully.",
	})
}

// Logout revokes the presented refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), opTimeout)
	defer cancel()

	if err := h.svc.Logout(ctx, req.RefreshToken); err != nil {
		return h.fail(c, err, http.StatusUnauthorized)
	}
	return c.NoContent(http.StatusNoContent)
}

// ResetPasswordRequest emails a reset link.
func (h *AuthHandler) ResetPasswordRequest(c echo.Context) error {
	var req emailReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if err := h.svc.RequestPasswordReset(ctx, req.Email); err != nil {
		return h.fail(c, err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password reset email has been sent."})
}

// ResetPasswordConfirm sets a new password for a valid reset token.
func (h *AuthHandler) ResetPasswordConfirm(c echo.Context) error {
	var req resetConfirmReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), opTimeout)
	defer cancel()

	if err := h.svc.ConfirmPasswordReset(ctx, req.Token, req.NewPassword); err != nil {
		h.attempt("reset", "fail")
		return h.fail(c, err, http.StatusBadRequest)
	}
	h.attempt("reset", "ok")
	return c.JSON(http.StatusOK, echo.Map{"message": "Password has been reset successfully."})
}

// TestToken issues a reset token without sending email.  Admin only.
func (h *AuthHandler) TestToken(c echo.Context) error {
	var req emailReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), opTimeout)
	defer cancel()

	u, token, err := h.svc.IssueResetToken(ctx, req.Email)
	if err != nil {
		return h.fail(c, err, http.StatusBadRequest)
	}
	h.log.Info().Str("by", middleware.Identity(c).ID).Uint64("user_id", u.ID).Msg("test reset token issued")
	return c.JSON(http.StatusOK, echo.Map{"email": u.Email, "resetToken": token})
}

// Me returns the identity carried by the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"id":       c.Get(middleware.CtxUserID),
		"username": c.Get(middleware.CtxUsername),
		"email":    c.Get(middleware.CtxEmail),
		"role":     c.Get(middleware.CtxRole),
		"isAdmin":  c.Get(middleware.CtxIsAdmin),
	})
}

// fail writes a known auth error with status, anything else as 500.
func (h *AuthHandler) fail(c echo.Context, err error, status int) error {
	if msg, ok := auth.Message(err); ok {
		return c.JSON(status, echo.Map{"message": msg})
	}
	if errors.Is(err, context.DeadlineExceeded) {
		h.log.Warn().Err(err).Str("path", c.Path()).Msg("auth request timed out")
	} else {
		h.log.Error().Err(err).Str("path", c.Path()).Msg("auth request failed")
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal server error."})
}

func (h *AuthHandler) attempt(kind, outcome string) {
	if h.metrics != nil {
		h.metrics.AuthAttemptsTotal.WithLabelValues(kind, outcome).Inc()
	}
}
