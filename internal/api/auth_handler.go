package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"pregnancy-guide-go/internal/core"
	"pregnancy-guide-go/internal/models"
)

// AuthActions is the part of the store the auth endpoints drive.
type AuthActions interface {
	State() core.State
	SignUp(ctx context.Context, email, password string) error
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) (bool, error)
}

// AuthHandler handles sign-up, sign-in, sign-out and password reset.
// A successful call does not mean the session has already changed: the
// store picks the new session up from the identity subscription, so clients
// poll GET /session for the outcome.
type AuthHandler struct {
	store AuthActions
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(store AuthActions) *AuthHandler {
	return &AuthHandler{store: store}
}

// SignUp handles POST /api/v1/auth/signup.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req models.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.store.SignUp(c.Request.Context(), req.Email, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Message: "Account created"})
}

// SignIn handles POST /api/v1/auth/signin.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req models.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.store.SignIn(c.Request.Context(), req.Email, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Signed in"})
}

// SignOut handles POST /api/v1/auth/signout.
func (h *AuthHandler) SignOut(c *gin.Context) {
	if err := h.store.SignOut(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Signed out"})
}

// ResetPassword handles POST /api/v1/auth/reset-password. The response is the
// same whether or not the address has an account.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if _, err := h.store.SendPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "If an account exists for this email, a reset link has been sent."})
}

// GetSession handles GET /api/v1/session.
func (h *AuthHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.State().Session)
}
