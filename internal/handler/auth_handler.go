package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"minimail/internal/service/auth"
)

type AuthHandler struct {
	authService *auth.Service
	logger      *zap.Logger
}

func NewAuthHandler(authService *auth.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Signup handles POST /api/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, msgInvalidBody)
		return
	}
	req.normalize()
	if err := req.validate(); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	_, err := h.authService.Register(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrEmailExists):
		respondMessage(c, http.StatusConflict, "Email is already registered.")
	case err != nil:
		respondInternal(c, h.logger, "Signup failed", err)
	default:
		respondMessage(c, http.StatusCreated, "Signup successful.")
	}
}

// Login handles POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, msgInvalidBody)
		return
	}
	req.normalize()
	if err := req.validate(); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondMessage(c, http.StatusUnauthorized, "Invalid email or password.")
	case errors.Is(err, auth.ErrTooManyAttempts):
		respondMessage(c, http.StatusTooManyRequests, "Too many failed login attempts. Try again later.")
	case err != nil:
		respondInternal(c, h.logger, "Login failed", err)
	default:
		c.JSON(http.StatusOK, gin.H{
			"message": "Login successful.",
			"token":   token,
			"user":    user.View(),
		})
	}
}
