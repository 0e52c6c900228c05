package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kangalos/auth-service/internal/usecase"
)

// AuthHandler exposes the login endpoint.
type AuthHandler struct {
	service *usecase.AuthService
	logger  *zap.Logger
}

// NewAuthHandler builds an auth handler.
func NewAuthHandler(service *usecase.AuthService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{service: service, logger: logger}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !BindJSON(c, &req) {
		return
	}

	token, _, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "Invalid credentials"},
			{Err: usecase.ErrAccountUnverified, Status: http.StatusUnauthorized, Message: "Please verify your email before logging in"},
		}
		if !errors.Is(err, usecase.ErrInvalidCredentials) && !errors.Is(err, usecase.ErrAccountUnverified) {
			h.logger.Error("login failed", zap.Error(err))
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "Something went wrong. Please try again later.")
		return
	}

	RespondOK(c, http.StatusOK, "Login successful", LoginData{AccessToken: token})
}
