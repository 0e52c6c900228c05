package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kangalos/auth-service/internal/usecase"
)

// Generic acknowledgement for the two non-enumerating link endpoints.
const resetRequestedMessage = "If an account with that email exists, a password email has been sent."

// PasswordHandler exposes the forgot-password, send-create-password and
// reset-password endpoints.
type PasswordHandler struct {
	service *usecase.PasswordResetService
	logger  *zap.Logger
}

// NewPasswordHandler builds a password handler.
func NewPasswordHandler(service *usecase.PasswordResetService, logger *zap.Logger) *PasswordHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PasswordHandler{service: service, logger: logger}
}

// ForgotPassword handles POST /auth/forgot-password.
func (h *PasswordHandler) ForgotPassword(c *gin.Context) {
	h.requestLink(c, h.service.ForgotPassword)
}

// SendCreatePassword handles POST /auth/send-create-password.
func (h *PasswordHandler) SendCreatePassword(c *gin.Context) {
	h.requestLink(c, h.service.SendCreatePasswordEmail)
}

func (h *PasswordHandler) requestLink(c *gin.Context, send func(ctx context.Context, email string) error) {
	var req EmailRequest
	if !BindJSON(c, &req) {
		return
	}

	if err := send(c.Request.Context(), req.Email); err != nil {
		h.logger.Error("password link request failed", zap.Error(err))
		RespondError(c, http.StatusInternalServerError, "Something went wrong. Please try again later.")
		return
	}

	RespondOK(c, http.StatusOK, resetRequestedMessage, nil)
}

// ResetPassword handles POST /auth/reset-password.
func (h *PasswordHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !BindJSON(c, &req) {
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrLinkTokenExpired, Status: http.StatusBadRequest, Message: "Reset link has expired. Please request a new one."},
			{Err: usecase.ErrLinkTokenInvalid, Status: http.StatusBadRequest, Message: "Invalid reset link"},
			{Err: usecase.ErrSamePassword, Status: http.StatusBadRequest, Message: "New password must be different from the current password"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "Password does not meet the complexity requirements"},
		}
		if !knownResetError(err) {
			h.logger.Error("reset password failed", zap.Error(err))
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "Something went wrong. Please try again later.")
		return
	}

	RespondOK(c, http.StatusOK, "Password has been reset successfully", nil)
}

func knownResetError(err error) bool {
	return errors.Is(err, usecase.ErrLinkTokenExpired) ||
		errors.Is(err, usecase.ErrLinkTokenInvalid) ||
		errors.Is(err, usecase.ErrSamePassword) ||
		errors.Is(err, usecase.ErrPasswordPolicyViolation)
}
