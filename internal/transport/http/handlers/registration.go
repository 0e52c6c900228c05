package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kangalos/auth-service/internal/usecase"
)

// RegistrationHandler exposes the register and verify-email endpoints.
type RegistrationHandler struct {
	service *usecase.RegistrationService
	logger  *zap.Logger
}

// NewRegistrationHandler builds a registration handler.
func NewRegistrationHandler(service *usecase.RegistrationService, logger *zap.Logger) *RegistrationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationHandler{service: service, logger: logger}
}

// Register handles POST /auth/register.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !BindJSON(c, &req) {
		return
	}

	user, err := h.service.Register(c.Request.Context(), usecase.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		Phone:     req.Phone,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		var dup *usecase.DuplicateError
		if errors.As(err, &dup) {
			RespondError(c, http.StatusConflict, dup.Error())
			return
		}
		if errors.Is(err, usecase.ErrPasswordPolicyViolation) {
			RespondError(c, http.StatusBadRequest, "Password does not meet the complexity requirements")
			return
		}
		h.logger.Error("register failed", zap.Error(err))
		RespondError(c, http.StatusInternalServerError, "Something went wrong. Please try again later.")
		return
	}

	RespondOK(c, http.StatusCreated,
		"Registration successful. Please check your email to verify your account.",
		RegisterData{User: RegisteredUser{ID: user.ID, Email: user.Email}},
	)
}

// VerifyEmail handles POST /auth/verify-email.
func (h *RegistrationHandler) VerifyEmail(c *gin.Context) {
	var req TokenRequest
	if !BindJSON(c, &req) {
		return
	}

	if err := h.service.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrLinkTokenExpired, Status: http.StatusBadRequest, Message: "Verification link has expired. Please request a new one."},
			{Err: usecase.ErrLinkTokenInvalid, Status: http.StatusBadRequest, Message: "Invalid verification link"},
		}
		if !errors.Is(err, usecase.ErrLinkTokenExpired) && !errors.Is(err, usecase.ErrLinkTokenInvalid) {
			h.logger.Error("verify email failed", zap.Error(err))
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "Something went wrong. Please try again later.")
		return
	}

	RespondOK(c, http.StatusOK, "Email verified successfully", nil)
}
