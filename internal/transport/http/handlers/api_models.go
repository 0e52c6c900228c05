package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kangalos/auth-service/internal/transport/http/middleware"
)

// Envelope is the uniform response shape for every endpoint. Data is only
// populated by register and login; meta carries correlation identifiers.
type Envelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	Meta    any    `json:"meta"`
}

func respond(c *gin.Context, httpStatus int, ok bool, message string, data any) {
	if data == nil {
		// data is always an object, empty when the operation has no payload.
		data = gin.H{}
	}
	c.JSON(httpStatus, Envelope{
		Status:  ok,
		Message: message,
		Data:    data,
		Meta:    gin.H{"traceId": middleware.GetTraceID(c)},
	})
}

// RespondOK writes a success envelope.
func RespondOK(c *gin.Context, httpStatus int, message string, data any) {
	respond(c, httpStatus, true, message, data)
}

// RespondError writes a failure envelope.
func RespondError(c *gin.Context, httpStatus int, message string) {
	respond(c, httpStatus, false, message, nil)
}

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Username  string `json:"username" binding:"required"`
	Phone     string `json:"phone" binding:"omitempty"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// RegisterData is the data payload of a successful registration.
type RegisterData struct {
	User RegisteredUser `json:"user"`
}

// RegisteredUser is the minimal user view echoed after registration.
type RegisteredUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// LoginRequest defines the login payload.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginData is the data payload of a successful login.
type LoginData struct {
	AccessToken string `json:"accessToken"`
}

// EmailRequest carries the single email field used by the forgot-password
// and send-create-password endpoints.
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// TokenRequest carries a link token submitted back by the frontend.
type TokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// ResetPasswordRequest carries a reset token with its replacement password.
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// HealthData describes the liveness payload.
type HealthData struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

// ReadyData describes readiness probe results per dependency.
type ReadyData struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// BindJSON binds the request body and writes the 400 envelope itself on
// failure.
func BindJSON(c *gin.Context, target any) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}
