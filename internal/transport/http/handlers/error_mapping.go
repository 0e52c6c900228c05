package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the error against the known cases or falls
// back to the generic response. Known failures always win over the fallback
// so internal errors never shadow a specific message.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			RespondError(c, cs.Status, cs.Message)
			return
		}
	}

	RespondError(c, fallbackStatus, fallbackMessage)
}
