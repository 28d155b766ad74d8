package response

import (
	"net/http"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError renders err with the status and code of its apperr kind.
// Errors without a kind become a generic 500 so internals do not leak.
func RespondError(c *gin.Context, err error) {
	status := apperr.StatusOf(err)
	code := string(apperr.KindOf(err))
	msg := "internal server error"
	if code != "" && err != nil {
		msg = err.Error()
	}
	if code == "" {
		code = "internal_error"
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
