package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medvault-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int    `json:"code"`
	Kind    int    `json:"kind,omitempty"`
	Message string `json:"message"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	RespondWithStatus(c, http.StatusOK, data)
}

// RespondWithStatus sends a success response with an explicit status code
func RespondWithStatus(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, err error) {
	RespondWithStatusError(c, 0, err)
}

// RespondWithStatusError is RespondWithError with an explicit status code.
// A zero status derives the code from the error.
func RespondWithStatusError(c *gin.Context, status int, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"
	kind := 0

	if appErr, ok := errors.As(err); ok {
		statusCode = appErr.StatusCode()
		kind = int(appErr.Code)
		if statusCode != http.StatusInternalServerError {
			message = appErr.Message
		}
	}
	if status != 0 {
		statusCode = status
	}

	if statusCode >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetString("request_id")).
			Msg("request failed")
	}

	c.AbortWithStatusJSON(statusCode, Response{
		Status: "error",
		Error: &Error{
			Code:    statusCode,
			Kind:    kind,
			Message: message,
		},
	})
}
