// Package response writes the JSON envelope shared by every endpoint.
package response

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"vidtube/internal/apperror"
)

type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

type ErrorEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func Success(c *gin.Context, status int, data any, message string) {
	c.JSON(status, Envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

// Error renders err and aborts the chain. Internal errors are logged with
// their cause and rendered with a fixed message.
func Error(c *gin.Context, log zerolog.Logger, err error) {
	appErr := apperror.From(err)
	status := appErr.StatusCode()

	if appErr.Kind == apperror.KindInternal || appErr.Kind == apperror.KindUpload {
		log.Error().
			Err(err).
			Str("path", c.FullPath()).
			Str("request_id", c.Writer.Header().Get("X-Request-Id")).
			Msg("request failed")
	}

	message := appErr.Message
	if appErr.Kind == apperror.KindInternal && message == "" {
		message = "internal server error"
	}

	c.AbortWithStatusJSON(status, ErrorEnvelope{
		StatusCode: status,
		Message:    message,
		Success:    false,
	})
}
