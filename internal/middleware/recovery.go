package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"vidtube/internal/response"
)

func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				if c.Writer.Written() {
					log.Error().Interface("panic", r).Msg("panic after response was written")
					c.Abort()
					return
				}
				response.Error(c, log, fmt.Errorf("panic: %v", r))
			}
		}()
		c.Next()
	}
}
