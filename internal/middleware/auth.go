package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"vidtube/internal/models"
	"vidtube/internal/response"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	currentUserKey = "current_user"
)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.PublicUser, error)
}

// Auth admits requests carrying a valid access token, read from the
// accessToken cookie or an Authorization: Bearer header.
func Auth(auth Authenticator, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.Authenticate(c.Request.Context(), AccessToken(c))
		if err != nil {
			response.Error(c, log, err)
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

func AccessToken(c *gin.Context) string {
	if token, err := c.Cookie(AccessTokenCookie); err == nil && token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func CurrentUser(c *gin.Context) (models.PublicUser, bool) {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return models.PublicUser{}, false
	}
	user, ok := value.(models.PublicUser)
	return user, ok
}
