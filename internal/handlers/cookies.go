package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vidtube/internal/middleware"
	"vidtube/internal/service"
)

func (h HandlerSet) setSessionCookies(c *gin.Context, session service.Session) {
	h.setCookie(c, middleware.AccessTokenCookie, session.AccessToken, int(h.services.Auth.AccessTTL().Seconds()))
	h.setCookie(c, middleware.RefreshTokenCookie, session.RefreshToken, int(h.services.Auth.RefreshTTL().Seconds()))
}

func (h HandlerSet) clearSessionCookies(c *gin.Context) {
	h.setCookie(c, middleware.AccessTokenCookie, "", -1)
	h.setCookie(c, middleware.RefreshTokenCookie, "", -1)
}

// Session cookies are always HttpOnly; Secure and SameSite come from config.
func (h HandlerSet) setCookie(c *gin.Context, name, value string, maxAge int) {
	cookie := h.cfg.Cookie
	path := cookie.Path
	if path == "" {
		path = "/"
	}
	c.SetSameSite(sameSite(cookie.SameSite))
	c.SetCookie(name, value, maxAge, path, cookie.Domain, cookie.Secure, true)
}

func sameSite(mode string) http.SameSite {
	switch strings.ToLower(mode) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
