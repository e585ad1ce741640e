package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"vidtube/internal/config"
	"vidtube/internal/middleware"
	"vidtube/internal/service"
)

type Services struct {
	Auth     *service.AuthService
	Accounts *service.AccountService
	Profiles *service.ProfileService
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	services Services
	limiter  *middleware.RateLimiter
	checks   []HealthCheck
}

// NewHandlerSet wires the HTTP layer. limiter may be nil to disable rate
// limiting of the credential endpoints.
func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, services Services, limiter *middleware.RateLimiter, checks ...HealthCheck) HandlerSet {
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		services: services,
		limiter:  limiter,
		checks:   checks,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	users := router.Group("/v1/users")
	{
		public := users.Group("")
		if h.limiter != nil {
			public.Use(h.limiter.Handler())
		}
		public.POST("/register", h.RegisterUser)
		public.POST("/login", h.Login)
		public.POST("/refresh-token", h.RefreshToken)

		protected := users.Group("")
		protected.Use(middleware.Auth(h.services.Auth, h.log))
		protected.POST("/logout", h.Logout)
		protected.POST("/change-password", h.ChangePassword)
		protected.GET("/current-user", h.CurrentUser)
		protected.PATCH("/update-account", h.UpdateAccount)
		protected.PATCH("/avatar", h.UpdateAvatar)
		protected.PATCH("/cover-image", h.UpdateCoverImage)
		protected.GET("/c/:username", h.ChannelProfile)
		protected.GET("/history", h.WatchHistory)
	}
}
