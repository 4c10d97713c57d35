package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/app"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/handlers"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/middleware"
)

const resendWindow = time.Hour

func registerApplicationRoutes(r *gin.Engine, cfg *app.Config, deps Dependencies) error {
	h, err := handlers.NewApplicationHandler(deps.Registration)
	if err != nil {
		return err
	}

	throttle := middleware.NewThrottle(cfg.RateLimits.Public.RPS, cfg.RateLimits.Public.Burst)
	resendLimit := middleware.RateLimit(deps.RateStore, middleware.RateRule{
		Scope:  "resend",
		Limit:  cfg.RateLimits.ResendPerHour,
		Window: resendWindow,
		Key:    middleware.ClientParamKey("id"),
	})

	public := r.Group("/api/applications")
	public.Use(throttle.Handler())
	{
		public.POST("", h.Submit)
		public.GET("/countries", h.Countries)
		public.POST("/verify-applicant", h.VerifyApplicant)
		public.POST("/confirm-principal", h.ConfirmPrincipal)
		public.GET("/principal-view", h.PrincipalView)
		public.POST("/:id/resend-verification", resendLimit, h.ResendVerification)
		public.GET("/:id/status", h.Status)
	}
	return nil
}
