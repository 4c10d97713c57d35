package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/app"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/handlers"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/middleware"
)

const adminWindow = time.Minute

func registerAdminRoutes(r *gin.Engine, cfg *app.Config, deps Dependencies) error {
	h, err := handlers.NewAdminApplicationHandler(deps.Registration)
	if err != nil {
		return err
	}

	limits := cfg.RateLimits.Admin
	limit := func(scope string, perMinute int) gin.HandlerFunc {
		return middleware.RateLimit(deps.RateStore, middleware.RateRule{
			Scope:  scope,
			Limit:  perMinute,
			Window: adminWindow,
			Key:    middleware.ReviewerKey,
		})
	}

	admin := r.Group("/api/admin/applications")
	admin.Use(middleware.RequireReviewer(deps.JWT))
	{
		admin.GET("", h.List)
		admin.GET("/stats", h.Stats)
		admin.GET("/:id", h.Get)
		admin.POST("/:id/start-review", limit("admin_start_review", limits.StartReview), h.StartReview)
		admin.POST("/:id/request-info", limit("admin_request_info", limits.RequestInfo), h.RequestInfo)
		admin.POST("/:id/approve", limit("admin_approve", limits.Approve), h.Approve)
		admin.POST("/:id/reject", limit("admin_reject", limits.Reject), h.Reject)
		admin.POST("/:id/notes", limit("admin_notes", limits.Notes), h.AddNote)
	}
	return nil
}
