package api

import (
	"github.com/gin-gonic/gin"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/handlers"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, manager *monitoring.HealthManager) {
	r.GET("/health", handlers.Health(manager))
	r.GET("/health/live", handlers.Liveness(manager))
	r.GET("/health/ready", handlers.Health(manager))
}
