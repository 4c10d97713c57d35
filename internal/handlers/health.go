package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/monitoring"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/logger"
)

// Health reports readiness. Every readiness probe must pass for a 200.
func Health(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeHealthReport(c, manager.EvaluateReadiness(requestContext(c)))
	}
}

// Liveness reports whether the process itself is serving.
func Liveness(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeHealthReport(c, manager.EvaluateLiveness(requestContext(c)))
	}
}

func writeHealthReport(c *gin.Context, report monitoring.HealthReport) {
	checks := make(map[string]monitoring.ProbeStatus, len(report.Checks))
	for _, result := range report.Checks {
		checks[result.Component] = result.Status
		if result.Err != nil {
			logger.WithModule("health").Warn("health probe failed",
				zap.String("component", result.Component),
				zap.String("status", string(result.Status)),
				zap.Error(result.Err),
			)
		}
	}

	status := http.StatusOK
	if !report.Success {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checks":     checks,
		"checked_at": time.Now().UTC(),
	})
}
