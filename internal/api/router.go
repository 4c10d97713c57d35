package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/app"
	iauth "github.com/EL-KENDEH-TEAM/EK-SMS/internal/auth"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/middleware"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/monitoring"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/registration"
)

// Dependencies are the services the router mounts.
type Dependencies struct {
	Registration *registration.Service
	JWT          *iauth.JWTService
	// RateStore backs the fixed-window limits. Nil disables them.
	RateStore middleware.RateStore
	// Health drives /health. Nil reports healthy with no probes.
	Health *monitoring.HealthManager
}

// NewRouter builds the Gin engine, wires middleware and registers the
// public and reviewer routes.
func NewRouter(cfg *app.Config, deps Dependencies) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Registration == nil {
		return nil, fmt.Errorf("registration service must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	registerHealthRoutes(r, deps.Health)

	if err := registerApplicationRoutes(r, cfg, deps); err != nil {
		return nil, err
	}
	if err := registerAdminRoutes(r, cfg, deps); err != nil {
		return nil, err
	}

	if prom := cfg.Monitoring.Prometheus; prom.Enabled {
		endpoint := prom.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
