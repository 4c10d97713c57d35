package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/api"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/app"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/app/maintenance"
	iauth "github.com/EL-KENDEH-TEAM/EK-SMS/internal/auth"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/cache"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/database"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/middleware"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/monitoring"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/notifications"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/registration"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/logger"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/mail"
)

const healthProbeTimeout = 2 * time.Second

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB           *gorm.DB
	Redis        *cache.RedisStore
	Cache        cache.CounterStore
	Registration *registration.Service
	Sweeper      *maintenance.Sweeper
	Router       *gin.Engine
}

// bootstrapRuntime initialises the database, cache, mail, workflow and HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	stack.Cache = dbStore
	if cfg.Cache.UsesRedis() {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
			stack.Redis = nil
		} else {
			stack.Cache = stack.Redis
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	dispatcher, err := initialiseDispatcher(cfg.Email)
	if err != nil {
		return nil, err
	}

	stack.Registration, err = registration.NewService(stack.DB, dispatcher, cfg.Registration.ServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise registration service: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Sweeper = maintenance.NewSweeper(stack.Registration,
		maintenance.WithSchedule(cfg.Registration.Schedule()),
		maintenance.WithCachePurger(dbStore),
	)
	if err := stack.Sweeper.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(cfg, api.Dependencies{
		Registration: stack.Registration,
		JWT:          jwtSvc,
		RateStore:    middleware.NewCacheRateStore(stack.Cache),
		Health:       stack.healthManager(),
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func (s *runtimeStack) healthManager() *monitoring.HealthManager {
	manager := monitoring.NewHealthManager(healthProbeTimeout)
	manager.RegisterReadiness(monitoring.Check{
		Name: "database",
		Probe: func(ctx context.Context) error {
			sqlDB, err := s.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})
	if s.Redis != nil {
		manager.RegisterReadiness(monitoring.Check{Name: "redis", Probe: s.Redis.Health})
	}
	return manager
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Sweeper != nil {
		select {
		case <-s.Sweeper.Stop().Done():
		case <-ctx.Done():
			log.Warn("maintenance jobs still running at shutdown")
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
		s.DB = nil
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	driver := dbCfg.Driver
	if driver == "" {
		driver = "sqlite"
	}
	logger.WithModule("database").Info("database connected", zap.String("driver", driver))

	return db, nil
}

// initialiseDispatcher delivers over SMTP when enabled and logs messages otherwise.
func initialiseDispatcher(cfg app.EmailConfig) (*notifications.MailDispatcher, error) {
	var mailer mail.Mailer = mail.NewLogMailer(logger.WithModule("mail"))
	if cfg.SMTP.Enabled {
		smtpMailer, err := mail.NewSMTPMailer(cfg.SMTPSettings())
		if err != nil {
			return nil, fmt.Errorf("initialise smtp mailer: %w", err)
		}
		mailer = smtpMailer
	}

	dispatcher, err := notifications.NewMailDispatcher(mailer, notifications.WithReplyTo(strings.TrimSpace(cfg.ReplyTo)))
	if err != nil {
		return nil, fmt.Errorf("initialise notifications: %w", err)
	}
	return dispatcher, nil
}
