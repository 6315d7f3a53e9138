package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/filebridge/internal/api"
	"github.com/charlesng35/filebridge/internal/app"
	"github.com/charlesng35/filebridge/internal/app/maintenance"
	iauth "github.com/charlesng35/filebridge/internal/auth"
	"github.com/charlesng35/filebridge/internal/cache"
	"github.com/charlesng35/filebridge/internal/database"
	"github.com/charlesng35/filebridge/internal/middleware"
	"github.com/charlesng35/filebridge/internal/monitoring"
	"github.com/charlesng35/filebridge/internal/monitoring/checks"
	"github.com/charlesng35/filebridge/internal/pool"
	"github.com/charlesng35/filebridge/internal/realtime"
	"github.com/charlesng35/filebridge/internal/services"
	"github.com/charlesng35/filebridge/pkg/logger"
)

// runtimeStack bundles the long-lived services behind the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     *cache.RedisStore
	AuditSvc  *services.AuditService
	Hub       *realtime.Hub
	Pool      *pool.Pool
	Health    *monitoring.HealthManager
	Cleaner   *maintenance.Cleaner
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, cache, session pool, and the
// HTTP router. On failure everything started so far is torn down again.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed operations", zap.Error(err))
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	var store cache.Store = dbStore
	if stack.Redis != nil {
		store = stack.Redis
	}

	var (
		jwtSvc   *iauth.JWTService
		accounts *iauth.Authenticator
	)
	if cfg.Auth.Enabled() {
		jwtSvc, err = iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
		if err != nil {
			return nil, fmt.Errorf("initialise jwt service: %w", err)
		}
		accounts, err = iauth.NewAuthenticator(cfg.Auth.AccountList())
		if err != nil {
			return nil, fmt.Errorf("initialise accounts: %w", err)
		}
	}

	stack.AuditSvc, err = services.NewAuditService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}

	stack.Hub = realtime.NewHub()

	stack.Pool, err = pool.New(cfg.SupervisorConfig(), pool.WithEventSink(realtime.PoolEvents(stack.Hub)))
	if err != nil {
		return nil, fmt.Errorf("build session pool: %w", err)
	}
	if err := stack.Pool.Start(ctx); err != nil {
		return nil, fmt.Errorf("start session pool: %w", err)
	}

	stack.Health = monitoring.NewHealthManager()
	stack.Health.RegisterReadiness(checks.Database(stack.DB, 0))
	var redisPinger checks.RedisPinger
	if stack.Redis != nil {
		redisPinger = stack.Redis
	}
	stack.Health.RegisterReadiness(checks.Redis(redisPinger, cfg.Cache.Redis.Enabled, cfg.Cache.Redis.Timeout))
	stack.Health.RegisterReadiness(checks.Sessions(stack.Pool))

	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(store, stack.AuditSvc, cfg.Maintenance.CleanerOptions()...)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.RateStore = middleware.NewStoreRateStore(store)

	stack.Router, err = api.NewRouter(stack.Pool, api.Options{
		Accounts:   accounts,
		JWT:        jwtSvc,
		Audit:      stack.AuditSvc,
		Health:     stack.Health,
		Hub:        stack.Hub,
		RateStore:  stack.RateStore,
		RateLimit:  cfg.Server.RateLimit.Requests,
		RateWindow: cfg.Server.RateLimit.Window,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			<-stopCtx.Done()
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Pool != nil {
		if err := s.Pool.Shutdown(ctx); err != nil {
			log.Warn("session pool shutdown", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.Database.ConnectionConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(cfg.Database.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
