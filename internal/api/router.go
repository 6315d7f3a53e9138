package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	iauth "github.com/charlesng35/filebridge/internal/auth"
	"github.com/charlesng35/filebridge/internal/handlers"
	"github.com/charlesng35/filebridge/internal/middleware"
	"github.com/charlesng35/filebridge/internal/monitoring"
	"github.com/charlesng35/filebridge/internal/permissions"
	"github.com/charlesng35/filebridge/internal/pool"
	"github.com/charlesng35/filebridge/internal/realtime"
	"github.com/charlesng35/filebridge/internal/services"
)

// Options carries the optional collaborators for the router. Nil fields
// disable the corresponding feature: without an authenticator and JWT
// service the API runs open, without a health manager the probes always
// report up, and without a hub the websocket endpoint is not registered.
type Options struct {
	Accounts *iauth.Authenticator
	JWT      *iauth.JWTService
	Audit    *services.AuditService
	Health   *monitoring.HealthManager
	Hub      *realtime.Hub

	RateStore  middleware.RateStore
	RateLimit  int
	RateWindow time.Duration
}

func (o Options) authEnabled() bool {
	return o.JWT != nil && o.Accounts != nil && !o.Accounts.Empty()
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(p *pool.Pool, opts Options) (*gin.Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("session pool must be provided")
	}

	rateStore := opts.RateStore
	if rateStore == nil {
		rateStore = middleware.NewMemoryRateStore()
	}
	rateLimit := opts.RateLimit
	if rateLimit <= 0 {
		rateLimit = 100
	}
	rateWindow := opts.RateWindow
	if rateWindow <= 0 {
		rateWindow = time.Minute
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(middleware.RateLimit(rateStore, rateLimit, rateWindow))

	// Probes and metrics are public
	healthHandler := handlers.NewHealthHandler(opts.Health)
	r.GET("/healthz", healthHandler.Live)
	r.GET("/readyz", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authEnabled := opts.authEnabled()
	if authEnabled {
		authHandler := handlers.NewAuthHandler(opts.Accounts, opts.JWT, opts.Audit)
		r.POST("/api/auth/token", authHandler.Token)
	}

	api := r.Group("/api")
	if authEnabled {
		api.Use(middleware.Auth(opts.JWT))
	}

	sessionsHandler := handlers.NewSessionsHandler(p)
	api.GET("/sessions", middleware.RequireScope(permissions.ScopeSessionsRead), sessionsHandler.List)
	api.GET("/sessions/:name", middleware.RequireScope(permissions.ScopeSessionsRead), sessionsHandler.Get)

	filesHandler := handlers.NewFilesHandler(p, opts.Audit, opts.Hub)
	api.GET("/sessions/:name/entries", middleware.RequireScope(permissions.ScopeFilesRead), filesHandler.List)
	api.GET("/sessions/:name/metadata", middleware.RequireScope(permissions.ScopeFilesRead), filesHandler.Metadata)
	api.GET("/sessions/:name/content", middleware.RequireScope(permissions.ScopeFilesRead), filesHandler.Content)
	api.GET("/sessions/:name/stream", middleware.RequireScope(permissions.ScopeFilesStream), filesHandler.Stream)

	// The websocket endpoint checks its own credentials because browsers
	// cannot attach headers to websocket upgrades. It stays outside the
	// authenticated group; tokens arrive as a query parameter.
	if opts.Hub != nil {
		var jwt *iauth.JWTService
		if authEnabled {
			jwt = opts.JWT
		}
		rt := handlers.NewRealtimeHandler(opts.Hub, jwt, realtime.StreamSessions, realtime.StreamTransfers)
		r.GET("/api/ws/events", rt.Events)
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
