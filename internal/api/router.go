// Package api wires together all HTTP routes of shopdesk.
//
// Route groups:
//   - /health and /ready are unauthenticated probes.
//   - /api/v1/auth/login is unauthenticated and rate limited per client IP.
//   - Everything else under /api/v1 requires a bearer token. Routes under
//     /api/v1/shops/:shopID additionally resolve the shop into an access.TenantScope
//     before the handler runs; a shop the caller cannot access answers 403. PUT .../status is the
//     exception and runs without a scope.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopdesk/shopdesk/internal/access"
	"github.com/shopdesk/shopdesk/internal/api/handlers"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/config"
	"github.com/shopdesk/shopdesk/internal/middleware"
)

// Pinger is a dependency probed by /health and /ready
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators the router needs
type Deps struct {
	Config        *config.Config
	Engine        *access.Engine
	Authenticator *auth.Authenticator
	Tokens        *auth.TokenIssuer
	Users         handlers.Credentials
	DB            Pinger
	// Redis backs the shared rate limiter when security.rate_limiting.backend is redis
	Redis redis.UniversalClient
}

// BackgroundServices holds goroutines started by the router that must be stopped on shutdown,
// after the HTTP server has drained.
type BackgroundServices struct {
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines
func (bg *BackgroundServices) Shutdown() {
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("router background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(d Deps) (*gin.Engine, *BackgroundServices) {
	cfg := d.Config
	bg := &BackgroundServices{}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.AccessLogMiddleware(slog.Default()))
	secHeaders := middleware.DefaultSecurityHeadersConfig()
	secHeaders.EnableHSTS = cfg.Security.TLS.Enabled
	router.Use(middleware.SecurityHeadersMiddleware(secHeaders))
	if len(cfg.Security.CORS.AllowedOrigins) > 0 {
		router.Use(middleware.CORSMiddleware(cfg.Security.CORS.AllowedOrigins))
	}

	router.GET("/health", healthCheckHandler())
	router.GET("/ready", readinessHandler(d.DB, d.Redis))

	h := handlers.New(d.Engine, d.Users, d.Tokens)
	v1 := router.Group("/api/v1")

	login := v1.Group("/auth")
	if cfg.Security.RateLimiting.Enabled {
		login.Use(middleware.RateLimitMiddleware(newLimiter(d, bg, middleware.LoginRateLimitConfig(), "ratelimit:login:")))
	}
	login.POST("/login", h.Login)

	authed := v1.Group("")
	authed.Use(middleware.AuthMiddleware(d.Authenticator))
	if cfg.Security.RateLimiting.Enabled {
		rl := middleware.RateLimitConfig{
			RequestsPerMinute: cfg.Security.RateLimiting.RequestsPerMinute,
			BurstSize:         cfg.Security.RateLimiting.Burst,
			CleanupInterval:   5 * time.Minute,
		}
		authed.Use(middleware.RateLimitMiddleware(newLimiter(d, bg, rl, "ratelimit:api:")))
	}

	authed.GET("/catalog/permissions", h.PermissionCatalog)
	authed.GET("/me/shops", h.MyShops)
	statusChangers := middleware.RequireRole(auth.RoleSuperAdmin, auth.RoleShopOwner)
	authed.PUT("/users/:userID/status", statusChangers, h.SetUserStatus)
	// outside the shop group: an inactive shop has no TenantScope but can still be reactivated
	authed.PUT("/shops/:shopID/status", statusChangers, h.SetShopStatus)

	shop := authed.Group("/shops/:shopID")
	shop.Use(middleware.ShopContextMiddleware(d.Engine.Resolver))
	{
		shop.POST("/records/:table", h.CreateRecord)
		shop.GET("/records/:table/:id", h.GetRecord)
		shop.PUT("/records/:table/:id", h.UpdateRecord)
		shop.DELETE("/records/:table/:id", h.DeleteRecord)

		shop.GET("/approvals", h.ListApprovals)
		shop.GET("/approvals/:id", h.GetApproval)
		shop.POST("/approvals/:id/decision", h.DecideApproval)

		shop.POST("/workers/:userID", h.AssignWorker)
		shop.DELETE("/workers/:userID", h.RemoveWorker)
		shop.GET("/workers/:userID/permissions", h.ListWorkerPermissions)
		shop.POST("/workers/:userID/permissions", h.GrantWorkerPermission)
		shop.DELETE("/workers/:userID/permissions/:module/:permission", h.RevokeWorkerPermission)

		shop.GET("/audit-logs", h.ListAuditLogs)
		shop.GET("/audit-logs/export", h.ExportAuditLogs)
	}

	return router, bg
}

func newLimiter(d Deps, bg *BackgroundServices, cfg middleware.RateLimitConfig, prefix string) middleware.Limiter {
	if d.Config.Security.RateLimiting.Backend == "redis" && d.Redis != nil {
		return middleware.NewRedisRateLimiter(d.Redis, cfg, prefix)
	}
	rl := middleware.NewRateLimiter(cfg)
	bg.rateLimiters = append(bg.rateLimiters, rl)
	return rl
}

// healthCheckHandler is the liveness probe; it does not touch dependencies
func healthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler fails while the database, or redis when configured, is unreachable
func readinessHandler(db Pinger, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		checks := gin.H{}
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				checks["database"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "checks": checks, "error": "database not ready"})
				return
			}
			checks["database"] = "healthy"
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "checks": checks, "error": "redis not ready"})
				return
			}
			checks["redis"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
