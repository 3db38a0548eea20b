// Package router builds the Gin engine and mounts all registered modules.
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	apphttp "yardguard_backend/internal/http"
	"yardguard_backend/platform/httpkit"
)

// New assembles the engine: global middleware, health endpoint, route groups
// and every module's routes.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(app))

	// Global per-IP limiter, 5 req/s with a burst of 20. The webhook group
	// below carries its own stricter limiter on top.
	globalLimiter := httpkit.NewIPRateLimiter(5, 20, app.Logger)
	engine.Use(globalLimiter.RateLimit())

	engine.GET("/api/health", func(c *gin.Context) {
		if app.Health != nil {
			if err := app.Health.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")

	webhookLimiter := httpkit.NewWebhookRateLimiter(app.Logger)
	webhooks := v1.Group("/webhooks")
	webhooks.Use(webhookLimiter.RateLimit())
	webhooks.Use(httpkit.ServiceKeyRequired(app.Config))

	authMiddleware := httpkit.AuthRequired(app.Config)
	reviewer := v1.Group("")
	reviewer.Use(authMiddleware)
	reviewer.Use(httpkit.RequireAnyRole("reviewer", "admin"))

	ctx := &apphttp.RouterContext{
		Engine:         engine,
		V1:             v1,
		Webhooks:       webhooks,
		Reviewer:       reviewer,
		Config:         app.Config,
		AuthMiddleware: authMiddleware,
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(ctx)
		app.Logger.Info("registered http module", "module", module.Name())
	}

	return engine
}

func corsMiddleware(app *apphttp.App) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Service-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: app.Config.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if app.Config.GetCORSAllowAll() {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = app.Config.GetCORSOrigins()
	}
	return cors.New(cfg)
}
