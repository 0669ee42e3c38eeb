package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/dormguard/patrol-service/internal/config"
	"github.com/dormguard/patrol-service/internal/handler"
	"github.com/dormguard/patrol-service/internal/middleware"
)

// RegisterHealth registers unauthenticated probe endpoints.
func RegisterHealth(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
	e.GET("/readyz", h.Ready)
}

// RegisterPatrols registers the patrol endpoints under /v1.  Every
// route requires a valid JWT with the educator or admin role.  When a
// Redis client is supplied the GETs are served through the read cache
// and the whole surface sits behind the token-bucket limiter.
func RegisterPatrols(e *echo.Echo, p *handler.PatrolHandler, jwtSecret string, rdb *redis.Client) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("educator", "admin"),
	)

	// Cache wraps reads only; mutating handlers invalidate the prefix.
	readCache := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	if rdb != nil {
		rl := config.LoadRateLimitConfig()
		if rl.Enabled {
			g.Use(middleware.NewTokenBucket(rl, rdb))
		}
		cc := config.LoadCacheConfig()
		if cc.Enabled {
			readCache = middleware.NewRedisCache(cc, rdb)
		}
	}

	g.GET("/patrols", p.List, readCache)
	g.POST("/patrols", p.Create)
	g.GET("/patrols/:patrolId", p.Get, readCache)
	g.PATCH("/patrols/:patrolId", p.Complete)
	g.DELETE("/patrols/:patrolId", p.Delete)

	g.GET("/patrols/:patrolId/entries/:entryId", p.GetEntry, readCache)
	g.PATCH("/patrols/:patrolId/entries/:entryId", p.UpdateEntry)
}
