package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/finiti-glossary/internal/handler"
	"github.com/iliyamo/finiti-glossary/internal/middleware"
	"github.com/iliyamo/finiti-glossary/internal/metrics"
)

// RegisterRoutes registers routes that do not require authentication:
// liveness, readiness and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, m *metrics.Metrics) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	// /metrics is served from the service's own registry.
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
}

// RegisterAuth registers the /auth routes.  Every route passes through the
// token bucket; the test-token route additionally requires an Admin token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwt middleware.TokenParser, limit echo.MiddlewareFunc) {
	g := e.Group("/auth")
	if limit != nil {
		g.Use(limit)
	}
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/reset-password/request", a.ResetPasswordRequest)
	g.POST("/reset-password/confirm", a.ResetPasswordConfirm)

	// Protected endpoints.
	g.GET("/me", a.Me, middleware.JWTAuth(jwt))
	g.POST("/reset-password/test-token", a.TestToken,
		middleware.JWTAuth(jwt), middleware.RequireRole("Admin"))
}

// RegisterAdmin registers the glossary administration routes.  All of
// them need a valid access token; GET responses go through the cache
// when one is configured.
func RegisterAdmin(e *echo.Echo, h *handler.GlossaryHandler, jwt middleware.TokenParser, cache *middleware.RedisCache) {
	g := e.Group("/admin")
	g.Use(middleware.JWTAuth(jwt))

	var cached []echo.MiddlewareFunc
	if cache != nil {
		cached = append(cached, cache.Middleware())
	}
	g.GET("/all", h.List, cached...)
	g.GET("/history/:stableId", h.History, cached...)

	g.POST("/create", h.Create)
	g.POST("/publish/:id", h.Publish)
	g.PUT("/update/:id", h.Update)
	g.POST("/archive/:id", h.Archive)
	g.POST("/restore/:stableId/:version", h.Restore)
	g.DELETE("/delete/:id", h.Delete)
}

// RegisterPublic registers the unauthenticated reader endpoints.  No JWT or
// role middleware applies; responses share the admin cache prefix so
// glossary mutations purge them too.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache *middleware.RedisCache) {
	g := e.Group("/glossary", cache.Middleware())
	g.GET("", p.SearchTerms)
	g.GET("/:stableId", p.GetTerm)
}
