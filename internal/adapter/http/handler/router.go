package handler

import (
	"alpaclub/internal/adapter/http/middleware"
	redisStore "alpaclub/internal/adapter/storage/redis"
	"alpaclub/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AlpacaSvc      ports.AlpacaService
	AuthSvc        ports.AuthService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Admin login ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- Alpaca routes ---
	// Customization accepts either the owner secret in the body or an
	// admin bearer token; the optional auth middleware sorts out which.
	optionalAdmin := middleware.OptionalAdminAuth(deps.TokenSvc, deps.Logger)
	alpacaHandler := NewAlpacaHandler(deps.AlpacaSvc)
	alpacas := v1.Group("/alpacas")
	{
		alpacas.GET("", rl("read"), alpacaHandler.List)
		alpacas.GET("/:id", rl("read"), alpacaHandler.Get)
		alpacas.POST("/:id/bid", rl("bid"), alpacaHandler.PlaceBid)
		alpacas.PATCH("/:id", rl("customize"), optionalAdmin, alpacaHandler.Customize)
	}

	return r
}
