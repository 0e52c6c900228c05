package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kangalos/auth-service/internal/infra/config"
	"github.com/kangalos/auth-service/internal/transport/http/handlers"
	"github.com/kangalos/auth-service/internal/transport/http/middleware"
)

// Dependencies wires the handlers and cross-cutting middleware the router
// needs.
type Dependencies struct {
	Config       *config.AppConfig
	Logger       *zap.Logger
	Registration *handlers.RegistrationHandler
	Auth         *handlers.AuthHandler
	Password     *handlers.PasswordHandler
	Health       *handlers.HealthHandler
	RateLimiter  *middleware.RateLimiter
	Metrics      *middleware.HTTPMetrics
}

// NewRouter assembles the gin engine with the full middleware chain and the
// auth API surface.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.EnrichContext())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Handler())
	}
	if deps.Config != nil && deps.Config.App.FrontendURL != "" {
		router.Use(middleware.CORS([]string{deps.Config.App.FrontendURL}))
	}

	router.GET("/healthz", deps.Health.Status)
	router.GET("/readyz", deps.Health.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/api/v1/auth")

	loginLimit := gin.HandlerFunc(func(c *gin.Context) { c.Next() })
	resetLimit := gin.HandlerFunc(func(c *gin.Context) { c.Next() })
	if deps.RateLimiter != nil && deps.Config != nil {
		rl := deps.Config.RateLimit
		loginLimit = deps.RateLimiter.RateLimit(middleware.RateLimitRule{
			Name:       "login",
			Limit:      rl.LoginMaxAttempts,
			Window:     rl.WindowDuration,
			Identifier: middleware.ClientIPIdentifier(),
		})
		resetLimit = deps.RateLimiter.RateLimit(middleware.RateLimitRule{
			Name:       "password-reset",
			Limit:      rl.PasswordResetMaxAttempts,
			Window:     rl.WindowDuration,
			Identifier: middleware.EmailFieldIdentifier(),
		})
	}

	auth.POST("/register", deps.Registration.Register)
	auth.POST("/login", loginLimit, deps.Auth.Login)
	auth.POST("/verify-email", deps.Registration.VerifyEmail)
	auth.POST("/forgot-password", resetLimit, deps.Password.ForgotPassword)
	auth.POST("/send-create-password", deps.Password.SendCreatePassword)
	auth.POST("/reset-password", deps.Password.ResetPassword)

	return router
}
