package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/twosmallonions/recipes/backend/internal/api"
	"github.com/twosmallonions/recipes/backend/internal/middleware"
)

// Options configures the application router.
type Options struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	TokenValidator middleware.TokenValidator
	Recipes        *api.RecipeHandler
	Health         *api.HealthHandler
}

// SetupRouter configures the application routes
func SetupRouter(opts Options) *gin.Engine {
	router := gin.New()

	router.Use(
		middleware.RequestID(),
		middleware.Logging(opts.Logger),
		middleware.Metrics(),
		middleware.Recovery(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.ErrorHandler(opts.Logger),
	)

	// Operational routes
	opts.Health.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected routes
	protected := router.Group("/")
	protected.Use(middleware.AuthMiddleware(opts.TokenValidator))
	opts.Recipes.RegisterRoutes(protected)

	return router
}
