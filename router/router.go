// api/router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dev-mohitbeniwal/warden/api/controller"
	"github.com/dev-mohitbeniwal/warden/api/metrics"
	"github.com/dev-mohitbeniwal/warden/api/middleware"
)

func SetupRouter(
	controllers *controller.Controllers,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
	redisEnabled bool,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration, redisEnabled))

	api := router.Group("/api/v1")

	controllers.Auth.RegisterRoutes(api)
	controllers.Access.RegisterRoutes(api)
	controllers.Admin.RegisterRoutes(api)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router
}
