package app

import (
	"github.com/osvaldoandrade/agentq/internal/controllers"
	"github.com/osvaldoandrade/agentq/internal/middleware"
	"github.com/osvaldoandrade/agentq/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupMappings(app *Application) {
	v1 := app.Engine.Group("/v1/agentq")
	{
		submitBucket := ratelimit.Bucket{
			RequestsPerMinute: app.Config.RateLimit.Submit.RequestsPerMinute,
			BurstSize:         app.Config.RateLimit.Submit.BurstSize,
		}
		v1.POST("/jobs", middleware.RateLimitSubmit(app.RateLimiter, submitBucket), controllers.NewSubmitJobController(app.Jobs).Handle)

		v1.GET("/jobs/:id", controllers.NewGetJobController(app.Jobs).Handle)
		v1.GET("/jobs/:id/result", controllers.NewGetResultController(app.Jobs).Handle)
		v1.GET("/jobs/:id/stream", controllers.NewStreamJobController(app.Streams, app.Config.DefaultFailureRate).Handle)
	}

	app.Engine.GET("/healthz", controllers.NewHealthController(app.Store).Handle)
	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
