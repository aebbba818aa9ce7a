package app

import (
	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/zumo/internal/controllers"
	"github.com/osvaldoandrade/zumo/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupMappings(app *Application) {
	app.Engine.GET("/healthz", controllers.NewHealthController().Handle)
	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := app.Engine.Group("/.auth", middleware.RequireAuthenticated())
	{
		authed.GET("/whoami", controllers.NewWhoamiController().Handle)
		authed.GET("/identities/:provider",
			middleware.RateLimitIdentity(app.RateLimiter, app.Config),
			controllers.NewIdentityController(app.TokenFetcher).Handle,
		)
	}
}
