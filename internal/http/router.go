// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cargoline/internal/http/handlers"
	"cargoline/internal/http/middleware"
	"cargoline/internal/infra"
	"cargoline/internal/modules/drivers"
	"cargoline/internal/modules/jobs"
	"cargoline/internal/modules/notify"
	"cargoline/internal/modules/tracking"
	"cargoline/internal/types"
)

type RouterDeps struct {
	Jobs          *jobs.Service
	Drivers       *drivers.Service
	Tracking      *tracking.Service
	Notifications *notify.Store
	Verifier      infra.TokenVerifier
	Log           *zap.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	authed := r.Group("/", middleware.Auth(deps.Verifier))
	dispatchOnly := middleware.RequireRoles(types.RoleDispatcher, types.RoleAdmin)

	jobHandler := handlers.NewJobHandler(deps.Jobs)
	authed.POST("/jobs", jobHandler.Create)
	authed.GET("/jobs", jobHandler.List)
	authed.GET("/jobs/:id", jobHandler.Get)
	authed.GET("/jobs/:id/events", jobHandler.Events)
	authed.POST("/jobs/:id/assign", dispatchOnly, jobHandler.Assign)
	authed.POST("/jobs/:id/unassign", dispatchOnly, jobHandler.Unassign)
	authed.POST("/jobs/:id/transition", jobHandler.Transition)
	authed.POST("/jobs/:id/cancel", jobHandler.Cancel)
	authed.POST("/jobs/:id/hold", jobHandler.Hold)
	authed.POST("/jobs/:id/release", jobHandler.Release)

	driverHandler := handlers.NewDriverHandler(deps.Drivers)
	authed.POST("/drivers", driverHandler.Upsert)
	authed.GET("/drivers/eligible", driverHandler.FindEligible)
	authed.GET("/drivers/:id", driverHandler.Get)
	authed.POST("/drivers/:id/status", driverHandler.SetStatus)
	authed.POST("/drivers/:id/reviews", driverHandler.AddReview)

	trackingHandler := handlers.NewTrackingHandler(deps.Tracking)
	authed.POST("/tracking/:id/location", trackingHandler.RecordLocation)
	authed.GET("/tracking/:id/location", trackingHandler.CurrentLocation)
	authed.POST("/tracking/route", trackingHandler.OptimizeRoute)

	notificationHandler := handlers.NewNotificationHandler(deps.Notifications)
	authed.GET("/notifications", notificationHandler.List)
	authed.POST("/notifications/:id/read", notificationHandler.MarkRead)

	return r
}
