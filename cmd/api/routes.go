package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-admin-api/internal/handler"
	"github.com/noah-isme/attendance-admin-api/internal/middleware"
	"github.com/noah-isme/attendance-admin-api/pkg/config"
	"github.com/noah-isme/attendance-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/attendance-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/attendance-admin-api/pkg/middleware/requestid"
)

type routeHandlers struct {
	auth      *handler.AuthHandler
	users     *handler.UserHandler
	sessions  *handler.SessionHandler
	exports   *handler.ExportHandler
	dashboard *handler.DashboardHandler
	health    *handler.HealthHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, observer middleware.RequestObserver, tokens middleware.TokenValidator, h routeHandlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(observer))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.health.Health)
	r.GET("/ready", h.health.Ready)
	r.GET("/metrics", h.health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", h.auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))

	admin := secured.Group("")
	admin.Use(middleware.RequireSuperuser())
	admin.GET("/dashboard", h.dashboard.Show)
	admin.GET("/users", h.users.List)
	admin.POST("/users", h.users.Create)
	admin.GET("/users/:id/stats", h.users.Stats)
	admin.GET("/sessions", h.sessions.List)
	admin.GET("/sessions/form", h.sessions.Form)
	admin.POST("/sessions", h.sessions.Create)
	admin.GET("/sessions/:id", h.sessions.Get)
	admin.POST("/sessions/:id/marks", h.sessions.Mark)
	admin.POST("/sessions/:id/close", h.sessions.Close)
	admin.GET("/exports/users", h.exports.Users)
	admin.GET("/exports/attendance-matrix", h.exports.AttendanceMatrix)

	staff := secured.Group("")
	staff.Use(middleware.RequireStaff())
	staff.GET("/users/:id", h.users.Get)
	staff.PUT("/users/:id", h.users.Update)
	staff.DELETE("/users/:id", h.users.Delete)

	return r
}
