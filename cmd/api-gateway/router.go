package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/permitflow-api/internal/handler"
	"github.com/noah-isme/permitflow-api/internal/middleware"
	"github.com/noah-isme/permitflow-api/internal/models"
	"github.com/noah-isme/permitflow-api/internal/service"
	"github.com/noah-isme/permitflow-api/pkg/config"
	"github.com/noah-isme/permitflow-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/permitflow-api/pkg/middleware/cors"
	"github.com/noah-isme/permitflow-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/permitflow-api/pkg/middleware/requestid"
)

type routerDeps struct {
	permits  *handler.PermitHandler
	approval *handler.ApprovalHandler
	admin    *handler.AdminHandler
	files    *handler.FileHandler
	ops      *handler.MetricsHandler
	verifier *service.TokenVerifier
	metrics  *service.MetricsService
	limiter  *ratelimit.Limiter
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 4 * cfg.Uploads.MaxFileSizeBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.ops.Health)
	r.GET("/ready", deps.ops.Ready)
	r.GET("/metrics", deps.ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	throttle := ratelimit.Middleware(deps.limiter)
	api := r.Group(cfg.APIPrefix)
	{
		permits := api.Group("/permits")
		permits.POST("", throttle, deps.permits.Submit)
		permits.POST("/resubmit", throttle, deps.permits.Resubmit)
		permits.GET("/track", deps.permits.Track)

		approvals := api.Group("/approvals")
		approvals.GET("/:token", deps.approval.Get)
		approvals.POST("/:token/decision", throttle, deps.approval.Decide)

		api.GET("/files", deps.files.Serve)

		admin := api.Group("/admin", middleware.JWT(deps.verifier), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
		admin.GET("/permits", middleware.Audit(logr, "permits.list"), deps.admin.List)
		admin.GET("/permits/summary", middleware.WithResponseMeta(), middleware.Audit(logr, "permits.summary"), deps.admin.Summary)
	}

	return r
}
