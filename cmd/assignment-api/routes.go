package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/case-assignment-api/api/swagger"
	"github.com/noah-isme/case-assignment-api/internal/middleware"
	"github.com/noah-isme/case-assignment-api/internal/models"
	"github.com/noah-isme/case-assignment-api/pkg/config"
	"github.com/noah-isme/case-assignment-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/case-assignment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/case-assignment-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, app *application, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(app.metrics))

	r.GET("/health", app.ops.Health)
	r.GET("/ready", app.ops.Ready)
	r.GET("/metrics", app.ops.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.ResponseMeta())
	if app.exports != nil {
		api.GET("/exports/:token", app.exports.Download)
	}

	managers := middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	secured := api.Group("")
	secured.Use(middleware.JWT(app.auth))

	cases := secured.Group("/cases/:caseId")
	cases.GET("/assignments", app.assignments.Active)
	cases.GET("/assignments/history", app.assignments.History)
	cases.POST("/assignments", managers, app.assignments.Assign)
	cases.POST("/assignments/reassign", managers, app.assignments.Reassign)
	cases.POST("/assignments/history/export", managers, app.assignments.ExportHistory)
	cases.POST("/release", managers, app.assignments.Release)

	secured.POST("/assignments/:id/deactivate", managers, app.assignments.Deactivate)

	transfers := secured.Group("/transfers")
	transfers.GET("", app.transfers.List)
	transfers.POST("", app.transfers.Create)
	transfers.GET("/:id", app.transfers.Get)
	transfers.POST("/:id/process", managers, app.transfers.Process)

	rules := secured.Group("/rules")
	rules.POST("/evaluate", managers, app.rules.Evaluate)
	rules.GET("", adminOnly, app.rules.List)
	rules.POST("", adminOnly, app.rules.Create)
	rules.GET("/:id", adminOnly, app.rules.Get)
	rules.PUT("/:id", adminOnly, app.rules.Update)
	rules.POST("/:id/deactivate", adminOnly, app.rules.Deactivate)

	attorneys := secured.Group("/attorneys/:id")
	attorneys.GET("/expertise", middleware.RBAC(string(models.RoleAdmin), "SELF"), app.attorneys.Expertise)
	attorneys.PUT("/expertise", adminOnly, app.attorneys.UpsertExpertise)
	attorneys.GET("/workload", app.attorneys.Workload)
	attorneys.POST("/workload/recalculate", managers, app.attorneys.RecalculateWorkload)

	return r
}
