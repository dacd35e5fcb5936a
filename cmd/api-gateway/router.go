package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-backoffice-api/api/swagger"
	"github.com/noah-isme/sma-backoffice-api/internal/handler"
	"github.com/noah-isme/sma-backoffice-api/internal/middleware"
	"github.com/noah-isme/sma-backoffice-api/internal/models"
	"github.com/noah-isme/sma-backoffice-api/pkg/config"
	"github.com/noah-isme/sma-backoffice-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-backoffice-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-backoffice-api/pkg/middleware/requestid"
)

type routerDeps struct {
	Tokens    middleware.TokenValidator
	Audit     middleware.AuditWriter
	Metrics   middleware.RequestObserver
	Auth      *handler.AuthHandler
	Finance   *handler.FinanceHandler
	Clearance *handler.ClearanceHandler
	Workload  *handler.WorkloadHandler
	Probe     *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.Probe.Health)
	r.GET("/ready", deps.Probe.Ready)
	r.GET("/metrics", deps.Probe.Prometheus)
	r.GET("/metrics/summary", middleware.JWT(deps.Tokens), middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), deps.Probe.Summary)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", deps.Auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.Tokens))
	secured.GET("/auth/me", deps.Auth.Me)

	if cfg.Finance.Enabled {
		finance := secured.Group("/finance")
		finance.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleFinance))

		finance.GET("/students", deps.Finance.ListStudents)
		finance.GET("/students/summary", deps.Finance.Summary)
		finance.GET("/students/:studentId", deps.Finance.StudentDetail)
		finance.POST("/students/:studentId/classes/:classId/suspend", deps.Finance.Suspend)
		finance.DELETE("/students/:studentId/classes/:classId/suspend", deps.Finance.Unsuspend)
		finance.POST("/suspensions/bulk", deps.Finance.BulkSuspend)
		finance.GET("/revenue", deps.Finance.Revenue)
		finance.GET("/overdue", deps.Finance.Overdue)

		finance.GET("/clearances", deps.Clearance.List)
		finance.POST("/clearances/bulk", deps.Clearance.BulkClear)
		finance.POST("/students/:studentId/classes/:classId/clearance", deps.Clearance.Clear)
		finance.DELETE("/students/:studentId/classes/:classId/clearance", deps.Clearance.Unclear)
		finance.GET("/students/:studentId/classes/:classId/certificate",
			middleware.Audit(deps.Audit, logr, models.AuditActionCertificate, "student_payments"),
			deps.Clearance.Certificate)
	}

	if cfg.Workload.Enabled {
		instructors := secured.Group("/instructors")
		instructors.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
		instructors.GET("/workload", deps.Workload.Report)
	}

	return r
}
