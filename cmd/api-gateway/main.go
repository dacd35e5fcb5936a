package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-backoffice-api/internal/handler"
	"github.com/noah-isme/sma-backoffice-api/internal/repository"
	"github.com/noah-isme/sma-backoffice-api/internal/service"
	"github.com/noah-isme/sma-backoffice-api/pkg/cache"
	"github.com/noah-isme/sma-backoffice-api/pkg/config"
	"github.com/noah-isme/sma-backoffice-api/pkg/database"
	"github.com/noah-isme/sma-backoffice-api/pkg/export"
	"github.com/noah-isme/sma-backoffice-api/pkg/logger"
)

// @title SMA Back Office API
// @version 1.0.0
// @description Student finance, clearance and instructor workload status engine
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	financeRepo := repository.NewStudentFinanceRepository(db)
	workloadRepo := repository.NewInstructorWorkloadRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "backoffice", logr)
	defer cacheRepo.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Finance.CacheTTL, logr, redisClient != nil)
	pdf := export.NewPDFExporter()
	loc := cfg.Finance.Location()

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	financeSvc := service.NewFinanceService(service.FinanceServiceParams{
		Repo:      financeRepo,
		Audit:     auditRepo,
		Cache:     cacheSvc,
		Metrics:   metricsSvc,
		Validator: validate,
		Logger:    logr,
		Config:    service.FinanceServiceConfig{CacheTTL: cfg.Finance.CacheTTL, Location: loc},
	})
	clearanceSvc := service.NewClearanceService(service.ClearanceServiceParams{
		Repo:      financeRepo,
		Audit:     auditRepo,
		Renderer:  pdf,
		Cache:     cacheSvc,
		Metrics:   metricsSvc,
		Validator: validate,
		Logger:    logr,
		Config:    service.ClearanceServiceConfig{Location: loc, Institution: cfg.Finance.InstitutionName},
	})
	overdueSvc := service.NewOverdueService(financeRepo, pdf, cacheSvc, logr, service.OverdueServiceConfig{
		CacheTTL: cfg.Finance.CacheTTL,
		Location: loc,
	})
	workloadSvc := service.NewWorkloadService(workloadRepo, cacheSvc, logr, service.WorkloadServiceConfig{
		CacheTTL:      cfg.Workload.CacheTTL,
		DefaultPeriod: cfg.Workload.DefaultPeriod,
		Location:      loc,
	})

	r := newRouter(cfg, logr, routerDeps{
		Tokens:    authSvc,
		Audit:     auditRepo,
		Metrics:   metricsSvc,
		Auth:      handler.NewAuthHandler(authSvc),
		Finance:   handler.NewFinanceHandler(financeSvc, overdueSvc, loc),
		Clearance: handler.NewClearanceHandler(clearanceSvc),
		Workload:  handler.NewWorkloadHandler(workloadSvc, loc),
		Probe:     handler.NewMetricsHandler(metricsSvc, db),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env, "timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
