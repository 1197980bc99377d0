package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/mbs-portal-api/api/swagger"
	"github.com/noah-isme/mbs-portal-api/internal/handler"
	"github.com/noah-isme/mbs-portal-api/internal/middleware"
	"github.com/noah-isme/mbs-portal-api/internal/models"
	"github.com/noah-isme/mbs-portal-api/internal/repository"
	"github.com/noah-isme/mbs-portal-api/internal/service"
	"github.com/noah-isme/mbs-portal-api/pkg/cache"
	"github.com/noah-isme/mbs-portal-api/pkg/config"
	"github.com/noah-isme/mbs-portal-api/pkg/database"
	"github.com/noah-isme/mbs-portal-api/pkg/export"
	"github.com/noah-isme/mbs-portal-api/pkg/jobs"
	"github.com/noah-isme/mbs-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/mbs-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/mbs-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/mbs-portal-api/pkg/storage"
)

// @title MBS Portal API
// @version 1.0.0
// @description Grade parsing, analytics and Monte Carlo projections for pasted school portal reports
// @BasePath /api/v1
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	profileRepo := repository.NewProfileRepository(db, metricsSvc)

	// Redis is optional: analysis results are a pure function of the
	// profile, so an in-process cache keeps single-instance deployments
	// working when Redis is absent.
	var cacheRepo service.CacheRepository
	var cacheProbe *repository.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, falling back to in-memory cache", zap.Error(err))
		cacheRepo = repository.NewMemoryCacheRepository()
	} else {
		redisRepo := repository.NewCacheRepository(redisClient, logr)
		defer redisRepo.Close() //nolint:errcheck
		cacheRepo = redisRepo
		cacheProbe = redisRepo
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analysis.CacheTTL, logr, cfg.Analysis.CacheEnabled)

	parserSvc := service.NewParserService(logr)
	averageSvc := service.NewAverageService(logr)
	statisticsSvc := service.NewStatisticsService(logr)
	projectionSvc := service.NewProjectionService(cfg.Analysis.SimulationRuns, logr)
	analysisSvc := service.NewAnalysisService(averageSvc, statisticsSvc, projectionSvc, cacheSvc, metricsSvc, logr)

	warmQueue := jobs.NewQueue("analysis-warm", func(ctx context.Context, job jobs.Job) error {
		profile, ok := job.Payload.(*models.Profile)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return analysisSvc.Warm(ctx, profile)
	}, jobs.QueueConfig{
		Workers: cfg.Analysis.PrecomputeWorkers,
		Logger:  logr,
	})
	warmQueue.Start(ctx)
	defer warmQueue.Stop()

	profileSvc := service.NewProfileService(profileRepo, parserSvc, averageSvc, metricsSvc, warmQueue, nil, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	healthHandler := handler.NewHealthHandler(profileRepo, cacheProbeOrNil(cacheProbe))
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	profileHandler := handler.NewProfileHandler(profileSvc)
	api.POST("/profiles/import", profileHandler.Import)
	api.GET("/profiles/:id", profileHandler.Get)
	api.DELETE("/profiles/:id", profileHandler.Delete)
	api.PUT("/profiles/:id/settings", profileHandler.UpdateSettings)
	api.PUT("/profiles/:id/ponderations", profileHandler.UpdatePonderations)
	api.GET("/profiles/:id/averages", profileHandler.Averages)

	analysisHandler := handler.NewAnalysisHandler(profileRepo, analysisSvc, metricsSvc)
	api.GET("/profiles/:id/analysis", analysisHandler.Analyze)
	api.GET("/system/metrics", analysisHandler.SystemMetrics)

	if cfg.Reports.Enabled {
		store, err := storage.NewFilesystemStore(cfg.Reports.StorageDir)
		if err != nil {
			logr.Fatal("failed to init report storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc := service.NewExportService(
			profileRepo,
			analysisSvc,
			store,
			signer,
			export.NewCSVExporter(),
			export.NewPDFExporter(),
			cfg.APIPrefix,
			logr,
		)
		exportHandler := handler.NewExportHandler(exportSvc)
		api.POST("/profiles/:id/report", exportHandler.Generate)
		api.GET("/export/:token", exportHandler.Download)

		go runExportCleanup(ctx, exportSvc, cfg.Reports.CleanupInterval, cfg.Reports.SignedURLTTL)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func runExportCleanup(ctx context.Context, exportSvc *service.ExportService, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			exportSvc.Cleanup(ttl)
		}
	}
}

// cacheProbeOrNil avoids handing the readiness handler a typed nil.
func cacheProbeOrNil(probe *repository.CacheRepository) interface {
	Healthy(ctx context.Context) bool
} {
	if probe == nil {
		return nil
	}
	return probe
}
