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

	_ "github.com/orbitcal/orbitcal-api/api/swagger"
	"github.com/orbitcal/orbitcal-api/internal/handler"
	"github.com/orbitcal/orbitcal-api/internal/middleware"
	"github.com/orbitcal/orbitcal-api/internal/migrations"
	"github.com/orbitcal/orbitcal-api/internal/repository"
	"github.com/orbitcal/orbitcal-api/internal/scheduler"
	"github.com/orbitcal/orbitcal-api/internal/service"
	"github.com/orbitcal/orbitcal-api/internal/timezone"
	"github.com/orbitcal/orbitcal-api/pkg/cache"
	"github.com/orbitcal/orbitcal-api/pkg/config"
	"github.com/orbitcal/orbitcal-api/pkg/database"
	"github.com/orbitcal/orbitcal-api/pkg/logger"
	corsmiddleware "github.com/orbitcal/orbitcal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/orbitcal/orbitcal-api/pkg/middleware/requestid"
)

// @title OrbitCal API
// @version 1.0.0
// @description Recurring-event scheduling and occurrence materialization service
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if err := migrations.Run(db.DB, cfg.Database.AutoMigrate, logr); err != nil {
		logr.Sugar().Fatalw("failed to run migrations", "error", err)
	}

	metrics := service.NewMetricsService()

	// Redis backs both the range-query cache and the cross-instance event
	// lock. Without it the lock degrades to in-process mutual exclusion.
	var (
		cacheRepo service.CacheRepository
		locker    service.EventLocker
	)
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		locker = repository.NewRedisEventLock(redisClient, cfg.Engine.LockTTL, logr)
	} else {
		locker = service.NewMemoryEventLock()
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Query.CacheTTL, logr, cfg.Query.CacheEnabled && cfg.Redis.Enabled)

	resolver := timezone.New(timezone.GapPolicy(cfg.Engine.GapPolicy), timezone.OverlapPolicy(cfg.Engine.OverlapPolicy))

	eventRepo := repository.NewEventRepository(db)
	slotRepo := repository.NewSlotRepository(db)

	store := service.NewSlotStore(eventRepo, slotRepo, resolver, locker, cacheSvc, metrics, logr)
	updates := service.NewUpdateScopeHandler(eventRepo, slotRepo, store, resolver, locker, cacheSvc, metrics, logr)
	events := service.NewEventService(eventRepo, slotRepo, store, nil, cfg.Engine.DefaultWindowDays, logr)
	rangeQuery := service.NewRangeQueryService(eventRepo, slotRepo, cacheSvc, metrics, cfg.Query.MaxRangeDays, logr)
	exporter := service.NewExportService(eventRepo, slotRepo, logr)

	horizon := service.NewHorizonService(eventRepo, store, cfg.Horizon.Window, cfg.Engine.MaterializeWorkers, logr)
	horizon.Start(ctx)
	defer horizon.Stop()

	if cfg.Horizon.Enabled {
		roller, err := scheduler.NewHorizonRoller(horizon, cfg.Horizon.CronSpec, logr)
		if err != nil {
			logr.Sugar().Fatalw("failed to schedule horizon roll", "error", err)
		}
		roller.Start()
		defer roller.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	eventHandler := handler.NewEventHandler(events, updates, store)
	occurrenceHandler := handler.NewOccurrenceHandler(rangeQuery, store, exporter)

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/events", eventHandler.Create)
		api.GET("/events/:id", eventHandler.Get)
		api.PATCH("/events/:id", eventHandler.Update)
		api.DELETE("/events/:id", eventHandler.Delete)
		api.POST("/events/:id/materialize", eventHandler.Materialize)

		api.GET("/events/:id/occurrences/:date", occurrenceHandler.Get)
		api.PATCH("/events/:id/occurrences/:date", occurrenceHandler.Override)
		api.DELETE("/events/:id/occurrences/:date", occurrenceHandler.Remove)
		api.POST("/events/:id/occurrences/:date/cancel", occurrenceHandler.Cancel)

		api.GET("/occurrences", occurrenceHandler.List)
		api.GET("/occurrences/export", occurrenceHandler.Export)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
