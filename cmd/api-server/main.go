package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classboard/conduct-api/internal/handler"
	"github.com/classboard/conduct-api/internal/middleware"
	"github.com/classboard/conduct-api/internal/realtime"
	"github.com/classboard/conduct-api/internal/repository"
	"github.com/classboard/conduct-api/internal/service"
	"github.com/classboard/conduct-api/pkg/cache"
	"github.com/classboard/conduct-api/pkg/config"
	"github.com/classboard/conduct-api/pkg/database"
	"github.com/classboard/conduct-api/pkg/logger"
	corsmiddleware "github.com/classboard/conduct-api/pkg/middleware/cors"
	reqidmiddleware "github.com/classboard/conduct-api/pkg/middleware/requestid"
	"github.com/classboard/conduct-api/pkg/observability"
	"github.com/classboard/conduct-api/pkg/response"
)

const version = "1.0.0"

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

	flushSentry, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Env, version)
	if err != nil {
		logr.Sugar().Warnw("sentry init failed", "error", err)
	}
	defer flushSentry()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to open database", "error", err)
	}
	defer db.Close()

	reportRepo := repository.NewReportRepository(db)
	readiness := &middleware.Readiness{}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The server accepts traffic immediately; queries answer 503 until the
	// store is reachable and the schema exists.
	go func() {
		for {
			if err := db.PingContext(ctx); err != nil {
				logr.Sugar().Warnw("database unreachable, retrying", "error", err)
			} else if err := reportRepo.EnsureSchema(ctx); err != nil {
				logr.Sugar().Warnw("schema bootstrap failed, retrying", "error", err)
			} else {
				readiness.MarkReady()
				logr.Info("database ready")
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()

	var cacheRepo *repository.CacheRepository
	if cfg.QueryCache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, query cache disabled", "error", err)
			cfg.QueryCache.Enabled = false
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close()
		}
	}

	metricsSvc := service.NewMetricsService()

	hub := realtime.NewHub(cfg.Realtime, logr, metricsSvc)
	go hub.Run(ctx)

	classSvc := service.NewClassService(cfg.Classes, logr)
	authSvc := service.NewAuthService(cfg.Auth, cfg.JWT, logr)

	reportParams := service.ReportServiceParams{
		Repo:     reportRepo,
		Classes:  classSvc,
		Hub:      hub,
		CacheCfg: cfg.QueryCache,
		Stats:    cfg.Stats,
		Logger:   logr,
	}
	if cacheRepo != nil {
		reportParams.Cache = cacheRepo
	}
	reportSvc := service.NewReportService(reportParams)

	reportHandler := handler.NewReportHandler(reportSvc, logr)
	classHandler := handler.NewClassHandler(classSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	realtimeHandler := handler.NewRealtimeHandler(hub, cfg.CORS.AllowedOrigins, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"database":    readiness.Ready(),
			"connections": hub.ClientCount(),
		})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	r.GET("/ws", realtimeHandler.Serve)

	api := r.Group("/api")
	api.POST("/login", authHandler.Login)
	api.GET("/classes", classHandler.List)

	store := api.Group("", readiness.RequireStore())
	store.POST("/inputdata", middleware.JWT(authSvc, cfg.Auth.Enabled), reportHandler.Submit)
	store.GET("/reports/date/:date", reportHandler.ByDate)
	store.GET("/reports/date/:date/class/:class", reportHandler.ByDateAndClass)
	store.GET("/reports/month/:yearMonth", reportHandler.ByMonth)
	store.GET("/reports/month/:yearMonth/export", reportHandler.ExportMonth)
	store.GET("/reports/class/:class/range/:start/:end", reportHandler.ByClassAndRange)
	store.GET("/reports/today/stats", reportHandler.TodayStats)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, response.Envelope{Success: false, Message: "接口不存在"})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown", "error", err)
	}
}
