package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/revuehq/revue-api/api/swagger"
	"github.com/revuehq/revue-api/internal/handler"
	"github.com/revuehq/revue-api/internal/middleware"
	"github.com/revuehq/revue-api/internal/models"
	"github.com/revuehq/revue-api/internal/repository"
	"github.com/revuehq/revue-api/internal/service"
	"github.com/revuehq/revue-api/pkg/cache"
	"github.com/revuehq/revue-api/pkg/config"
	"github.com/revuehq/revue-api/pkg/database"
	"github.com/revuehq/revue-api/pkg/logger"
	corsmiddleware "github.com/revuehq/revue-api/pkg/middleware/cors"
	reqidmiddleware "github.com/revuehq/revue-api/pkg/middleware/requestid"
)

// @title Revue API
// @version 1.0.0
// @description Human review dashboard backend: review queue, decisions, audit trail and metrics
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	validate := validator.New()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.DefaultTTL, logr, true)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	userRepo := repository.NewUserRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "revue-api",
	})
	reviewSvc := service.NewReviewService(reviewRepo, auditRepo, cacheSvc, metricsSvc, validate, logr)
	auditSvc := service.NewAuditService(auditRepo, validate, logr)
	statsSvc := service.NewStatsService(reviewRepo, cacheSvc, metricsSvc, cfg.Cache.MetricsTTL, logr)
	streamSvc := service.NewStreamService(reviewRepo, cfg.Streaming.ChunkWords, cfg.Streaming.DelayMs, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)
	statsHandler := handler.NewStatsHandler(statsSvc)
	streamHandler := handler.NewStreamHandler(streamSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	protected := api.Group("", middleware.JWT(authSvc))
	protected.POST("/auth/logout", authHandler.Logout)
	protected.POST("/auth/change-password", authHandler.ChangePassword)
	protected.GET("/auth/me", authHandler.Me)

	protected.GET("/reviews", reviewHandler.List)
	protected.GET("/reviews/:id", reviewHandler.Get)
	protected.PATCH("/reviews/:id/decision", reviewHandler.Decide)
	protected.POST("/reviews/bulk-decision", reviewHandler.DecideBulk)
	protected.GET("/reviews/:id/stream-plan", streamHandler.Plan)

	protected.POST("/audit", auditHandler.Create)

	admin := protected.Group("", middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/audit", auditHandler.List)
	admin.GET("/audit/export", auditHandler.Export)
	admin.GET("/metrics/reviews", statsHandler.Metrics)
	admin.GET("/metrics/system", statsHandler.System)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
