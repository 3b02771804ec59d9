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

	_ "github.com/noah-isme/scahts-api/api/swagger"
	"github.com/noah-isme/scahts-api/internal/handler"
	"github.com/noah-isme/scahts-api/internal/middleware"
	"github.com/noah-isme/scahts-api/internal/repository"
	"github.com/noah-isme/scahts-api/internal/service"
	"github.com/noah-isme/scahts-api/pkg/cache"
	"github.com/noah-isme/scahts-api/pkg/config"
	"github.com/noah-isme/scahts-api/pkg/database"
	"github.com/noah-isme/scahts-api/pkg/logger"
	"github.com/noah-isme/scahts-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/scahts-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/scahts-api/pkg/middleware/requestid"
)

// @title SCAHTS API
// @version 1.0.0
// @description Leave request approval workflow with notifications
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, leave caching disabled", zap.Error(err))
		redisClient = nil
	}

	validate := service.NewValidator()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	academicRepo := repository.NewAcademicRepository(db)
	leaveRepo := repository.NewLeaveRequestRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	var pendingCache *service.PendingQueueCache
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
		if cfg.Leave.CacheEnabled {
			store := repository.NewCacheRepository(redisClient, cfg.AppName, logr)
			pendingCache = service.NewPendingQueueCache(store, metrics, cfg.Leave.CacheTTL, logr)
		}
	}

	mail := mailer.New(cfg.AppName, cfg.Mail, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, academicRepo, mail, validate, metrics, logr, service.NotificationConfig{
		EmailEnabled: cfg.Notifications.EmailEnabled,
		BaseURL:      cfg.BaseURL,
	})
	dispatcher := service.NewNotificationDispatcher(notificationSvc, metrics, logr, service.DispatcherConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		JobTimeout: cfg.Notifications.JobTimeout,
	})
	dispatcher.Start(context.Background())

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	leaveSvc := service.NewLeaveService(leaveRepo, academicRepo, auditRepo, validate, logr,
		service.WithLeaveNotifier(dispatcher),
		service.WithLeaveCache(pendingCache),
		service.WithLeaveMetrics(metrics),
	)
	exportSvc := service.NewExportService(leaveRepo, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(metrics, "/health", "/ready", "/metrics"))

	handler.RegisterRoutes(r, handler.Handlers{
		Auth:         handler.NewAuthHandler(authSvc),
		Leave:        handler.NewLeaveHandler(leaveSvc),
		Notification: handler.NewNotificationHandler(notificationSvc),
		Export:       handler.NewExportHandler(exportSvc),
		Metrics:      handler.NewMetricsHandler(metrics, db),
	}, handler.RouteDeps{
		Tokens:    authSvc,
		Audit:     auditRepo,
		Logger:    logr,
		APIPrefix: cfg.APIPrefix,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
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
		logr.Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logr.Warn("notification dispatcher did not drain", zap.Error(err))
	}
}
