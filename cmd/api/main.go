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

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/attendance-admin-api/api/swagger"
	"github.com/noah-isme/attendance-admin-api/internal/handler"
	"github.com/noah-isme/attendance-admin-api/internal/repository"
	"github.com/noah-isme/attendance-admin-api/internal/service"
	"github.com/noah-isme/attendance-admin-api/pkg/cache"
	"github.com/noah-isme/attendance-admin-api/pkg/config"
	"github.com/noah-isme/attendance-admin-api/pkg/database"
	"github.com/noah-isme/attendance-admin-api/pkg/logger"
)

// @title Attendance Admin API
// @version 1.0.0
// @description Administrative API for users, attendance sessions, analytics and exports
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Analytics.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	exportRepo := repository.NewExportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled && redisClient != nil)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, userRepo, cacheSvc, metrics, cfg.Analytics.CacheTTL, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, analyticsSvc, cacheSvc, validate, logr, cfg.Security.BcryptCost)
	sessionSvc := service.NewSessionService(sessionRepo, userRepo, db, cacheSvc, metrics, validate, logr)
	exportSvc := service.NewExportService(exportRepo, nil, logr)

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(cacheRepo.Ping)
	}

	router := newRouter(cfg, logr, metrics, authSvc, routeHandlers{
		auth:      handler.NewAuthHandler(authSvc),
		users:     handler.NewUserHandler(userSvc, analyticsSvc),
		sessions:  handler.NewSessionHandler(sessionSvc),
		exports:   handler.NewExportHandler(exportSvc),
		dashboard: handler.NewDashboardHandler(analyticsSvc),
		health:    handler.NewHealthHandler(metrics.Handler(), checks, logr),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
