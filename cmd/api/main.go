package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/timmy/imagelens/internal/api"
	"github.com/timmy/imagelens/internal/api/handler"
	"github.com/timmy/imagelens/internal/api/middleware"
	"github.com/timmy/imagelens/internal/config"
	"github.com/timmy/imagelens/internal/detection"
	"github.com/timmy/imagelens/internal/logger"
	"github.com/timmy/imagelens/internal/metrics"
	"github.com/timmy/imagelens/internal/repository"
	"github.com/timmy/imagelens/internal/service"
	"github.com/timmy/imagelens/internal/storage"
)

type bucketEnsurer interface {
	EnsureBucket(ctx context.Context) error
}

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to get database handle")
	}
	defer sqlDB.Close()

	uploadRepo := repository.NewUploadRepository(db)

	ctx := context.Background()
	objectStorage, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}
	if b, ok := objectStorage.(bucketEnsurer); ok {
		if err := b.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
		}
	}
	artifacts := storage.NewArtifactStore(objectStorage, cfg.Storage.Prefix)

	detector, err := detection.New(&cfg.Detection)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize detector")
	}

	collector := metrics.New()
	analysisService := service.NewAnalysisService(
		artifacts,
		uploadRepo,
		detector,
		appLogger,
		&service.AnalysisConfig{
			Limits: service.ValidationLimits{
				MaxFileSize: cfg.Validation.MaxFileSize,
				MinWidth:    cfg.Validation.MinWidth,
				MinHeight:   cfg.Validation.MinHeight,
			},
			DetectTimeout: cfg.Detection.Timeout,
			Observer:      collector,
		},
	)

	routerCfg := &api.RouterConfig{
		Mode:          cfg.Server.Mode,
		MaxUploadSize: cfg.Server.MaxUploadSize,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
		Logger:  appLogger,
		Metrics: collector,
		HealthChecks: []handler.HealthCheck{
			{Name: "database", Check: sqlDB.PingContext},
			{Name: "storage", Check: artifacts.Ping},
		},
		URLs: artifacts.URL,
	}
	if strings.EqualFold(cfg.Storage.Type, string(storage.StorageTypeLocal)) {
		routerCfg.MediaDir = cfg.Storage.LocalDir
	}
	router := api.SetupRouter(analysisService, routerCfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":      cfg.Server.Port,
			"mode":      cfg.Server.Mode,
			"storage":   cfg.Storage.Type,
			"detection": cfg.Detection.Provider,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// In-flight analyses may be waiting on the detector
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Detection.Timeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
