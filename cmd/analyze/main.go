package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/timmy/imagelens/internal/config"
	"github.com/timmy/imagelens/internal/detection"
	"github.com/timmy/imagelens/internal/logger"
	"github.com/timmy/imagelens/internal/repository"
	"github.com/timmy/imagelens/internal/service"
	"github.com/timmy/imagelens/internal/storage"
)

// Runs one local image through the analysis pipeline and prints the outcome
// as JSON. The exit code is 0 on success, 1 for a rejected upload and 2 for
// a failed analysis.
func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "imagelens-analyze",
		Output:      os.Stderr,
	})
	logger.SetDefaultLogger(appLogger)

	file := flag.String("file", "", "Path of the image to analyze")
	description := flag.String("description", "", "Optional description stored with the upload")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to read image")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	objectStorage, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	detector, err := detection.New(&cfg.Detection)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize detector")
	}

	analysisService := service.NewAnalysisService(
		storage.NewArtifactStore(objectStorage, cfg.Storage.Prefix),
		repository.NewUploadRepository(db),
		detector,
		appLogger,
		&service.AnalysisConfig{
			Limits: service.ValidationLimits{
				MaxFileSize: cfg.Validation.MaxFileSize,
				MinWidth:    cfg.Validation.MinWidth,
				MinHeight:   cfg.Validation.MinHeight,
			},
			DetectTimeout: cfg.Detection.Timeout,
		},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	req := &service.UploadRequest{
		Image:    data,
		Filename: filepath.Base(*file),
	}
	if *description != "" {
		req.Description = description
	}

	res := analysisService.Analyze(ctx, req)

	out := map[string]any{
		"upload_id": res.UploadID,
		"outcome":   res.Outcome(),
	}
	switch {
	case res.Status == service.StatusSucceeded:
		out["detections"] = res.Detections
	case res.FieldErrors != nil:
		out["errors"] = res.FieldErrors
	default:
		out["error"] = res.Err.Message
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		appLogger.WithError(err).Error("Failed to write result")
	}

	logger.Sync()
	switch res.Status {
	case service.StatusRejected:
		os.Exit(1)
	case service.StatusFailed:
		os.Exit(2)
	}
}
