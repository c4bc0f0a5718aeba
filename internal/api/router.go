package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/imagelens/internal/api/handler"
	"github.com/timmy/imagelens/internal/api/middleware"
	"github.com/timmy/imagelens/internal/logger"
	"github.com/timmy/imagelens/internal/metrics"
)

// RouterConfig holds everything SetupRouter needs besides the pipeline.
type RouterConfig struct {
	Mode          string
	MaxUploadSize int64
	CORS          middleware.CORSConfig
	Logger        *logger.Logger
	Metrics       *metrics.Collector
	HealthChecks  []handler.HealthCheck
	URLs          handler.URLResolver
	// MediaDir, when set, is served under /media for local storage.
	MediaDir string
}

// SetupRouter configures the Gin router with all routes.
func SetupRouter(analyzer handler.Analyzer, cfg *RouterConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	if cfg.MaxUploadSize > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadSize
	}

	var reqObserver middleware.RequestObserver
	var outcomeObserver handler.OutcomeObserver
	if cfg.Metrics != nil {
		reqObserver = cfg.Metrics
		outcomeObserver = cfg.Metrics
	}

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(cfg.Logger, reqObserver))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(cfg.HealthChecks...)
	analyzeHandler := handler.NewAnalyzeHandler(analyzer, outcomeObserver)
	uploadHandler := handler.NewUploadHandler(analyzer, cfg.URLs)

	r.GET("/health", healthHandler.Health)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	if cfg.MediaDir != "" {
		r.Static("/media", cfg.MediaDir)
	}

	r.POST("/analyze-image/", analyzeHandler.AnalyzeImage)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/uploads", uploadHandler.ListUploads)
		v1.GET("/uploads/:id", uploadHandler.GetUpload)
	}

	return r
}
