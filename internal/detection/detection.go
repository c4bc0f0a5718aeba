// Package detection contains clients for remote object-detection services.
package detection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/imagelens/internal/config"
	"github.com/timmy/imagelens/internal/domain"
)

// Detector finds labeled objects in image bytes. An empty result means
// nothing was found.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) (domain.Detections, error)
}

const defaultTimeout = 30 * time.Second

// New builds the detector selected by cfg.Provider.
// Parameters:
//   - cfg: detection section of the application config.
// Returns:
//   - Detector: configured client.
//   - error: non-nil for an unknown provider.
func New(cfg *config.DetectionConfig) (Detector, error) {
	switch strings.ToLower(cfg.Provider) {
	case "vision", "":
		return NewVisionClient(&VisionConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			MaxResults: cfg.MaxResults,
			Timeout:    cfg.Timeout,
		}), nil
	case "http":
		return NewInferenceClient(&InferenceConfig{
			URL:     cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown detection provider %q", cfg.Provider)
	}
}
