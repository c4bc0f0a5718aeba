package detection

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/imagelens/internal/domain"
)

// VisionClient calls the Google Cloud Vision images:annotate endpoint with
// the OBJECT_LOCALIZATION feature.
type VisionClient struct {
	client     *resty.Client
	endpoint   string
	apiKey     string
	maxResults int
}

// VisionConfig holds configuration for VisionClient.
type VisionConfig struct {
	BaseURL    string
	APIKey     string
	MaxResults int
	Timeout    time.Duration
}

// NewVisionClient creates a new Vision API client.
func NewVisionClient(cfg *VisionConfig) *VisionClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://vision.googleapis.com/v1"
	}

	return &VisionClient{
		client:     client,
		endpoint:   strings.TrimSuffix(baseURL, "/") + "/images:annotate",
		apiKey:     cfg.APIKey,
		maxResults: cfg.MaxResults,
	}
}

type visionRequest struct {
	Requests []visionAnnotateRequest `json:"requests"`
}

type visionAnnotateRequest struct {
	Image    visionImage     `json:"image"`
	Features []visionFeature `json:"features"`
}

type visionImage struct {
	Content string `json:"content"`
}

type visionFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type visionStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type visionResponse struct {
	Responses []struct {
		LocalizedObjectAnnotations []struct {
			Mid   string  `json:"mid"`
			Name  string  `json:"name"`
			Score float64 `json:"score"`
		} `json:"localizedObjectAnnotations"`
		Error *visionStatus `json:"error,omitempty"`
	} `json:"responses"`
	Error *visionStatus `json:"error,omitempty"`
}

// Detect sends the image inline (base64) and returns the localized objects
// in the order the API lists them.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - imageData: raw image bytes.
// Returns:
//   - domain.Detections: detected objects, empty when none were found.
//   - error: non-nil if the API request fails.
func (c *VisionClient) Detect(ctx context.Context, imageData []byte) (domain.Detections, error) {
	req := visionRequest{
		Requests: []visionAnnotateRequest{{
			Image: visionImage{Content: base64.StdEncoding.EncodeToString(imageData)},
			Features: []visionFeature{{
				Type:       "OBJECT_LOCALIZATION",
				MaxResults: c.maxResults,
			}},
		}},
	}

	var resp visionResponse
	r := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp)
	if c.apiKey != "" {
		r.SetQueryParam("key", c.apiKey)
	}

	httpResp, err := r.Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call Vision API: %w", err)
	}

	if httpResp.IsError() {
		if resp.Error != nil {
			return nil, fmt.Errorf("Vision API returned error: HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return nil, fmt.Errorf("Vision API returned error: HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
	}

	if len(resp.Responses) == 0 {
		return domain.Detections{}, nil
	}
	first := resp.Responses[0]
	if first.Error != nil {
		return nil, fmt.Errorf("Vision API error: %s", first.Error.Message)
	}

	detections := make(domain.Detections, 0, len(first.LocalizedObjectAnnotations))
	for _, obj := range first.LocalizedObjectAnnotations {
		d := domain.DetectionResult{Label: obj.Name, Confidence: obj.Score}
		if !d.Valid() {
			continue
		}
		detections = append(detections, d)
	}
	return detections, nil
}
