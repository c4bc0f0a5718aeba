package detection

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/imagelens/internal/domain"
)

// InferenceClient posts the image as multipart field "file" to a
// self-hosted model server that answers {"detections":[{"class","confidence"}]}.
type InferenceClient struct {
	client *resty.Client
	url    string
}

// InferenceConfig holds configuration for InferenceClient.
type InferenceConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// NewInferenceClient creates a new inference service client.
func NewInferenceClient(cfg *InferenceConfig) *InferenceClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := resty.New()
	client.SetTimeout(timeout)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &InferenceClient{client: client, url: cfg.URL}
}

type inferenceResponse struct {
	Detections []struct {
		Class      string  `json:"class"`
		Confidence float64 `json:"confidence"`
	} `json:"detections"`
	Error string `json:"error,omitempty"`
}

// Detect uploads imageData and maps each returned box to a DetectionResult.
func (c *InferenceClient) Detect(ctx context.Context, imageData []byte) (domain.Detections, error) {
	var resp inferenceResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetFileReader("file", "image", bytes.NewReader(imageData)).
		SetResult(&resp).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("failed to call inference service: %w", err)
	}
	if httpResp.StatusCode() != 200 {
		return nil, fmt.Errorf("inference failed with status: %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("inference service error: %s", resp.Error)
	}

	detections := make(domain.Detections, 0, len(resp.Detections))
	for _, box := range resp.Detections {
		d := domain.DetectionResult{Label: box.Class, Confidence: box.Confidence}
		if !d.Valid() {
			continue
		}
		detections = append(detections, d)
	}
	return detections, nil
}
