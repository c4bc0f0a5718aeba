package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// DetectionResult is one labeled object found in an image.
type DetectionResult struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Valid reports whether r has a non-blank label and a confidence in [0, 1].
func (r DetectionResult) Valid() bool {
	if strings.TrimSpace(r.Label) == "" || math.IsNaN(r.Confidence) {
		return false
	}
	return r.Confidence >= 0 && r.Confidence <= 1
}

// Detections is the ordered list returned by a detector. Order is kept as
// the detector produced it.
type Detections []DetectionResult

// ErrEmptyDetections is returned when serializing or parsing an empty list.
var ErrEmptyDetections = errors.New("detections: empty result set")

// Serialize renders the canonical [{"label":...,"confidence":...}] form
// stored in UploadRecord.Description.
func (d Detections) Serialize() (string, error) {
	if len(d) == 0 {
		return "", ErrEmptyDetections
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to serialize detections: %w", err)
	}
	return string(b), nil
}

// ParseDetections is the inverse of Detections.Serialize.
func ParseDetections(s string) (Detections, error) {
	var d Detections
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, fmt.Errorf("failed to parse detections: %w", err)
	}
	if len(d) == 0 {
		return nil, ErrEmptyDetections
	}
	return d, nil
}
