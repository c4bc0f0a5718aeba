package service

import (
	"fmt"
	"strconv"

	"github.com/timmy/imagelens/internal/imageformat"
)

// ValidationLimits bounds what may be sent for analysis. Zero fields fall
// back to DefaultLimits.
type ValidationLimits struct {
	MaxFileSize int64
	MinWidth    int
	MinHeight   int
}

// DefaultLimits returns 20 MiB and 640x480.
func DefaultLimits() ValidationLimits {
	return ValidationLimits{
		MaxFileSize: 20 * 1024 * 1024,
		MinWidth:    640,
		MinHeight:   480,
	}
}

// Validator runs the format, size and dimension checks on stored image bytes.
type Validator struct {
	limits   ValidationLimits
	tooLarge *PipelineError
	tooSmall *PipelineError
}

// NewValidator creates a Validator for the given limits.
func NewValidator(limits ValidationLimits) *Validator {
	def := DefaultLimits()
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = def.MaxFileSize
	}
	if limits.MinWidth <= 0 {
		limits.MinWidth = def.MinWidth
	}
	if limits.MinHeight <= 0 {
		limits.MinHeight = def.MinHeight
	}

	return &Validator{
		limits: limits,
		tooLarge: &PipelineError{
			Kind:    KindSize,
			Message: "Image size exceeds " + megabytes(limits.MaxFileSize) + "MB",
		},
		tooSmall: &PipelineError{
			Kind:    KindDimension,
			Message: fmt.Sprintf("Image dimensions must be %dx%d min", limits.MinWidth, limits.MinHeight),
		},
	}
}

// Limits returns the effective limits.
func (v *Validator) Limits() ValidationLimits {
	return v.limits
}

// Validate runs CheckFormat, CheckSize and CheckDimensions in that order and
// returns the first failure. Later checks do not run after a failure.
func (v *Validator) Validate(data []byte) error {
	checks := []func([]byte) error{
		v.CheckFormat,
		v.CheckSize,
		v.CheckDimensions,
	}
	for _, check := range checks {
		if err := check(data); err != nil {
			return err
		}
	}
	return nil
}

// CheckFormat fully decodes data. Undecodable data and a decoded format
// outside the accepted set are the same failure.
func (v *Validator) CheckFormat(data []byte) error {
	_, format, err := imageformat.Decode(data)
	if err != nil {
		return &PipelineError{Kind: KindFormat, Message: MsgInvalidFormat, Err: err}
	}
	if !imageformat.IsAccepted(format) {
		return &PipelineError{Kind: KindFormat, Message: MsgInvalidFormat, Err: fmt.Errorf("format %q not accepted", format)}
	}
	return nil
}

// CheckSize fails when data is larger than MaxFileSize; the bound is inclusive.
func (v *Validator) CheckSize(data []byte) error {
	if int64(len(data)) > v.limits.MaxFileSize {
		return v.tooLarge
	}
	return nil
}

// CheckDimensions fails when the image is narrower than MinWidth or shorter
// than MinHeight. Data whose header cannot be read fails here too.
func (v *Validator) CheckDimensions(data []byte) error {
	cfg, _, err := imageformat.DecodeConfig(data)
	if err != nil {
		return &PipelineError{Kind: KindDimension, Message: v.tooSmall.Message, Err: err}
	}
	if cfg.Width < v.limits.MinWidth || cfg.Height < v.limits.MinHeight {
		return v.tooSmall
	}
	return nil
}

// megabytes renders n bytes in MiB without rounding, so 1.5 MiB reads "1.5".
func megabytes(n int64) string {
	return strconv.FormatFloat(float64(n)/(1<<20), 'f', -1, 64)
}
