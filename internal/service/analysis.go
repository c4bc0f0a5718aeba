package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/imagelens/internal/detection"
	"github.com/timmy/imagelens/internal/domain"
	"github.com/timmy/imagelens/internal/logger"
	"github.com/timmy/imagelens/internal/storage"
)

// Artifacts stores raw upload bytes.
type Artifacts interface {
	Save(ctx context.Context, data []byte, filename string) (string, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// UploadStore persists upload records. Create assigns record.ID.
type UploadStore interface {
	Create(ctx context.Context, record *domain.UploadRecord) error
	GetByID(ctx context.Context, id uint) (*domain.UploadRecord, error)
	UpdateDescription(ctx context.Context, id uint, description string) error
	List(ctx context.Context, limit, offset int) ([]domain.UploadRecord, error)
}

// Observer receives pipeline measurements. It may be nil.
type Observer interface {
	ObserveDetection(elapsed time.Duration, err error)
	ObserveOutcome(outcome string)
}

// AnalysisService runs one upload through intake, storage, validation,
// detection and the final record update.
type AnalysisService struct {
	artifacts     Artifacts
	uploads       UploadStore
	detector      detection.Detector
	validator     *Validator
	sink          logger.Sink
	observer      Observer
	detectTimeout time.Duration
}

// AnalysisConfig holds configuration for the analysis service.
type AnalysisConfig struct {
	Limits        ValidationLimits
	DetectTimeout time.Duration
	Observer      Observer
}

// UploadRequest is the deserialized upload. Image is the raw file content.
type UploadRequest struct {
	Image       []byte
	Filename    string
	Description *string
}

// NewAnalysisService creates a new analysis service. A nil sink logs to the
// default logger.
func NewAnalysisService(
	artifacts Artifacts,
	uploads UploadStore,
	detector detection.Detector,
	sink logger.Sink,
	cfg *AnalysisConfig,
) *AnalysisService {
	if cfg == nil {
		cfg = &AnalysisConfig{}
	}
	if sink == nil {
		sink = logger.GetDefault()
	}
	return &AnalysisService{
		artifacts:     artifacts,
		uploads:       uploads,
		detector:      detector,
		validator:     NewValidator(cfg.Limits),
		sink:          sink,
		observer:      cfg.Observer,
		detectTimeout: cfg.DetectTimeout,
	}
}

// Analyze runs the pipeline for one request. The record is created before
// validation, so rejected uploads still leave a record with no detections.
func (s *AnalysisService) Analyze(ctx context.Context, req *UploadRequest) *Result {
	if req == nil || len(req.Image) == 0 {
		fields := FieldErrors{}
		fields.Add("image", MsgNoFile, CodeRequired)
		return s.finish(ctx, RejectedFields(fields))
	}

	path, err := s.artifacts.Save(ctx, req.Image, req.Filename)
	if err != nil {
		return s.finish(ctx, Rejected(&PipelineError{Kind: KindPersistence, Message: MsgPersistence, Err: err}))
	}
	ctx = logger.WithField(ctx, logger.FieldStoragePath, path)

	record := &domain.UploadRecord{
		StoragePath:  path,
		OriginalName: req.Filename,
		ContentType:  storage.DetectContentType(req.Image),
		FileSize:     int64(len(req.Image)),
		Description:  req.Description,
	}
	if err := s.uploads.Create(ctx, record); err != nil {
		// No record will ever point at the artifact.
		if derr := s.artifacts.Delete(ctx, path); derr != nil {
			s.sink.Log(ctx, logger.LevelWarn, "Failed to remove orphaned artifact: "+derr.Error())
		}
		return s.finish(ctx, Rejected(&PipelineError{Kind: KindPersistence, Message: MsgPersistence, Err: err}))
	}
	ctx = logger.SetUploadID(ctx, record.ID)

	data, err := s.artifacts.Read(ctx, path)
	if err != nil {
		return s.finish(ctx, Rejected(&PipelineError{Kind: KindPersistence, Message: MsgPersistence, Err: err}))
	}

	if err := s.validator.Validate(data); err != nil {
		var perr *PipelineError
		if !errors.As(err, &perr) {
			perr = &PipelineError{Kind: KindFormat, Message: MsgInvalidFormat, Err: err}
		}
		return s.finish(ctx, Rejected(perr).withUpload(record.ID))
	}

	detections, err := s.detect(ctx, data)
	if err != nil {
		return s.finish(ctx, Failed(&PipelineError{Kind: KindAnalysis, Message: MsgAnalysisFailed, Err: err}).withUpload(record.ID))
	}

	text, err := detections.Serialize()
	if err != nil {
		return s.finish(ctx, Failed(&PipelineError{Kind: KindAnalysis, Message: MsgAnalysisFailed, Err: err}).withUpload(record.ID))
	}
	if err := s.uploads.UpdateDescription(ctx, record.ID, text); err != nil {
		return s.finish(ctx, Failed(&PipelineError{Kind: KindAnalysis, Message: MsgAnalysisFailed, Err: err}).withUpload(record.ID))
	}

	s.sink.Log(ctx, logger.LevelInfo, fmt.Sprintf("Image %d analyzed: %d objects detected", record.ID, len(detections)))
	return s.finish(ctx, Succeeded(record.ID, detections))
}

// GetUpload returns a stored upload record.
func (s *AnalysisService) GetUpload(ctx context.Context, id uint) (*domain.UploadRecord, error) {
	return s.uploads.GetByID(ctx, id)
}

// Page sizes accepted by ListUploads.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListUploads returns stored upload records, newest first. A limit outside
// 1..MaxPageSize falls back to DefaultPageSize or MaxPageSize; a negative
// offset starts from the newest record.
func (s *AnalysisService) ListUploads(ctx context.Context, limit, offset int) ([]domain.UploadRecord, error) {
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.uploads.List(ctx, limit, offset)
}

func (s *AnalysisService) detect(ctx context.Context, data []byte) (domain.Detections, error) {
	if s.detectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.detectTimeout)
		defer cancel()
	}

	start := time.Now()
	detections, err := s.detector.Detect(ctx, data)
	if err == nil && len(detections) == 0 {
		err = domain.ErrEmptyDetections
	}
	if s.observer != nil {
		s.observer.ObserveDetection(time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	return detections, nil
}

// finish logs failures and reports the outcome.
func (s *AnalysisService) finish(ctx context.Context, res *Result) *Result {
	switch {
	case res.Err != nil && res.Err.Err != nil:
		s.sink.Log(ctx, logger.LevelError, res.Err.Message+": "+res.Err.Err.Error())
	case res.Err != nil:
		s.sink.Log(ctx, logger.LevelError, res.Err.Message)
	case res.FieldErrors != nil:
		s.sink.Log(ctx, logger.LevelError, MsgInvalidImage)
	}
	if s.observer != nil {
		s.observer.ObserveOutcome(res.Outcome())
	}
	return res
}
