package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/timmy/imagelens/internal/domain"
	"github.com/timmy/imagelens/internal/logger"
)

type pipeline struct {
	svc       *AnalysisService
	artifacts *memArtifacts
	store     *memStore
	detector  *fakeDetector
	sink      *logger.Recorder
	observer  *countingObserver
}

func newPipeline(detections domain.Detections, detectErr error) *pipeline {
	p := &pipeline{
		artifacts: newMemArtifacts(),
		store:     newMemStore(),
		detector:  &fakeDetector{detections: detections, err: detectErr},
		sink:      &logger.Recorder{},
		observer:  &countingObserver{},
	}
	p.svc = NewAnalysisService(p.artifacts, p.store, p.detector, p.sink, &AnalysisConfig{
		Limits:        DefaultLimits(),
		DetectTimeout: 5 * time.Second,
		Observer:      p.observer,
	})
	return p
}

func TestAnalyze_Success(t *testing.T) {
	p := newPipeline(domain.Detections{{Label: "Food", Confidence: 0.91}}, nil)
	ctx := context.Background()

	res := p.svc.Analyze(ctx, &UploadRequest{
		Image:    encodeImage(t, 800, 600, imaging.JPEG),
		Filename: "lunch.jpg",
	})

	if res.Status != StatusSucceeded {
		t.Fatalf("expected success, got status %d err %v", res.Status, res.Err)
	}
	want := domain.Detections{{Label: "Food", Confidence: 0.91}}
	if !reflect.DeepEqual(res.Detections, want) {
		t.Errorf("detections = %+v, want %+v", res.Detections, want)
	}
	if !p.detector.deadline {
		t.Error("expected detector context to carry a deadline")
	}

	rec, err := p.store.GetByID(ctx, res.UploadID)
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	if rec.Description == nil || *rec.Description != `[{"label":"Food","confidence":0.91}]` {
		t.Errorf("unexpected description %v", rec.Description)
	}
	if rec.ContentType != "image/jpeg" {
		t.Errorf("content type = %q", rec.ContentType)
	}
	if got := p.sink.Messages(logger.LevelError); len(got) != 0 {
		t.Errorf("unexpected error logs %v", got)
	}
	if !reflect.DeepEqual(p.observer.outcomes, []string{"success"}) {
		t.Errorf("outcomes = %v", p.observer.outcomes)
	}
}

func TestAnalyze_RoundTripPreservesOrderAndDuplicates(t *testing.T) {
	detections := domain.Detections{
		{Label: "Dog", Confidence: 0.55},
		{Label: "Person", Confidence: 0.98},
		{Label: "Dog", Confidence: 0.72},
		{Label: "Bicycle", Confidence: 0.1},
	}
	p := newPipeline(detections, nil)
	ctx := context.Background()

	res := p.svc.Analyze(ctx, &UploadRequest{Image: encodeImage(t, 640, 480, imaging.PNG), Filename: "park.png"})
	if res.Status != StatusSucceeded {
		t.Fatalf("expected success, got %v", res.Err)
	}

	rec, err := p.store.GetByID(ctx, res.UploadID)
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	stored, err := rec.Detections()
	if err != nil {
		t.Fatalf("failed to parse description: %v", err)
	}
	if !reflect.DeepEqual(stored, detections) {
		t.Errorf("stored = %+v, want %+v", stored, detections)
	}
	if !reflect.DeepEqual(res.Detections, detections) {
		t.Errorf("returned = %+v, want %+v", res.Detections, detections)
	}
}

func TestAnalyze_IdenticalUploadsAreNotDeduplicated(t *testing.T) {
	p := newPipeline(domain.Detections{{Label: "Cat", Confidence: 0.8}}, nil)
	img := encodeImage(t, 640, 480, imaging.PNG)

	first := p.svc.Analyze(context.Background(), &UploadRequest{Image: img, Filename: "cat.png"})
	second := p.svc.Analyze(context.Background(), &UploadRequest{Image: img, Filename: "cat.png"})

	if first.Status != StatusSucceeded || second.Status != StatusSucceeded {
		t.Fatalf("expected both to succeed: %v, %v", first.Err, second.Err)
	}
	if first.UploadID == second.UploadID {
		t.Error("expected distinct records")
	}
	if len(p.artifacts.objects) != 2 {
		t.Errorf("expected 2 stored artifacts, got %d", len(p.artifacts.objects))
	}
	if p.detector.calls != 2 {
		t.Errorf("expected 2 detector calls, got %d", p.detector.calls)
	}
}

func TestAnalyze_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		image   []byte
		kind    ErrorKind
		message string
	}{
		{"text file", []byte("hello, world"), KindFormat, "Invalid image format"},
		{"small png", encodeImage(t, 300, 300, imaging.PNG), KindDimension, "Image dimensions must be 640x480 min"},
		{
			"oversized png",
			append(encodeImage(t, 640, 480, imaging.PNG), make([]byte, 20*1024*1024)...),
			KindSize,
			"Image size exceeds 20MB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(domain.Detections{{Label: "X", Confidence: 1}}, nil)
			ctx := context.Background()

			res := p.svc.Analyze(ctx, &UploadRequest{Image: tt.image, Filename: "upload.bin"})
			if res.Status != StatusRejected {
				t.Fatalf("expected rejection, got status %d", res.Status)
			}
			if res.Kind() != tt.kind {
				t.Errorf("kind = %s, want %s", res.Kind(), tt.kind)
			}
			if res.Err.Message != tt.message {
				t.Errorf("message = %q, want %q", res.Err.Message, tt.message)
			}
			if p.detector.calls != 0 {
				t.Error("detector must not run after a validation failure")
			}

			rec, err := p.store.GetByID(ctx, res.UploadID)
			if err != nil {
				t.Fatalf("record should exist after rejection: %v", err)
			}
			if rec.Analyzed() {
				t.Error("rejected upload must not have a description")
			}
			if got := p.sink.Messages(logger.LevelError); len(got) != 1 || !strings.HasPrefix(got[0], tt.message) {
				t.Errorf("error logs = %v", got)
			}
		})
	}
}

func TestAnalyze_MissingImage(t *testing.T) {
	p := newPipeline(nil, nil)

	res := p.svc.Analyze(context.Background(), &UploadRequest{})
	if res.Status != StatusRejected || res.Kind() != KindStructural {
		t.Fatalf("expected structural rejection, got %+v", res)
	}
	want := FieldErrors{"image": {{Message: MsgNoFile, Code: CodeRequired}}}
	if !reflect.DeepEqual(res.FieldErrors, want) {
		t.Errorf("field errors = %+v", res.FieldErrors)
	}
	if len(p.artifacts.objects) != 0 || len(p.store.records) != 0 {
		t.Error("nothing should be persisted for a structural rejection")
	}
}

func TestAnalyze_AnalysisFailures(t *testing.T) {
	tests := []struct {
		name       string
		detections domain.Detections
		err        error
	}{
		{"detector error", nil, errors.New("vision: 503 Service Unavailable")},
		{"empty result", domain.Detections{}, nil},
		{"nil result", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(tt.detections, tt.err)
			ctx := context.Background()

			res := p.svc.Analyze(ctx, &UploadRequest{Image: encodeImage(t, 640, 480, imaging.PNG)})
			if res.Status != StatusFailed || res.Kind() != KindAnalysis {
				t.Fatalf("expected analysis failure, got status %d kind %s", res.Status, res.Kind())
			}
			if res.Err.Message != "Image analysis failed" {
				t.Errorf("message = %q", res.Err.Message)
			}

			rec, err := p.store.GetByID(ctx, res.UploadID)
			if err != nil {
				t.Fatalf("record should exist: %v", err)
			}
			if rec.Analyzed() {
				t.Error("failed analysis must not write a description")
			}

			logs := p.sink.Messages(logger.LevelError)
			if len(logs) != 1 || !strings.HasPrefix(logs[0], "Image analysis failed") {
				t.Errorf("error logs = %v", logs)
			}
			if p.observer.detections != 1 {
				t.Errorf("expected one detection observation, got %d", p.observer.detections)
			}
		})
	}
}

func TestAnalyze_PersistenceFailures(t *testing.T) {
	img := encodeImage(t, 640, 480, imaging.PNG)

	tests := []struct {
		name   string
		setup  func(p *pipeline)
		status Status
		kind   ErrorKind
	}{
		{"artifact save fails", func(p *pipeline) { p.artifacts.saveErr = errors.New("disk full") }, StatusRejected, KindPersistence},
		{"record create fails", func(p *pipeline) { p.store.createErr = errors.New("database is locked") }, StatusRejected, KindPersistence},
		{"artifact read fails", func(p *pipeline) { p.artifacts.readErr = errors.New("object vanished") }, StatusRejected, KindPersistence},
		{"description update fails", func(p *pipeline) { p.store.updateErr = errors.New("connection reset") }, StatusFailed, KindAnalysis},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(domain.Detections{{Label: "Tree", Confidence: 0.6}}, nil)
			tt.setup(p)

			res := p.svc.Analyze(context.Background(), &UploadRequest{Image: img})
			if res.Status != tt.status || res.Kind() != tt.kind {
				t.Fatalf("got status %d kind %s, want %d %s", res.Status, res.Kind(), tt.status, tt.kind)
			}
			if res.Err.Err == nil {
				t.Error("expected the cause to be kept")
			}
			if p.store.updates != 0 {
				t.Error("description must not be written")
			}
			if len(p.sink.Messages(logger.LevelError)) != 1 {
				t.Errorf("expected one error log, got %v", p.sink.Records())
			}
		})
	}
}

func TestAnalyze_KeepsUserDescriptionOnRejection(t *testing.T) {
	p := newPipeline(nil, nil)
	note := "screenshot from phone"

	res := p.svc.Analyze(context.Background(), &UploadRequest{
		Image:       encodeImage(t, 320, 240, imaging.PNG),
		Description: &note,
	})
	if res.Kind() != KindDimension {
		t.Fatalf("expected dimension rejection, got %s", res.Kind())
	}

	rec, err := p.store.GetByID(context.Background(), res.UploadID)
	if err != nil {
		t.Fatalf("record should exist: %v", err)
	}
	if rec.Description == nil || *rec.Description != note {
		t.Errorf("description = %v, want %q", rec.Description, note)
	}
}

func TestPipelineError_Is(t *testing.T) {
	err := &PipelineError{Kind: KindDimension, Message: "Image dimensions must be 100x100 min"}
	if !errors.Is(err, ErrImageTooSmall) {
		t.Error("expected kind match")
	}
	if errors.Is(err, ErrImageTooLarge) {
		t.Error("unexpected match across kinds")
	}

	cause := errors.New("boom")
	wrapped := &PipelineError{Kind: KindAnalysis, Message: MsgAnalysisFailed, Err: cause}
	if !errors.Is(wrapped, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
	if wrapped.Error() != "Image analysis failed: boom" {
		t.Errorf("unexpected error text %q", wrapped.Error())
	}
}

func TestAnalyze_AcceptsIconAndWebP(t *testing.T) {
	tests := []struct {
		name  string
		image []byte
		ctype string
	}{
		{"ico wrapping png", wrapICO(encodeImage(t, 640, 480, imaging.PNG)), "image/x-icon"},
		{"lossless webp", webpSolid640x480, "image/webp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(domain.Detections{{Label: "Logo", Confidence: 0.7}}, nil)
			ctx := context.Background()

			res := p.svc.Analyze(ctx, &UploadRequest{Image: tt.image})
			if res.Status != StatusSucceeded {
				t.Fatalf("expected success, got status %d err %v", res.Status, res.Err)
			}
			rec, err := p.store.GetByID(ctx, res.UploadID)
			if err != nil {
				t.Fatalf("record not stored: %v", err)
			}
			if rec.ContentType != tt.ctype {
				t.Errorf("content type = %q, want %q", rec.ContentType, tt.ctype)
			}
			if p.detector.calls != 1 {
				t.Errorf("expected one detector call, got %d", p.detector.calls)
			}
		})
	}
}

func TestAnalyze_CreateFailureRemovesArtifact(t *testing.T) {
	p := newPipeline(domain.Detections{{Label: "Tree", Confidence: 0.6}}, nil)
	p.store.createErr = errors.New("database is locked")

	res := p.svc.Analyze(context.Background(), &UploadRequest{Image: encodeImage(t, 640, 480, imaging.PNG), Filename: "a.png"})
	if res.Kind() != KindPersistence {
		t.Fatalf("expected persistence failure, got %s", res.Kind())
	}
	if len(p.artifacts.deleted) != 1 {
		t.Fatalf("expected the orphaned artifact to be deleted, got %v", p.artifacts.deleted)
	}
	if len(p.artifacts.objects) != 0 {
		t.Errorf("expected no artifacts left, got %d", len(p.artifacts.objects))
	}
}

func TestAnalyze_CreateFailureCleanupErrorIsLogged(t *testing.T) {
	p := newPipeline(nil, nil)
	p.store.createErr = errors.New("database is locked")
	p.artifacts.deleteErr = errors.New("permission denied")

	res := p.svc.Analyze(context.Background(), &UploadRequest{Image: encodeImage(t, 640, 480, imaging.PNG)})
	if res.Status != StatusRejected || res.Kind() != KindPersistence {
		t.Fatalf("cleanup failure must not change the outcome, got status %d kind %s", res.Status, res.Kind())
	}
	warns := p.sink.Messages(logger.LevelWarn)
	if len(warns) != 1 || !strings.Contains(warns[0], "permission denied") {
		t.Errorf("warn logs = %v", warns)
	}
	if len(p.sink.Messages(logger.LevelError)) != 1 {
		t.Errorf("expected one error log, got %v", p.sink.Records())
	}
}

func TestAnalyze_LogsToInjectedLogger(t *testing.T) {
	var injected, global bytes.Buffer
	prev := logger.GetDefault()
	logger.SetDefaultLogger(logger.New(&logger.Config{Level: "info", Format: "json", Output: &global, ServiceName: "global"}))
	defer logger.SetDefaultLogger(prev)

	sink := logger.New(&logger.Config{Level: "info", Format: "json", Output: &injected, ServiceName: "injected"})
	svc := NewAnalysisService(newMemArtifacts(), newMemStore(), &fakeDetector{}, sink, &AnalysisConfig{})

	res := svc.Analyze(context.Background(), &UploadRequest{Image: []byte("hello, world")})
	if res.Kind() != KindFormat {
		t.Fatalf("expected format rejection, got %s", res.Kind())
	}
	if global.Len() != 0 {
		t.Errorf("default logger should stay silent, got %q", global.String())
	}

	var line map[string]interface{}
	if err := json.Unmarshal(injected.Bytes(), &line); err != nil {
		t.Fatalf("failed to parse log line %q: %v", injected.String(), err)
	}
	if msg, _ := line["message"].(string); !strings.HasPrefix(msg, "Invalid image format") {
		t.Errorf("message = %q", msg)
	}
	if line["service"] != "injected" {
		t.Errorf("service = %v, want injected", line["service"])
	}
	if line[logger.FieldUploadID] != "1" {
		t.Errorf("expected upload id from context, got %v", line[logger.FieldUploadID])
	}
}

func TestListUploads(t *testing.T) {
	p := newPipeline(domain.Detections{{Label: "Cat", Confidence: 0.8}}, nil)
	ctx := context.Background()
	img := encodeImage(t, 640, 480, imaging.PNG)
	for i := 0; i < 3; i++ {
		if res := p.svc.Analyze(ctx, &UploadRequest{Image: img}); res.Status != StatusSucceeded {
			t.Fatalf("analyze %d failed: %v", i, res.Err)
		}
	}

	records, err := p.svc.ListUploads(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListUploads: %v", err)
	}
	if len(records) != 2 || records[0].ID != 3 || records[1].ID != 2 {
		t.Errorf("unexpected first page %+v", records)
	}

	records, err = p.svc.ListUploads(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListUploads: %v", err)
	}
	if len(records) != 1 || records[0].ID != 1 {
		t.Errorf("unexpected second page %+v", records)
	}

	records, err = p.svc.ListUploads(ctx, 0, -5)
	if err != nil {
		t.Fatalf("ListUploads: %v", err)
	}
	if len(records) != 3 || records[0].ID != 3 {
		t.Errorf("expected default page from the newest record, got %+v", records)
	}
}
