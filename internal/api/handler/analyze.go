package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/timmy/imagelens/internal/domain"
	"github.com/timmy/imagelens/internal/logger"
	"github.com/timmy/imagelens/internal/service"
)

// Structural error codes returned in field-keyed error maps.
const (
	CodeRequired     = service.CodeRequired
	CodeInvalidImage = service.CodeInvalidImage
	CodeEmpty        = "empty"
)

const msgEmptyFile = "The submitted file is empty."

// Analyzer runs uploads through the analysis pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, req *service.UploadRequest) *service.Result
	GetUpload(ctx context.Context, id uint) (*domain.UploadRecord, error)
	ListUploads(ctx context.Context, limit, offset int) ([]domain.UploadRecord, error)
}

// OutcomeObserver counts pipeline outcomes decided by the handler itself.
type OutcomeObserver interface {
	ObserveOutcome(outcome string)
}

// AnalyzeHandler handles image uploads.
type AnalyzeHandler struct {
	analyzer Analyzer
	observer OutcomeObserver
}

// NewAnalyzeHandler creates a new analyze handler. observer may be nil.
// Parameters:
//   - analyzer: analysis pipeline.
//   - observer: optional outcome counter.
// Returns:
//   - *AnalyzeHandler: initialized handler.
func NewAnalyzeHandler(analyzer Analyzer, observer OutcomeObserver) *AnalyzeHandler {
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
	return &AnalyzeHandler{analyzer: analyzer, observer: observer}
}

// analyzeForm is the multipart body of POST /analyze-image/.
type analyzeForm struct {
	Image       *multipart.FileHeader `form:"image"`
	Description *string               `form:"description"`
}

// DetectionResponse is one element of a successful analysis response.
type DetectionResponse struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// AnalyzeImage handles POST /analyze-image/.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AnalyzeHandler) AnalyzeImage(c *gin.Context) {
	ctx := c.Request.Context()

	data, form, fieldErrs := h.readUpload(c)
	if fieldErrs != nil {
		logger.CtxError(ctx, "%s", service.MsgInvalidImage)
		if h.observer != nil {
			h.observer.ObserveOutcome(string(service.KindStructural))
		}
		c.JSON(http.StatusBadRequest, fieldErrs)
		return
	}

	res := h.analyzer.Analyze(ctx, &service.UploadRequest{
		Image:       data,
		Filename:    form.Image.Filename,
		Description: form.Description,
	})

	status, body := renderResult(res)
	c.JSON(status, body)
}

// readUpload binds the multipart form and checks that the image field holds
// a readable image header. Only structural problems are reported here.
func (h *AnalyzeHandler) readUpload(c *gin.Context) ([]byte, *analyzeForm, service.FieldErrors) {
	fieldErrs := service.FieldErrors{}

	var form analyzeForm
	if err := c.ShouldBindWith(&form, binding.FormMultipart); err != nil || form.Image == nil {
		fieldErrs.Add("image", service.MsgNoFile, CodeRequired)
		return nil, nil, fieldErrs
	}
	if form.Image.Size == 0 {
		fieldErrs.Add("image", msgEmptyFile, CodeEmpty)
		return nil, nil, fieldErrs
	}

	data, err := readFile(form.Image)
	if err != nil {
		fieldErrs.Add("image", service.MsgNotAnImage, CodeInvalidImage)
		return nil, nil, fieldErrs
	}
	if err := binding.Validator.ValidateStruct(&imageContent{Data: data}); err != nil {
		fieldErrs.Add("image", service.MsgNotAnImage, CodeInvalidImage)
		return nil, nil, fieldErrs
	}
	return data, &form, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// renderResult maps a pipeline result to an HTTP status and JSON body.
func renderResult(res *service.Result) (int, any) {
	switch {
	case res.Status == service.StatusSucceeded:
		out := make([]DetectionResponse, 0, len(res.Detections))
		for _, d := range res.Detections {
			out = append(out, DetectionResponse{Name: d.Label, Confidence: d.Confidence})
		}
		return http.StatusOK, out
	case res.FieldErrors != nil:
		return http.StatusBadRequest, res.FieldErrors
	case res.Kind() == service.KindAnalysis:
		return http.StatusInternalServerError, gin.H{"error": res.Err.Message}
	default:
		return http.StatusBadRequest, gin.H{"error": res.Err.Message}
	}
}
