package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/imagelens/internal/api/middleware"
	"github.com/timmy/imagelens/internal/domain"
	"github.com/timmy/imagelens/internal/service"
	"gorm.io/gorm"
)

// URLResolver turns a storage key into a public URL.
type URLResolver func(key string) string

// UploadHandler serves stored upload records.
type UploadHandler struct {
	analyzer Analyzer
	urls     URLResolver
}

// NewUploadHandler creates a new upload handler. urls may be nil.
func NewUploadHandler(analyzer Analyzer, urls URLResolver) *UploadHandler {
	return &UploadHandler{analyzer: analyzer, urls: urls}
}

// UploadResponse is the JSON form of a stored upload.
type UploadResponse struct {
	ID          uint                `json:"id"`
	Image       string              `json:"image"`
	URL         string              `json:"url,omitempty"`
	Description *string             `json:"description"`
	Detections  []DetectionResponse `json:"detections,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// GetUpload handles GET /api/v1/uploads/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *UploadHandler) GetUpload(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload ID"})
		return
	}

	record, err := h.analyzer.GetUpload(c.Request.Context(), uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
		return
	}
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to load upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load upload"})
		return
	}

	c.JSON(http.StatusOK, h.toResponse(record))
}

// ListUploadsResponse is one page of stored uploads.
type ListUploadsResponse struct {
	Results []UploadResponse `json:"results"`
	Count   int              `json:"count"`
}

// ListUploads handles GET /api/v1/uploads.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *UploadHandler) ListUploads(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(service.DefaultPageSize)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
		return
	}

	records, err := h.analyzer.ListUploads(c.Request.Context(), limit, offset)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to list uploads")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list uploads"})
		return
	}

	resp := ListUploadsResponse{
		Results: make([]UploadResponse, 0, len(records)),
		Count:   len(records),
	}
	for i := range records {
		resp.Results = append(resp.Results, h.toResponse(&records[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UploadHandler) toResponse(record *domain.UploadRecord) UploadResponse {
	resp := UploadResponse{
		ID:          record.ID,
		Image:       record.StoragePath,
		Description: record.Description,
		CreatedAt:   record.CreatedAt,
	}
	if h.urls != nil {
		resp.URL = h.urls(record.StoragePath)
	}
	// A description written by the client rather than by analysis does not
	// parse as detections; it is still returned verbatim.
	if detections, err := record.Detections(); err == nil {
		for _, d := range detections {
			resp.Detections = append(resp.Detections, DetectionResponse{Name: d.Label, Confidence: d.Confidence})
		}
	}
	return resp
}
