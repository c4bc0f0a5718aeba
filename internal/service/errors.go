package service

import "fmt"

// ErrorKind classifies why the pipeline did not succeed.
type ErrorKind string

const (
	KindStructural  ErrorKind = "structural"
	KindFormat      ErrorKind = "format"
	KindSize        ErrorKind = "size"
	KindDimension   ErrorKind = "dimension"
	KindPersistence ErrorKind = "persistence"
	KindAnalysis    ErrorKind = "analysis"
)

// Client-facing messages.
const (
	MsgInvalidImage   = "Invalid image"
	MsgInvalidFormat  = "Invalid image format"
	MsgPersistence    = "Failed to store image"
	MsgAnalysisFailed = "Image analysis failed"
	MsgNoFile         = "No file was submitted."
	MsgNotAnImage     = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
)

// Structural field error codes.
const (
	CodeRequired     = "required"
	CodeInvalidImage = "invalid_image"
	CodeInvalid      = "invalid"
)

// PipelineError is a failure with a kind from the error taxonomy and the
// message returned to the client.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches any PipelineError of the same kind, so callers can use
// errors.Is(err, ErrImageTooSmall) regardless of the configured limits.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidFormat = &PipelineError{Kind: KindFormat, Message: MsgInvalidFormat}
	ErrImageTooLarge = &PipelineError{Kind: KindSize, Message: "Image size exceeds 20MB"}
	ErrImageTooSmall = &PipelineError{Kind: KindDimension, Message: "Image dimensions must be 640x480 min"}
	ErrPersistence   = &PipelineError{Kind: KindPersistence, Message: MsgPersistence}
	ErrAnalysis      = &PipelineError{Kind: KindAnalysis, Message: MsgAnalysisFailed}
)

// FieldError is one structural problem with a request field.
type FieldError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// FieldErrors maps a request field name to its problems.
type FieldErrors map[string][]FieldError

// Add appends a problem for field.
func (f FieldErrors) Add(field, message, code string) {
	f[field] = append(f[field], FieldError{Message: message, Code: code})
}
