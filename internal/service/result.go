package service

import "github.com/timmy/imagelens/internal/domain"

// Status is the terminal state of one pipeline run.
type Status int

const (
	StatusSucceeded Status = iota
	StatusRejected
	StatusFailed
)

// Result is the outcome of Analyze. Exactly one of Detections, Err and
// FieldErrors is meaningful, according to Status and Kind.
type Result struct {
	Status      Status
	UploadID    uint
	Detections  domain.Detections
	Err         *PipelineError
	FieldErrors FieldErrors
}

// Succeeded builds a successful result.
func Succeeded(uploadID uint, detections domain.Detections) *Result {
	return &Result{Status: StatusSucceeded, UploadID: uploadID, Detections: detections}
}

// Rejected builds a result for a client-side problem.
func Rejected(err *PipelineError) *Result {
	return &Result{Status: StatusRejected, Err: err}
}

// RejectedFields builds a structural rejection.
func RejectedFields(fields FieldErrors) *Result {
	return &Result{Status: StatusRejected, FieldErrors: fields}
}

// Failed builds a result for a server-side problem.
func Failed(err *PipelineError) *Result {
	return &Result{Status: StatusFailed, Err: err}
}

func (r *Result) withUpload(id uint) *Result {
	r.UploadID = id
	return r
}

// Kind returns the error kind, or "" on success.
func (r *Result) Kind() ErrorKind {
	switch {
	case r.Err != nil:
		return r.Err.Kind
	case r.FieldErrors != nil:
		return KindStructural
	default:
		return ""
	}
}

// Outcome is a short label for metrics: "success" or the error kind.
func (r *Result) Outcome() string {
	if r.Status == StatusSucceeded {
		return "success"
	}
	return string(r.Kind())
}
