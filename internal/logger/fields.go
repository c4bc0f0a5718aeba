package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the request context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldUploadID is the upload record ID
	FieldUploadID = "upload_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldStoragePath is the key of the stored artifact
	FieldStoragePath = "storage_path"
)

// Metric fields, used for aggregation and alerting.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
)
