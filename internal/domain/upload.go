package domain

import "time"

// UploadRecord represents one uploaded image and its analysis outcome.
// Description stays nil until a successful analysis stores the serialized
// detections; it is written once and never partially.
type UploadRecord struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	StoragePath  string    `gorm:"type:text;not null" json:"image"`
	OriginalName string    `gorm:"type:text" json:"original_name,omitempty"`
	ContentType  string    `gorm:"type:text" json:"content_type,omitempty"`
	FileSize     int64     `json:"file_size"`
	Description  *string   `gorm:"type:text" json:"description"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for UploadRecord.
func (UploadRecord) TableName() string {
	return "uploaded_images"
}

// Analyzed reports whether a detection result has been stored.
func (r *UploadRecord) Analyzed() bool {
	return r.Description != nil
}

// Detections parses the stored description. An unanalyzed record yields nil.
func (r *UploadRecord) Detections() (Detections, error) {
	if r.Description == nil {
		return nil, nil
	}
	return ParseDetections(*r.Description)
}
