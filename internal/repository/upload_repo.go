package repository

import (
	"context"
	"fmt"

	"github.com/timmy/imagelens/internal/domain"
	"gorm.io/gorm"
)

// UploadRepository persists upload records.
type UploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository creates a new UploadRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *UploadRepository: repository instance bound to db.
func NewUploadRepository(db *gorm.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create inserts a new record; GORM fills in record.ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - record: record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *UploadRepository) Create(ctx context.Context, record *domain.UploadRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByID retrieves a record by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: record ID.
// Returns:
//   - *domain.UploadRecord: record if found.
//   - error: gorm.ErrRecordNotFound when missing.
func (r *UploadRepository) GetByID(ctx context.Context, id uint) (*domain.UploadRecord, error) {
	var record domain.UploadRecord
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateDescription loads the record, sets its description and saves it in
// one transaction, so readers see either the old row or the new one.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: record ID.
//   - description: serialized detections.
// Returns:
//   - error: non-nil if the record is missing or the save fails.
func (r *UploadRepository) UpdateDescription(ctx context.Context, id uint, description string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record domain.UploadRecord
		if err := tx.First(&record, id).Error; err != nil {
			return fmt.Errorf("failed to load upload %d: %w", id, err)
		}
		record.Description = &description
		if err := tx.Save(&record).Error; err != nil {
			return fmt.Errorf("failed to save upload %d: %w", id, err)
		}
		return nil
	})
}

// List returns records newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.UploadRecord: matching records.
//   - error: non-nil if the query fails.
func (r *UploadRepository) List(ctx context.Context, limit, offset int) ([]domain.UploadRecord, error) {
	var records []domain.UploadRecord
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
