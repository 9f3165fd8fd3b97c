package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/optimark/optimark-api/internal/models"
)

// BatchRepository defines data operations for batches.
type BatchRepository interface {
	List(ctx context.Context) ([]models.Batch, error)
	GetByID(ctx context.Context, id uint) (models.Batch, error)
	GetByCode(ctx context.Context, code string) (models.Batch, error)
	Create(ctx context.Context, batch *models.Batch) error
	Update(ctx context.Context, batch *models.Batch) error
	Delete(ctx context.Context, id uint) error
}

type batchRepository struct {
	db *gorm.DB
}

// NewBatchRepository instantiates the repository.
func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) List(ctx context.Context) ([]models.Batch, error) {
	var batches []models.Batch
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *batchRepository) GetByID(ctx context.Context, id uint) (models.Batch, error) {
	var batch models.Batch
	if err := r.db.WithContext(ctx).First(&batch, id).Error; err != nil {
		return models.Batch{}, err
	}
	return batch, nil
}

func (r *batchRepository) GetByCode(ctx context.Context, code string) (models.Batch, error) {
	var batch models.Batch
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&batch).Error; err != nil {
		return models.Batch{}, err
	}
	return batch, nil
}

func (r *batchRepository) Create(ctx context.Context, batch *models.Batch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *batchRepository) Update(ctx context.Context, batch *models.Batch) error {
	return r.db.WithContext(ctx).Save(batch).Error
}

func (r *batchRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Batch{}, id).Error
}
