package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/optimark/optimark-api/internal/models"
)

// ScanFilter narrows scan queries.
type ScanFilter struct {
	ExamID *uint
	Status *string
}

// ScanRepository defines data operations for uploaded answer sheets.
type ScanRepository interface {
	List(ctx context.Context, filter ScanFilter) ([]models.Scan, error)
	GetByID(ctx context.Context, id uint) (models.Scan, error)
	Create(ctx context.Context, scan *models.Scan) error
	Update(ctx context.Context, scan *models.Scan) error
	Delete(ctx context.Context, id uint) error
}

type scanRepository struct {
	db *gorm.DB
}

// NewScanRepository instantiates the repository.
func NewScanRepository(db *gorm.DB) ScanRepository {
	return &scanRepository{db: db}
}

func (r *scanRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Scan{}).
		Preload("Exam").
		Preload("Student")
}

func (r *scanRepository) List(ctx context.Context, filter ScanFilter) ([]models.Scan, error) {
	query := r.baseQuery(ctx)

	if filter.ExamID != nil {
		query = query.Where("exam_id = ?", *filter.ExamID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var scans []models.Scan
	if err := query.Order("created_at DESC").Find(&scans).Error; err != nil {
		return nil, err
	}
	return scans, nil
}

func (r *scanRepository) GetByID(ctx context.Context, id uint) (models.Scan, error) {
	var scan models.Scan
	if err := r.baseQuery(ctx).First(&scan, id).Error; err != nil {
		return models.Scan{}, err
	}
	return scan, nil
}

func (r *scanRepository) Create(ctx context.Context, scan *models.Scan) error {
	return r.db.WithContext(ctx).Create(scan).Error
}

func (r *scanRepository) Update(ctx context.Context, scan *models.Scan) error {
	return r.db.WithContext(ctx).Save(scan).Error
}

func (r *scanRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Scan{}, id).Error
}
