package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/optimark/optimark-api/internal/models"
)

// StudentFilter narrows student queries.
type StudentFilter struct {
	BatchID *uint
	Search  string
}

// StudentRepository defines data operations for the roster.
type StudentRepository interface {
	List(ctx context.Context, filter StudentFilter) ([]models.Student, error)
	GetByID(ctx context.Context, id uint) (models.Student, error)
	GetByBatchAndNumber(ctx context.Context, batchID uint, studentNumber string) (models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	UpsertRoster(ctx context.Context, students []models.Student) (int64, error)
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id uint) error
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository instantiates the repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) List(ctx context.Context, filter StudentFilter) ([]models.Student, error) {
	query := r.db.WithContext(ctx).Model(&models.Student{})

	if filter.BatchID != nil {
		query = query.Where("batch_id = ?", *filter.BatchID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("student_number LIKE ? OR full_name LIKE ?", pattern, pattern)
	}

	var students []models.Student
	if err := query.Order("student_number ASC").Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *studentRepository) GetByBatchAndNumber(ctx context.Context, batchID uint, studentNumber string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Where("student_number = ?", studentNumber).
		First(&student).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

// UpsertRoster inserts students, refreshing name and email for rows that
// already exist under the same (batch, student_number).
func (r *studentRepository) UpsertRoster(ctx context.Context, students []models.Student) (int64, error) {
	if len(students) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "batch_id"}, {Name: "student_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "email", "updated_at"}),
	}).Create(&students)
	return result.RowsAffected, result.Error
}

func (r *studentRepository) Update(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Save(student).Error
}

func (r *studentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Student{}, id).Error
}
