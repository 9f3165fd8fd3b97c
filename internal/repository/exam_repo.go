package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/optimark/optimark-api/internal/models"
)

// ExamFilter narrows exam queries.
type ExamFilter struct {
	BatchID *uint
}

// ExamRepository defines data operations for exams and their answer key sets.
type ExamRepository interface {
	List(ctx context.Context, filter ExamFilter) ([]models.Exam, error)
	GetByID(ctx context.Context, id uint) (models.Exam, error)
	Create(ctx context.Context, exam *models.Exam) error
	Update(ctx context.Context, exam *models.Exam) error
	Delete(ctx context.Context, id uint) error

	ListSets(ctx context.Context, examID uint) ([]models.AnswerKeySet, error)
	GetSet(ctx context.Context, examID uint, setCode string) (models.AnswerKeySet, error)
	CreateSet(ctx context.Context, set *models.AnswerKeySet) error
	UpsertSet(ctx context.Context, set *models.AnswerKeySet) error
	DeleteSet(ctx context.Context, examID uint, setCode string) error
}

type examRepository struct {
	db *gorm.DB
}

// NewExamRepository instantiates the repository.
func NewExamRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

func (r *examRepository) List(ctx context.Context, filter ExamFilter) ([]models.Exam, error) {
	query := r.db.WithContext(ctx).Model(&models.Exam{})
	if filter.BatchID != nil {
		query = query.Where("batch_id = ?", *filter.BatchID)
	}

	var exams []models.Exam
	if err := query.Order("created_at DESC").Find(&exams).Error; err != nil {
		return nil, err
	}
	return exams, nil
}

func (r *examRepository) GetByID(ctx context.Context, id uint) (models.Exam, error) {
	var exam models.Exam
	if err := r.db.WithContext(ctx).First(&exam, id).Error; err != nil {
		return models.Exam{}, err
	}
	return exam, nil
}

func (r *examRepository) Create(ctx context.Context, exam *models.Exam) error {
	return r.db.WithContext(ctx).Create(exam).Error
}

func (r *examRepository) Update(ctx context.Context, exam *models.Exam) error {
	return r.db.WithContext(ctx).Save(exam).Error
}

func (r *examRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Exam{}, id).Error
}

func (r *examRepository) ListSets(ctx context.Context, examID uint) ([]models.AnswerKeySet, error) {
	var sets []models.AnswerKeySet
	if err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("set_code ASC").
		Find(&sets).Error; err != nil {
		return nil, err
	}
	return sets, nil
}

func (r *examRepository) GetSet(ctx context.Context, examID uint, setCode string) (models.AnswerKeySet, error) {
	var set models.AnswerKeySet
	if err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Where("set_code = ?", setCode).
		First(&set).Error; err != nil {
		return models.AnswerKeySet{}, err
	}
	return set, nil
}

func (r *examRepository) CreateSet(ctx context.Context, set *models.AnswerKeySet) error {
	return r.db.WithContext(ctx).Create(set).Error
}

// UpsertSet replaces the answer key for an existing (exam, set_code) pair or
// inserts a new one.
func (r *examRepository) UpsertSet(ctx context.Context, set *models.AnswerKeySet) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "exam_id"}, {Name: "set_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"answer_key", "updated_at"}),
	}).Create(set).Error
}

func (r *examRepository) DeleteSet(ctx context.Context, examID uint, setCode string) error {
	return r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Where("set_code = ?", setCode).
		Delete(&models.AnswerKeySet{}).Error
}
