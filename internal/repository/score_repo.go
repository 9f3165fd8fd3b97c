package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/optimark/optimark-api/internal/models"
)

// ScoreRepository defines data operations for scores. Upsert is the only
// write path used for new grading results; the (exam_id, student_id)
// conflict target keeps one row per student per exam.
type ScoreRepository interface {
	ListByExam(ctx context.Context, examID uint) ([]models.Score, error)
	GetByExamAndStudent(ctx context.Context, examID, studentID uint) (models.Score, error)
	Upsert(ctx context.Context, score *models.Score) error
	UpdateResult(ctx context.Context, score *models.Score) error
	Delete(ctx context.Context, id uint) error
}

type scoreRepository struct {
	db *gorm.DB
}

// NewScoreRepository instantiates the repository.
func NewScoreRepository(db *gorm.DB) ScoreRepository {
	return &scoreRepository{db: db}
}

func (r *scoreRepository) ListByExam(ctx context.Context, examID uint) ([]models.Score, error) {
	var scores []models.Score
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Where("exam_id = ?", examID).
		Order("id ASC").
		Find(&scores).Error; err != nil {
		return nil, err
	}
	return scores, nil
}

func (r *scoreRepository) GetByExamAndStudent(ctx context.Context, examID, studentID uint) (models.Score, error) {
	var score models.Score
	if err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Where("student_id = ?", studentID).
		First(&score).Error; err != nil {
		return models.Score{}, err
	}
	return score, nil
}

// Upsert atomically inserts the score or replaces the graded fields of the
// existing row for the same (exam, student). The single statement makes the
// raw_score/percent/breakdown triple visible together.
func (r *scoreRepository) Upsert(ctx context.Context, score *models.Score) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "exam_id"}, {Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"set_code", "raw_score", "percent", "breakdown", "updated_at"}),
	}).Create(score).Error
}

// UpdateResult overwrites the graded fields in place, preserving identity
// and set code. Used by recompute after a key correction.
func (r *scoreRepository) UpdateResult(ctx context.Context, score *models.Score) error {
	return r.db.WithContext(ctx).Model(&models.Score{}).
		Where("id = ?", score.ID).
		Updates(map[string]interface{}{
			"raw_score": score.RawScore,
			"percent":   score.Percent,
			"breakdown": score.Breakdown,
		}).Error
}

func (r *scoreRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Score{}, id).Error
}
