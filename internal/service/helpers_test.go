package service

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/optimark/optimark-api/internal/models"
	"github.com/optimark/optimark-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Batch{},
		&models.Student{},
		&models.Exam{},
		&models.AnswerKeySet{},
		&models.Score{},
		&models.Scan{},
	))

	return db
}

type fixtures struct {
	db       *gorm.DB
	batch    models.Batch
	students []models.Student
	exam     models.Exam
	keySet   models.AnswerKeySet
}

// seedExamFixtures creates a batch with three students and a four item exam
// carrying key set A = [A B C D].
func seedExamFixtures(t *testing.T, db *gorm.DB) fixtures {
	t.Helper()

	batch := models.Batch{Name: "Grade 12", Code: "G12"}
	require.NoError(t, db.Create(&batch).Error)

	students := []models.Student{
		{BatchID: batch.ID, StudentNumber: "1001", FullName: "Aulia Rahma"},
		{BatchID: batch.ID, StudentNumber: "1002", FullName: "Budi Santoso"},
		{BatchID: batch.ID, StudentNumber: "1003", FullName: "Citra Lestari"},
	}
	for i := range students {
		require.NoError(t, db.Create(&students[i]).Error)
	}

	exam := models.Exam{BatchID: batch.ID, Title: "Midterm", NumItems: 4}
	require.NoError(t, db.Create(&exam).Error)

	keySet := models.AnswerKeySet{
		ExamID:    exam.ID,
		SetCode:   "A",
		AnswerKey: datatypes.NewJSONSlice([]string{"A", "B", "C", "D"}),
	}
	require.NoError(t, db.Create(&keySet).Error)

	return fixtures{db: db, batch: batch, students: students, exam: exam, keySet: keySet}
}

func newTestScoreService(db *gorm.DB) ScoreService {
	return NewScoreService(
		repository.NewScoreRepository(db),
		repository.NewExamRepository(db),
		repository.NewStudentRepository(db),
		testValidator(),
		testLogger(),
	)
}

func countScores(t *testing.T, db *gorm.DB, examID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.Score{}).Where("exam_id = ?", examID).Count(&count).Error)
	return count
}

var testCtx = context.Background()
