package service

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/optimark/optimark-api/internal/dto"
	"github.com/optimark/optimark-api/internal/models"
)

func TestScoreServiceUpsertKeepsOneRowPerStudent(t *testing.T) {
	db := openTestDB(t)
	fx := seedExamFixtures(t, db)
	svc := newTestScoreService(db)

	first, err := svc.Upsert(testCtx, fx.exam.ID, fx.students[0].ID, "A", []string{"A", "B", "C", "D"})
	require.NoError(t, err)
	require.Equal(t, 4, first.RawScore)

	second, err := svc.Upsert(testCtx, fx.exam.ID, fx.students[0].ID, "A", []string{"A", "B", "C", "A"})
	require.NoError(t, err)
	require.Equal(t, 3, second.RawScore)
	require.InDelta(t, 75.0, second.Percent, 1e-9)

	require.EqualValues(t, 1, countScores(t, db, fx.exam.ID))

	var stored models.Score
	require.NoError(t, db.Where("exam_id = ? AND student_id = ?", fx.exam.ID, fx.students[0].ID).First(&stored).Error)
	require.Equal(t, 3, stored.RawScore)
	require.Equal(t, "A", stored.SetCode)
}

func TestScoreServiceUpsertRejectsUnknownKeySet(t *testing.T) {
	db := openTestDB(t)
	fx := seedExamFixtures(t, db)
	svc := newTestScoreService(db)

	_, err := svc.Upsert(testCtx, fx.exam.ID, fx.students[0].ID, "Z", []string{"A", "B", "C", "D"})
	require.ErrorIs(t, err, ErrAnswerKeySetNotFound)
	require.EqualValues(t, 0, countScores(t, db, fx.exam.ID))
}

func TestScoreServiceUpsertRejectsUnknownStudent(t *testing.T) {
	db := openTestDB(t)
	fx := seedExamFixtures(t, db)
	svc := newTestScoreService(db)

	_, err := svc.Upsert(testCtx, fx.exam.ID, 9999, "A", []string{"A", "B", "C", "D"})
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestScoreServiceBulkUpsertGradesInStudentOrder(t *testing.T) {
	db := openTestDB(t)
	fx := seedExamFixtures(t, db)
	svc := newTestScoreService(db)

	processed, err := svc.BulkUpsert(testCtx, dto.BulkScoreRequest{
		ExamID:  fx.exam.ID,
		SetCode: "A",
		Answers: map[uint][]string{
			fx.students[0].ID: {"A", "B", "C", "D"},
			fx.students[1].ID: {"A", "B", "C", "A"},
			fx.students[2].ID: {"B", "B", "C", "D"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 3, processed)
	require.EqualValues(t, 3, countScores(t, db, fx.exam.ID))
}

func TestScoreServiceBulkUpsertStopsOnMissingStudent(t *testing.T) {
	db := openTestDB(t)
	fx := seedExamFixtures(t, db)
	svc := newTestScoreService(db)

	processed, err := svc.BulkUpsert(testCtx, dto.BulkScoreRequest{
		ExamID:  fx.exam.ID,
		SetCode: "A",
		Answers: map[uint][]string{
			fx.students[0].ID: {"A", "B", "C", "D"},
			9999:              {"A", "B", "C", "D"},
		},
	})
	require.ErrorIs(t, err, ErrStudentNotFound)
	require.Equal(t, 1, processed)
}

func TestScoreServiceRecomputeIsStableWithoutKeyChanges(t *testing.T) {
	db := openTestDB(t)
	fx := seedExamFixtures(t, db)
	svc := newTestScoreService(db)

	original, err := svc.Upsert(testCtx, fx.exam.ID, fx.students[0].ID, "A", []string{"A", "B", "C", "A"})
	require.NoError(t, err)

	updated, err := svc.Recompute(testCtx, fx.exam.ID)
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	var stored models.Score
	require.NoError(t, db.Where("exam_id = ? AND student_id = ?", fx.exam.ID, fx.students[0].ID).First(&stored).Error)
	require.Equal(t, original.RawScore, stored.RawScore)
	require.InDelta(t, original.Percent, stored.Percent, 1e-9)
}

func TestScoreServiceRecomputeAppliesKeyChanges(t *testing.T) {
	db := openTestDB(t)
	fx := seedExamFixtures(t, db)
	svc := newTestScoreService(db)

	_, err := svc.Upsert(testCtx, fx.exam.ID, fx.students[0].ID, "A", []string{"A", "B", "C", "A"})
	require.NoError(t, err)

	// Item 4 key changes from D to A, turning the miss into a hit.
	require.NoError(t, db.Model(&models.AnswerKeySet{}).
		Where("id = ?", fx.keySet.ID).
		Update("answer_key", datatypes.NewJSONSlice([]string{"A", "B", "C", "A"})).Error)

	updated, err := svc.Recompute(testCtx, fx.exam.ID)
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	var stored models.Score
	require.NoError(t, db.Where("exam_id = ? AND student_id = ?", fx.exam.ID, fx.students[0].ID).First(&stored).Error)
	require.Equal(t, 4, stored.RawScore)
	require.InDelta(t, 100.0, stored.Percent, 1e-9)
	require.Equal(t, "A", stored.SetCode)
}

func TestScoreServiceRecomputeSkipsScoresWithMissingSet(t *testing.T) {
	db := openTestDB(t)
	fx := seedExamFixtures(t, db)
	svc := newTestScoreService(db)

	setB := models.AnswerKeySet{
		ExamID:    fx.exam.ID,
		SetCode:   "B",
		AnswerKey: datatypes.NewJSONSlice([]string{"D", "C", "B", "A"}),
	}
	require.NoError(t, db.Create(&setB).Error)

	_, err := svc.Upsert(testCtx, fx.exam.ID, fx.students[0].ID, "A", []string{"A", "B", "C", "D"})
	require.NoError(t, err)
	_, err = svc.Upsert(testCtx, fx.exam.ID, fx.students[1].ID, "B", []string{"D", "C", "B", "A"})
	require.NoError(t, err)

	require.NoError(t, db.Delete(&models.AnswerKeySet{}, setB.ID).Error)

	updated, err := svc.Recompute(testCtx, fx.exam.ID)
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	// The orphaned score keeps its previous result.
	var orphan models.Score
	require.NoError(t, db.Where("exam_id = ? AND student_id = ?", fx.exam.ID, fx.students[1].ID).First(&orphan).Error)
	require.Equal(t, 4, orphan.RawScore)
	require.Equal(t, "B", orphan.SetCode)
}

func TestScoreServiceRecomputeUnknownExam(t *testing.T) {
	db := openTestDB(t)
	seedExamFixtures(t, db)
	svc := newTestScoreService(db)

	_, err := svc.Recompute(testCtx, 9999)
	require.ErrorIs(t, err, ErrExamNotFound)
}

func TestScoreServiceExportCSV(t *testing.T) {
	db := openTestDB(t)
	fx := seedExamFixtures(t, db)
	svc := newTestScoreService(db)

	_, err := svc.Upsert(testCtx, fx.exam.ID, fx.students[0].ID, "A", []string{"A", "B", "C", "A"})
	require.NoError(t, err)

	data, err := svc.ExportCSV(testCtx, fx.exam.ID)
	require.NoError(t, err)

	csv := string(data)
	require.Contains(t, csv, "student_number,full_name,set_code,raw_score,percent\n")
	require.Contains(t, csv, "1001,Aulia Rahma,A,3,75\n")
}
