package service

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/optimark/optimark-api/internal/models"
	"github.com/optimark/optimark-api/internal/repository"
)

func scoreFromVector(id uint, examID uint, submitted, key []string) models.Score {
	result := GradeAnswers(submitted, key)
	return models.Score{
		ID:        id,
		ExamID:    examID,
		StudentID: id,
		SetCode:   "A",
		RawScore:  result.RawScore,
		Percent:   result.Percent,
		Breakdown: datatypes.NewJSONSlice(result.Breakdown),
	}
}

func TestBuildExamAnalyticsFiveStudentExample(t *testing.T) {
	key := []string{"A", "B", "C", "D"}
	scores := []models.Score{
		scoreFromVector(1, 7, []string{"A", "B", "C", "D"}, key),
		scoreFromVector(2, 7, []string{"A", "B", "C", "A"}, key),
		scoreFromVector(3, 7, []string{"A", "B", "D", "D"}, key),
		scoreFromVector(4, 7, []string{"A", "C", "C", "D"}, key),
		scoreFromVector(5, 7, []string{"B", "B", "C", "D"}, key),
	}

	report := buildExamAnalytics(7, scores)

	require.EqualValues(t, 7, report.ExamID)
	require.Len(t, report.ItemStats, 4)

	for _, stat := range report.ItemStats {
		require.InDelta(t, 0.8, stat.Difficulty, 1e-9)
	}

	require.InDelta(t, 3.2, report.AverageScore, 1e-9)
	require.InDelta(t, 80.0, report.AveragePercent, 1e-9)

	// pq sum 0.64, total variance 0.16.
	require.InDelta(t, -4.0, report.KR20, 1e-9)

	// Groups of floor(5*0.27)=1: top is the perfect score, bottom is the
	// lowest-ID raw score of 3. Item 1 is correct for both.
	require.InDelta(t, 0.0, report.ItemStats[0].DiscriminationIndex, 1e-9)
	// Item 4 is wrong only for the bottom student.
	require.InDelta(t, 1.0, report.ItemStats[3].DiscriminationIndex, 1e-9)

	// sd=0.4, p=0.8: r = ((3.25-3)/0.4)*sqrt(0.16) = 0.25 for every item,
	// since each item is missed by exactly one student scoring 3.
	for _, stat := range report.ItemStats {
		require.InDelta(t, 0.25, stat.PointBiserial, 1e-9)
	}
}

func TestBuildExamAnalyticsNoScores(t *testing.T) {
	report := buildExamAnalytics(3, nil)

	require.EqualValues(t, 3, report.ExamID)
	require.Equal(t, 0.0, report.KR20)
	require.Equal(t, 0.0, report.AverageScore)
	require.Equal(t, 0.0, report.AveragePercent)
	require.NotNil(t, report.ItemStats)
	require.Empty(t, report.ItemStats)
}

func TestBuildExamAnalyticsSingleItemKR20IsZero(t *testing.T) {
	key := []string{"A"}
	scores := []models.Score{
		scoreFromVector(1, 1, []string{"A"}, key),
		scoreFromVector(2, 1, []string{"B"}, key),
	}

	report := buildExamAnalytics(1, scores)
	require.Equal(t, 0.0, report.KR20)
}

func TestBuildExamAnalyticsDegenerateItemsReportZeroPointBiserial(t *testing.T) {
	key := []string{"A", "B"}
	scores := []models.Score{
		scoreFromVector(1, 1, []string{"A", "B"}, key),
		scoreFromVector(2, 1, []string{"A", "C"}, key),
	}

	report := buildExamAnalytics(1, scores)

	// Item 1 is correct for everyone.
	require.InDelta(t, 1.0, report.ItemStats[0].Difficulty, 1e-9)
	require.Equal(t, 0.0, report.ItemStats[0].PointBiserial)
}

func TestBuildExamAnalyticsZeroVarianceUsesUnitDeviation(t *testing.T) {
	key := []string{"A", "B"}
	scores := []models.Score{
		scoreFromVector(1, 1, []string{"A", "C"}, key),
		scoreFromVector(2, 1, []string{"C", "B"}, key),
	}

	// Both students score 1, so total variance is zero and the fallback
	// deviation of 1.0 applies: r = ((1-1)/1)*sqrt(0.25) = 0.
	report := buildExamAnalytics(1, scores)
	require.Equal(t, 0.0, report.ItemStats[0].PointBiserial)
	require.Equal(t, 0.0, report.ItemStats[1].PointBiserial)

	// KR-20 with variance fallback: pq sum 0.5, 2*(1-0.5/1) = 1.
	require.InDelta(t, 1.0, report.KR20, 1e-9)
}

func TestAnalyticsServiceUnknownExam(t *testing.T) {
	db := openTestDB(t)
	svc := NewAnalyticsService(repository.NewScoreRepository(db), repository.NewExamRepository(db), testLogger())

	_, err := svc.ComputeExamAnalytics(testCtx, 42)
	require.ErrorIs(t, err, ErrExamNotFound)
}

func TestAnalyticsServiceComputesFromStoredScores(t *testing.T) {
	db := openTestDB(t)
	fx := seedExamFixtures(t, db)
	scoreSvc := newTestScoreService(db)

	_, err := scoreSvc.Upsert(testCtx, fx.exam.ID, fx.students[0].ID, "A", []string{"A", "B", "C", "D"})
	require.NoError(t, err)
	_, err = scoreSvc.Upsert(testCtx, fx.exam.ID, fx.students[1].ID, "A", []string{"A", "B", "C", "A"})
	require.NoError(t, err)

	svc := NewAnalyticsService(repository.NewScoreRepository(db), repository.NewExamRepository(db), testLogger())
	report, err := svc.ComputeExamAnalytics(testCtx, fx.exam.ID)
	require.NoError(t, err)

	require.EqualValues(t, fx.exam.ID, report.ExamID)
	require.InDelta(t, 3.5, report.AverageScore, 1e-9)
	require.InDelta(t, 87.5, report.AveragePercent, 1e-9)
	require.Len(t, report.ItemStats, 4)
	require.InDelta(t, 1.0, report.ItemStats[0].Difficulty, 1e-9)
	require.InDelta(t, 0.5, report.ItemStats[3].Difficulty, 1e-9)
}
