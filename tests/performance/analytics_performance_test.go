package performance_test

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/optimark/optimark-api/internal/handler"
	"github.com/optimark/optimark-api/internal/models"
	"github.com/optimark/optimark-api/internal/repository"
	"github.com/optimark/optimark-api/internal/service"
)

const performanceItemCount = 50

func setupAnalyticsPerformanceApp(t *testing.T) (*fiber.App, uint) {
	t.Helper()

	dsn := fmt.Sprintf("file:perf_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Batch{}, &models.Student{}, &models.Exam{}, &models.AnswerKeySet{}, &models.Score{}))

	batch := models.Batch{Name: "Grade 12", Code: "G12"}
	require.NoError(t, db.Create(&batch).Error)

	exam := models.Exam{BatchID: batch.ID, Title: "Load Exam", NumItems: performanceItemCount}
	require.NoError(t, db.Create(&exam).Error)

	// 200 students, half scoring on even items, half on odd items
	for i := 0; i < 200; i++ {
		student := models.Student{
			BatchID:       batch.ID,
			StudentNumber: fmt.Sprintf("%04d", 1000+i),
			FullName:      fmt.Sprintf("Student %d", i),
		}
		require.NoError(t, db.Create(&student).Error)

		breakdown := make([]models.BreakdownItem, performanceItemCount)
		raw := 0
		for item := 0; item < performanceItemCount; item++ {
			correct := (item+i)%2 == 0
			answer := "B"
			if correct {
				answer = "A"
				raw++
			}
			breakdown[item] = models.BreakdownItem{Item: item + 1, Answer: answer, Key: "A", Correct: correct}
		}
		score := models.Score{
			ExamID:    exam.ID,
			StudentID: student.ID,
			SetCode:   "A",
			RawScore:  raw,
			Percent:   float64(raw) / float64(performanceItemCount) * 100,
			Breakdown: datatypes.NewJSONSlice(breakdown),
		}
		require.NoError(t, db.Create(&score).Error)
	}

	analyticsService := service.NewAnalyticsService(repository.NewScoreRepository(db), repository.NewExamRepository(db), zerolog.Nop())
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService, zerolog.Nop())

	app := fiber.New()
	analyticsHandler.Register(app.Group("/api/v1/exams"))

	return app, exam.ID
}

func TestExamAnalyticsP95LatencyBelow500ms(t *testing.T) {
	app, examID := setupAnalyticsPerformanceApp(t)

	runs := 30
	durations := make([]time.Duration, 0, runs)

	for i := 0; i < runs; i++ {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/exams/%d/analytics", examID), nil)
		start := time.Now()
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	index := int(math.Ceil(0.95*float64(len(durations)))) - 1
	if index < 0 {
		index = 0
	}
	p95 := durations[index]

	require.LessOrEqual(t, p95, 500*time.Millisecond)
}
