package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/optimark/optimark-api/internal/config"
	"github.com/optimark/optimark-api/internal/dto"
	"github.com/optimark/optimark-api/internal/handler"
	"github.com/optimark/optimark-api/internal/middleware"
	"github.com/optimark/optimark-api/internal/models"
	"github.com/optimark/optimark-api/internal/omr"
	"github.com/optimark/optimark-api/internal/repository"
	"github.com/optimark/optimark-api/internal/router"
	"github.com/optimark/optimark-api/internal/service"
	"github.com/optimark/optimark-api/pkg/imagestore"
)

func setupGradingApp(t *testing.T) *fiber.App {
	t.Helper()

	dsn := fmt.Sprintf("file:e2e_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	batchRepo := repository.NewBatchRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	examRepo := repository.NewExamRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	scanRepo := repository.NewScanRepository(db)

	store, err := imagestore.New(t.TempDir(), logger)
	require.NoError(t, err)

	rosterService := service.NewRosterService(batchRepo, studentRepo, validate, logger)
	examService := service.NewExamService(examRepo, batchRepo, validate, logger)
	scoreService := service.NewScoreService(scoreRepo, examRepo, studentRepo, validate, logger)
	analyticsService := service.NewAnalyticsService(scoreRepo, examRepo, logger)
	eventService := service.NewScanEventService(nil, nil, "optimark-test", logger)
	interpreter := omr.NewSidecarInterpreter(4, logger)
	scanService := service.NewScanService(scanRepo, examRepo, studentRepo, scoreService, interpreter, store, nil, eventService, validate, 10, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})

	router.Register(app, config.Config{AppName: "OptiMark API", AppEnv: "test"}, router.Dependencies{
		BatchHandler:      handler.NewBatchHandler(rosterService, validate, logger),
		StudentHandler:    handler.NewStudentHandler(rosterService, validate, logger),
		ExamHandler:       handler.NewExamHandler(examService, scoreService, validate, logger),
		ScoreHandler:      handler.NewScoreHandler(scoreService, validate, logger),
		ScanHandler:       handler.NewScanHandler(scanService, validate, logger),
		ScanEventsHandler: handler.NewScanEventsHandler(eventService, logger),
		AnalyticsHandler:  handler.NewAnalyticsHandler(analyticsService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", uint(1))
			c.Locals("user_role", "admin")
			return c.Next()
		},
	})

	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeEnvelope[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &envelope))
	require.True(t, envelope.Success)
	var target T
	require.NoError(t, json.Unmarshal(envelope.Data, &target))
	return target
}

func sheetPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.White)
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestGradingEndToEndFlow(t *testing.T) {
	app := setupGradingApp(t)

	// Step 1: provision roster
	batchResp := postJSON(t, app, "/api/v1/batches", map[string]interface{}{
		"name": "Grade 12",
		"code": "G12",
	})
	require.Equal(t, fiber.StatusCreated, batchResp.StatusCode)
	batch := decodeEnvelope[dto.BatchResponse](t, batchResp)

	studentResp := postJSON(t, app, "/api/v1/students", map[string]interface{}{
		"batch_id":       batch.ID,
		"student_number": "1001",
		"full_name":      "Aulia Rahma",
	})
	require.Equal(t, fiber.StatusCreated, studentResp.StatusCode)
	student := decodeEnvelope[dto.StudentResponse](t, studentResp)

	// Step 2: create exam and answer key
	examResp := postJSON(t, app, "/api/v1/exams", map[string]interface{}{
		"batch_id":  batch.ID,
		"title":     "Midterm Mathematics",
		"num_items": 4,
	})
	require.Equal(t, fiber.StatusCreated, examResp.StatusCode)
	exam := decodeEnvelope[dto.ExamResponse](t, examResp)
	examPath := "/api/v1/exams/" + strconv.Itoa(int(exam.ID))

	keyBody, err := json.Marshal(map[string]interface{}{
		"set_code":   "A",
		"answer_key": []string{"A", "B", "C", "D"},
	})
	require.NoError(t, err)
	keyReq := httptest.NewRequest(http.MethodPut, examPath+"/sets", bytes.NewReader(keyBody))
	keyReq.Header.Set("Content-Type", "application/json")
	keyResp, err := app.Test(keyReq, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, keyResp.StatusCode)

	// Step 3: upload a scan with a sidecar answer vector (3 of 4 correct)
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	imagePart, err := writer.CreateFormFile("image", "student-1001__set-A.png")
	require.NoError(t, err)
	_, err = imagePart.Write(sheetPNG(t))
	require.NoError(t, err)
	sidecarPart, err := writer.CreateFormFile("sidecar", "student-1001__set-A.json")
	require.NoError(t, err)
	_, err = sidecarPart.Write([]byte(`{"answers":["A","B","C","A"]}`))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	uploadReq := httptest.NewRequest(http.MethodPost, "/api/v1/scans?exam="+strconv.Itoa(int(exam.ID)), buf)
	uploadReq.Header.Set("Content-Type", writer.FormDataContentType())
	uploadResp, err := app.Test(uploadReq, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, uploadResp.StatusCode)

	scan := decodeEnvelope[dto.ScanResponse](t, uploadResp)
	require.Equal(t, "processed", scan.Status)
	require.NotNil(t, scan.StudentID)
	require.Equal(t, student.ID, *scan.StudentID)
	require.Equal(t, "1001", scan.ExtractedStudentNumber)
	require.Empty(t, scan.Issues)

	// Step 4: the graded score is visible on the exam
	scoresReq := httptest.NewRequest(http.MethodGet, examPath+"/scores", nil)
	scoresResp, err := app.Test(scoresReq, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, scoresResp.StatusCode)

	scores := decodeEnvelope[[]dto.ScoreResponse](t, scoresResp)
	require.Len(t, scores, 1)
	require.Equal(t, 3, scores[0].RawScore)
	require.InDelta(t, 75.0, scores[0].Percent, 1e-9)
	require.Equal(t, "A", scores[0].SetCode)

	// Step 5: analytics over the graded scores
	analyticsReq := httptest.NewRequest(http.MethodGet, examPath+"/analytics", nil)
	analyticsResp, err := app.Test(analyticsReq, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, analyticsResp.StatusCode)

	report := decodeEnvelope[dto.ExamAnalyticsResponse](t, analyticsResp)
	require.Equal(t, exam.ID, report.ExamID)
	require.Len(t, report.ItemStats, 4)
	require.InDelta(t, 75.0, report.AveragePercent, 1e-9)

	// Step 6: CSV export carries the graded row
	exportReq := httptest.NewRequest(http.MethodGet, examPath+"/export", nil)
	exportResp, err := app.Test(exportReq, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, exportResp.StatusCode)
	require.Contains(t, exportResp.Header.Get("Content-Disposition"), "exam-"+strconv.Itoa(int(exam.ID))+"-scores.csv")

	csvBody, err := io.ReadAll(exportResp.Body)
	require.NoError(t, err)
	exportResp.Body.Close()
	require.Contains(t, string(csvBody), "1001,Aulia Rahma,A,3,75")
}
