package contract_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/optimark/optimark-api/internal/dto"
	"github.com/optimark/optimark-api/internal/handler"
)

type stubAnalyticsService struct {
	response dto.ExamAnalyticsResponse
}

func (s stubAnalyticsService) ComputeExamAnalytics(context.Context, uint) (dto.ExamAnalyticsResponse, error) {
	return s.response, nil
}

func TestExamAnalyticsContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "exam_analytics.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	report := dto.ExamAnalyticsResponse{
		ExamID:         42,
		KR20:           0.8123,
		AverageScore:   3.2,
		AveragePercent: 80.0,
		ItemStats: []dto.ItemStatResponse{
			{Item: 1, Difficulty: 0.8, DiscriminationIndex: 0.5, PointBiserial: 0.42},
			{Item: 2, Difficulty: 0.4, DiscriminationIndex: 1.0, PointBiserial: 0.61},
		},
	}

	serviceStub := stubAnalyticsService{response: report}
	handler := handler.NewAnalyticsHandler(serviceStub, zerolog.Nop())

	app := fiber.New()
	handler.Register(app.Group("/api/v1/exams"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/exams/42/analytics", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
