package service

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/optimark/optimark-api/internal/dto"
	"github.com/optimark/optimark-api/internal/models"
	"github.com/optimark/optimark-api/internal/repository"
)

// cutoffFraction is the share of the ranked population forming the top and
// bottom groups of the discrimination index.
const cutoffFraction = 0.27

// AnalyticsService aggregates the scores of an exam into item-level and
// exam-level psychometrics. It is a pure read path: results are recomputed
// from score rows on every call and never cached.
type AnalyticsService interface {
	ComputeExamAnalytics(ctx context.Context, examID uint) (dto.ExamAnalyticsResponse, error)
}

type analyticsService struct {
	scoreRepo repository.ScoreRepository
	examRepo  repository.ExamRepository
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewAnalyticsService constructs the analytics service.
func NewAnalyticsService(scoreRepo repository.ScoreRepository, examRepo repository.ExamRepository, logger zerolog.Logger) AnalyticsService {
	return &analyticsService{
		scoreRepo: scoreRepo,
		examRepo:  examRepo,
		logger:    logger.With().Str("component", "analytics_service").Logger(),
		tracer:    otel.Tracer("github.com/optimark/optimark-api/internal/service/analytics"),
	}
}

func (s *analyticsService) ComputeExamAnalytics(ctx context.Context, examID uint) (dto.ExamAnalyticsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "analytics.compute")
	span.SetAttributes(attribute.Int64("analytics.exam_id", int64(examID)))
	defer span.End()

	if _, err := s.examRepo.GetByID(ctx, examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "exam_not_found")
			return dto.ExamAnalyticsResponse{}, ErrExamNotFound
		}
		span.RecordError(err)
		return dto.ExamAnalyticsResponse{}, err
	}

	scores, err := s.scoreRepo.ListByExam(ctx, examID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_scores_failed")
		return dto.ExamAnalyticsResponse{}, err
	}

	span.SetAttributes(attribute.Int("analytics.score_count", len(scores)))
	return buildExamAnalytics(examID, scores), nil
}

// buildExamAnalytics is the pure aggregation core. Rounding happens here and
// only here, at the reporting boundary: intermediate values stay unrounded.
func buildExamAnalytics(examID uint, scores []models.Score) dto.ExamAnalyticsResponse {
	if len(scores) == 0 {
		return dto.ExamAnalyticsResponse{ExamID: examID, ItemStats: []dto.ItemStatResponse{}}
	}

	numItems := len(scores[0].Breakdown)
	numStudents := len(scores)

	totals := make([]int, numStudents)
	rowIDs := make([]uint, numStudents)
	percents := make([]float64, numStudents)
	itemMatrix := make([][]bool, numStudents)
	correctCounts := make([]int, numItems)

	for i, score := range scores {
		totals[i] = score.RawScore
		rowIDs[i] = score.ID
		percents[i] = score.Percent
		itemMatrix[i] = make([]bool, numItems)
		for _, item := range score.Breakdown {
			index := item.Item - 1
			if index < 0 || index >= numItems {
				continue
			}
			itemMatrix[i][index] = item.Correct
			if item.Correct {
				correctCounts[index]++
			}
		}
	}

	difficulty := make([]float64, numItems)
	for idx, count := range correctCounts {
		difficulty[idx] = float64(count) / float64(numStudents)
	}

	discrimination := discriminationIndex(itemMatrix, totals, rowIDs)
	pointBiserial := pointBiserialCorrelation(itemMatrix, totals)

	itemStats := make([]dto.ItemStatResponse, numItems)
	for idx := 0; idx < numItems; idx++ {
		itemStats[idx] = dto.ItemStatResponse{
			Item:                idx + 1,
			Difficulty:          difficulty[idx],
			DiscriminationIndex: discrimination[idx],
			PointBiserial:       pointBiserial[idx],
		}
	}

	kr20 := 0.0
	if numItems > 1 {
		pqSum := 0.0
		for _, p := range difficulty {
			pqSum += p * (1 - p)
		}
		variance := populationVariance(totals)
		if variance == 0 {
			variance = 1.0
		}
		kr20 = (float64(numItems) / float64(numItems-1)) * (1 - pqSum/variance)
	}

	return dto.ExamAnalyticsResponse{
		ExamID:         examID,
		KR20:           roundTo(kr20, 4),
		AverageScore:   roundTo(meanInts(totals), 2),
		AveragePercent: roundTo(meanFloats(percents), 2),
		ItemStats:      itemStats,
	}
}

// discriminationIndex ranks students by raw total and compares item success
// between the top and bottom 27% groups. Students sharing a boundary total
// are ordered by score row ID, which makes the grouping deterministic.
func discriminationIndex(itemMatrix [][]bool, totals []int, rowIDs []uint) []float64 {
	numStudents := len(totals)
	numItems := 0
	if numStudents > 0 {
		numItems = len(itemMatrix[0])
	}
	results := make([]float64, numItems)
	if numStudents == 0 {
		return results
	}

	order := make([]int, numStudents)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		if totals[order[a]] != totals[order[b]] {
			return totals[order[a]] < totals[order[b]]
		}
		return rowIDs[order[a]] < rowIDs[order[b]]
	})

	sliceSize := int(math.Floor(float64(numStudents) * cutoffFraction))
	if sliceSize < 1 {
		sliceSize = 1
	}
	bottom := order[:sliceSize]
	top := order[numStudents-sliceSize:]

	for idx := 0; idx < numItems; idx++ {
		topCorrect := 0
		bottomCorrect := 0
		for _, i := range top {
			if itemMatrix[i][idx] {
				topCorrect++
			}
		}
		for _, i := range bottom {
			if itemMatrix[i][idx] {
				bottomCorrect++
			}
		}
		results[idx] = float64(topCorrect)/float64(sliceSize) - float64(bottomCorrect)/float64(sliceSize)
	}
	return results
}

// pointBiserialCorrelation correlates per-item correctness with the raw
// total. Degenerate items (all correct, all incorrect) report 0.
func pointBiserialCorrelation(itemMatrix [][]bool, totals []int) []float64 {
	numStudents := len(totals)
	numItems := 0
	if numStudents > 0 {
		numItems = len(itemMatrix[0])
	}
	results := make([]float64, numItems)
	if numStudents == 0 {
		return results
	}

	sdTotal := math.Sqrt(populationVariance(totals))
	if sdTotal == 0 {
		sdTotal = 1.0
	}

	for idx := 0; idx < numItems; idx++ {
		correctSum := 0
		correctCount := 0
		incorrectSum := 0
		incorrectCount := 0
		for i := 0; i < numStudents; i++ {
			if itemMatrix[i][idx] {
				correctSum += totals[i]
				correctCount++
			} else {
				incorrectSum += totals[i]
				incorrectCount++
			}
		}

		if correctCount == 0 || incorrectCount == 0 {
			continue
		}

		p := float64(correctCount) / float64(numStudents)
		q := 1 - p
		meanCorrect := float64(correctSum) / float64(correctCount)
		meanIncorrect := float64(incorrectSum) / float64(incorrectCount)
		results[idx] = ((meanCorrect - meanIncorrect) / sdTotal) * math.Sqrt(p*q)
	}
	return results
}

func meanInts(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func meanFloats(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func populationVariance(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := meanInts(values)
	sum := 0.0
	for _, v := range values {
		diff := float64(v) - mean
		sum += diff * diff
	}
	return sum / float64(len(values))
}

func roundTo(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}
