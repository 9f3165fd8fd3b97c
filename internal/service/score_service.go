package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"sort"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/optimark/optimark-api/internal/dto"
	"github.com/optimark/optimark-api/internal/models"
	"github.com/optimark/optimark-api/internal/observability"
	"github.com/optimark/optimark-api/internal/repository"
)

// ErrExamNotFound indicates the referenced exam does not exist.
var ErrExamNotFound = errors.New("exam not found")

// ErrStudentNotFound indicates the referenced student does not exist.
var ErrStudentNotFound = errors.New("student not found")

// ErrAnswerKeySetNotFound indicates no key set with the requested code exists on the exam.
var ErrAnswerKeySetNotFound = errors.New("answer key set not found")

// ScoreService owns every Score mutation. No other component writes score
// rows, which is what keeps the one-score-per-(exam, student) invariant.
type ScoreService interface {
	Upsert(ctx context.Context, examID, studentID uint, setCode string, answers []string) (dto.ScoreResponse, error)
	BulkUpsert(ctx context.Context, payload dto.BulkScoreRequest) (int, error)
	Recompute(ctx context.Context, examID uint) (int, error)
	ListByExam(ctx context.Context, examID uint) ([]dto.ScoreResponse, error)
	ExportCSV(ctx context.Context, examID uint) ([]byte, error)
}

type scoreService struct {
	scoreRepo   repository.ScoreRepository
	examRepo    repository.ExamRepository
	studentRepo repository.StudentRepository
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewScoreService constructs the score service.
func NewScoreService(scoreRepo repository.ScoreRepository, examRepo repository.ExamRepository, studentRepo repository.StudentRepository, validate *validator.Validate, logger zerolog.Logger) ScoreService {
	return &scoreService{
		scoreRepo:   scoreRepo,
		examRepo:    examRepo,
		studentRepo: studentRepo,
		validator:   validate,
		logger:      logger.With().Str("component", "score_service").Logger(),
		tracer:      otel.Tracer("github.com/optimark/optimark-api/internal/service/score"),
	}
}

func (s *scoreService) Upsert(ctx context.Context, examID, studentID uint, setCode string, answers []string) (dto.ScoreResponse, error) {
	ctx, span := s.tracer.Start(ctx, "score.upsert")
	span.SetAttributes(
		attribute.Int64("score.exam_id", int64(examID)),
		attribute.Int64("score.student_id", int64(studentID)),
		attribute.String("score.set_code", setCode),
	)
	defer span.End()

	if _, err := s.studentRepo.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "student_not_found")
			return dto.ScoreResponse{}, ErrStudentNotFound
		}
		span.RecordError(err)
		return dto.ScoreResponse{}, err
	}

	keySet, err := s.examRepo.GetSet(ctx, examID, setCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "key_set_not_found")
			return dto.ScoreResponse{}, ErrAnswerKeySetNotFound
		}
		span.RecordError(err)
		return dto.ScoreResponse{}, err
	}

	result := GradeAnswers(answers, keySet.AnswerKey)

	score := models.Score{
		ExamID:    examID,
		StudentID: studentID,
		SetCode:   setCode,
		RawScore:  result.RawScore,
		Percent:   result.Percent,
		Breakdown: datatypes.NewJSONSlice(result.Breakdown),
	}
	if err := s.scoreRepo.Upsert(ctx, &score); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "score_upsert_failed")
		return dto.ScoreResponse{}, err
	}

	observability.ScoresGraded().WithLabelValues("upsert").Inc()
	span.SetAttributes(attribute.Int("score.raw_score", result.RawScore))

	return dto.NewScoreResponse(score), nil
}

func (s *scoreService) BulkUpsert(ctx context.Context, payload dto.BulkScoreRequest) (int, error) {
	ctx, span := s.tracer.Start(ctx, "score.bulk_upsert")
	span.SetAttributes(
		attribute.Int64("score.exam_id", int64(payload.ExamID)),
		attribute.Int("score.entries", len(payload.Answers)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return 0, err
	}

	if _, err := s.examRepo.GetByID(ctx, payload.ExamID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "exam_not_found")
			return 0, ErrExamNotFound
		}
		span.RecordError(err)
		return 0, err
	}

	studentIDs := make([]uint, 0, len(payload.Answers))
	for studentID := range payload.Answers {
		studentIDs = append(studentIDs, studentID)
	}
	sort.Slice(studentIDs, func(i, j int) bool { return studentIDs[i] < studentIDs[j] })

	processed := 0
	for _, studentID := range studentIDs {
		if _, err := s.Upsert(ctx, payload.ExamID, studentID, payload.SetCode, payload.Answers[studentID]); err != nil {
			span.RecordError(err)
			return processed, err
		}
		processed++
	}

	s.logger.Info().Uint("exam_id", payload.ExamID).Int("processed", processed).Msg("bulk grading applied")
	return processed, nil
}

// Recompute re-grades every score on the exam against the current key for
// its recorded set code, using the answers stored in the score's own
// breakdown. Scores whose set code no longer exists are skipped and logged;
// the returned count includes only rewritten rows.
func (s *scoreService) Recompute(ctx context.Context, examID uint) (int, error) {
	ctx, span := s.tracer.Start(ctx, "score.recompute")
	span.SetAttributes(attribute.Int64("score.exam_id", int64(examID)))
	defer span.End()

	if _, err := s.examRepo.GetByID(ctx, examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "exam_not_found")
			return 0, ErrExamNotFound
		}
		span.RecordError(err)
		return 0, err
	}

	scores, err := s.scoreRepo.ListByExam(ctx, examID)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	updated := 0
	for i := range scores {
		score := scores[i]
		keySet, err := s.examRepo.GetSet(ctx, examID, score.SetCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Warn().
					Uint("score_id", score.ID).
					Str("set_code", score.SetCode).
					Msg("set code missing during recompute, score left untouched")
				continue
			}
			span.RecordError(err)
			return updated, err
		}

		result := GradeAnswers(score.SubmittedAnswers(), keySet.AnswerKey)
		score.RawScore = result.RawScore
		score.Percent = result.Percent
		score.Breakdown = datatypes.NewJSONSlice(result.Breakdown)

		if err := s.scoreRepo.UpdateResult(ctx, &score); err != nil {
			span.RecordError(err)
			return updated, err
		}
		observability.ScoresGraded().WithLabelValues("recompute").Inc()
		updated++
	}

	span.SetAttributes(attribute.Int("score.updated", updated))
	s.logger.Info().Uint("exam_id", examID).Int("updated", updated).Msg("exam scores recomputed")
	return updated, nil
}

func (s *scoreService) ListByExam(ctx context.Context, examID uint) ([]dto.ScoreResponse, error) {
	scores, err := s.scoreRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ScoreResponse, 0, len(scores))
	for _, score := range scores {
		responses = append(responses, dto.NewScoreResponse(score))
	}
	return responses, nil
}

// ExportCSV renders one row per score with the roster identity attached.
func (s *scoreService) ExportCSV(ctx context.Context, examID uint) ([]byte, error) {
	scores, err := s.scoreRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"student_number", "full_name", "set_code", "raw_score", "percent"}); err != nil {
		return nil, err
	}
	for _, score := range scores {
		record := []string{
			score.Student.StudentNumber,
			score.Student.FullName,
			score.SetCode,
			strconv.Itoa(score.RawScore),
			strconv.FormatFloat(score.Percent, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
