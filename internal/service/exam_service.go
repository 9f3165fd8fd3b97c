package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/optimark/optimark-api/internal/dto"
	"github.com/optimark/optimark-api/internal/models"
	"github.com/optimark/optimark-api/internal/repository"
)

// ErrKeyLengthMismatch indicates an answer key whose length differs from the
// exam's item count.
var ErrKeyLengthMismatch = errors.New("answer key length does not match exam item count")

// ExamService manages exams and their answer key sets.
type ExamService interface {
	List(ctx context.Context, batchID *uint) ([]dto.ExamResponse, error)
	Get(ctx context.Context, id uint) (dto.ExamResponse, error)
	Create(ctx context.Context, payload dto.ExamCreateRequest) (dto.ExamResponse, error)
	Update(ctx context.Context, id uint, payload dto.ExamUpdateRequest) (dto.ExamResponse, error)
	Delete(ctx context.Context, id uint) error

	ListKeySets(ctx context.Context, examID uint) ([]dto.AnswerKeySetResponse, error)
	SaveKeySet(ctx context.Context, examID uint, payload dto.AnswerKeySetRequest) (dto.AnswerKeySetResponse, error)
	DeleteKeySet(ctx context.Context, examID uint, setCode string) error
}

type examService struct {
	examRepo  repository.ExamRepository
	batchRepo repository.BatchRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewExamService constructs the exam service.
func NewExamService(examRepo repository.ExamRepository, batchRepo repository.BatchRepository, validate *validator.Validate, logger zerolog.Logger) ExamService {
	return &examService{
		examRepo:  examRepo,
		batchRepo: batchRepo,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "exam_service").Logger(),
	}
}

func (s *examService) List(ctx context.Context, batchID *uint) ([]dto.ExamResponse, error) {
	exams, err := s.examRepo.List(ctx, repository.ExamFilter{BatchID: batchID})
	if err != nil {
		return nil, err
	}
	responses := make([]dto.ExamResponse, 0, len(exams))
	for _, exam := range exams {
		responses = append(responses, dto.NewExamResponse(exam))
	}
	return responses, nil
}

func (s *examService) Get(ctx context.Context, id uint) (dto.ExamResponse, error) {
	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResponse{}, ErrExamNotFound
		}
		return dto.ExamResponse{}, err
	}
	return dto.NewExamResponse(exam), nil
}

func (s *examService) Create(ctx context.Context, payload dto.ExamCreateRequest) (dto.ExamResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamResponse{}, err
	}

	if _, err := s.batchRepo.GetByID(ctx, payload.BatchID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResponse{}, ErrBatchNotFound
		}
		return dto.ExamResponse{}, err
	}

	exam := models.Exam{
		BatchID:  payload.BatchID,
		Title:    strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		NumItems: payload.NumItems,
	}
	if err := s.examRepo.Create(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}
	s.logger.Info().Uint("exam_id", exam.ID).Uint("batch_id", exam.BatchID).Msg("exam created")
	return dto.NewExamResponse(exam), nil
}

func (s *examService) Update(ctx context.Context, id uint, payload dto.ExamUpdateRequest) (dto.ExamResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamResponse{}, err
	}

	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResponse{}, ErrExamNotFound
		}
		return dto.ExamResponse{}, err
	}

	if payload.Title != nil {
		exam.Title = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Title))
	}
	if payload.NumItems != nil {
		exam.NumItems = *payload.NumItems
	}
	if err := s.examRepo.Update(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}
	return dto.NewExamResponse(exam), nil
}

func (s *examService) Delete(ctx context.Context, id uint) error {
	if _, err := s.examRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrExamNotFound
		}
		return err
	}
	return s.examRepo.Delete(ctx, id)
}

func (s *examService) ListKeySets(ctx context.Context, examID uint) ([]dto.AnswerKeySetResponse, error) {
	if _, err := s.examRepo.GetByID(ctx, examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}

	sets, err := s.examRepo.ListSets(ctx, examID)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.AnswerKeySetResponse, 0, len(sets))
	for _, set := range sets {
		responses = append(responses, dto.NewAnswerKeySetResponse(set))
	}
	return responses, nil
}

// SaveKeySet creates or replaces the answer key for (exam, set code). The
// key length must match the exam's item count; changing an existing key does
// not touch scores until a recompute is requested.
func (s *examService) SaveKeySet(ctx context.Context, examID uint, payload dto.AnswerKeySetRequest) (dto.AnswerKeySetResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AnswerKeySetResponse{}, err
	}

	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerKeySetResponse{}, ErrExamNotFound
		}
		return dto.AnswerKeySetResponse{}, err
	}

	if len(payload.AnswerKey) != exam.NumItems {
		return dto.AnswerKeySetResponse{}, ErrKeyLengthMismatch
	}

	key := make([]string, len(payload.AnswerKey))
	for i, answer := range payload.AnswerKey {
		key[i] = strings.ToUpper(strings.TrimSpace(answer))
	}

	set := models.AnswerKeySet{
		ExamID:    examID,
		SetCode:   strings.TrimSpace(payload.SetCode),
		AnswerKey: datatypes.NewJSONSlice(key),
	}
	if err := s.examRepo.UpsertSet(ctx, &set); err != nil {
		return dto.AnswerKeySetResponse{}, err
	}
	s.logger.Info().Uint("exam_id", examID).Str("set_code", set.SetCode).Msg("answer key set saved")
	return dto.NewAnswerKeySetResponse(set), nil
}

func (s *examService) DeleteKeySet(ctx context.Context, examID uint, setCode string) error {
	if _, err := s.examRepo.GetSet(ctx, examID, setCode); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnswerKeySetNotFound
		}
		return err
	}
	return s.examRepo.DeleteSet(ctx, examID, setCode)
}
