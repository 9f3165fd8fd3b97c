package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/optimark/optimark-api/internal/dto"
	"github.com/optimark/optimark-api/internal/models"
	"github.com/optimark/optimark-api/internal/repository"
)

// ErrBatchNotFound indicates the referenced batch does not exist.
var ErrBatchNotFound = errors.New("batch not found")

// RosterService manages batches and their student rosters.
type RosterService interface {
	ListBatches(ctx context.Context) ([]dto.BatchResponse, error)
	GetBatch(ctx context.Context, id uint) (dto.BatchResponse, error)
	CreateBatch(ctx context.Context, payload dto.BatchCreateRequest) (dto.BatchResponse, error)
	DeleteBatch(ctx context.Context, id uint) error

	ListStudents(ctx context.Context, batchID *uint, search string) ([]dto.StudentResponse, error)
	CreateStudent(ctx context.Context, payload dto.StudentCreateRequest) (dto.StudentResponse, error)
	UpdateStudent(ctx context.Context, id uint, payload dto.StudentUpdateRequest) (dto.StudentResponse, error)
	DeleteStudent(ctx context.Context, id uint) error
}

type rosterService struct {
	batchRepo   repository.BatchRepository
	studentRepo repository.StudentRepository
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
}

// NewRosterService constructs the roster service.
func NewRosterService(batchRepo repository.BatchRepository, studentRepo repository.StudentRepository, validate *validator.Validate, logger zerolog.Logger) RosterService {
	return &rosterService{
		batchRepo:   batchRepo,
		studentRepo: studentRepo,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "roster_service").Logger(),
	}
}

func (s *rosterService) ListBatches(ctx context.Context) ([]dto.BatchResponse, error) {
	batches, err := s.batchRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.BatchResponse, 0, len(batches))
	for _, batch := range batches {
		responses = append(responses, dto.NewBatchResponse(batch))
	}
	return responses, nil
}

func (s *rosterService) GetBatch(ctx context.Context, id uint) (dto.BatchResponse, error) {
	batch, err := s.batchRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BatchResponse{}, ErrBatchNotFound
		}
		return dto.BatchResponse{}, err
	}
	return dto.NewBatchResponse(batch), nil
}

func (s *rosterService) CreateBatch(ctx context.Context, payload dto.BatchCreateRequest) (dto.BatchResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BatchResponse{}, err
	}

	batch := models.Batch{
		Name: s.cleanText(payload.Name),
		Code: strings.TrimSpace(payload.Code),
	}
	if err := s.batchRepo.Create(ctx, &batch); err != nil {
		return dto.BatchResponse{}, err
	}
	s.logger.Info().Uint("batch_id", batch.ID).Str("code", batch.Code).Msg("batch created")
	return dto.NewBatchResponse(batch), nil
}

func (s *rosterService) DeleteBatch(ctx context.Context, id uint) error {
	if _, err := s.batchRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBatchNotFound
		}
		return err
	}
	return s.batchRepo.Delete(ctx, id)
}

func (s *rosterService) ListStudents(ctx context.Context, batchID *uint, search string) ([]dto.StudentResponse, error) {
	students, err := s.studentRepo.List(ctx, repository.StudentFilter{BatchID: batchID, Search: strings.TrimSpace(search)})
	if err != nil {
		return nil, err
	}
	responses := make([]dto.StudentResponse, 0, len(students))
	for _, student := range students {
		responses = append(responses, dto.NewStudentResponse(student))
	}
	return responses, nil
}

func (s *rosterService) CreateStudent(ctx context.Context, payload dto.StudentCreateRequest) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	if _, err := s.batchRepo.GetByID(ctx, payload.BatchID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResponse{}, ErrBatchNotFound
		}
		return dto.StudentResponse{}, err
	}

	student := models.Student{
		BatchID:       payload.BatchID,
		StudentNumber: strings.TrimSpace(payload.StudentNumber),
		FullName:      s.cleanText(payload.FullName),
		Email:         strings.TrimSpace(payload.Email),
	}
	if err := s.studentRepo.Create(ctx, &student); err != nil {
		return dto.StudentResponse{}, err
	}
	return dto.NewStudentResponse(student), nil
}

func (s *rosterService) UpdateStudent(ctx context.Context, id uint, payload dto.StudentUpdateRequest) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	student, err := s.studentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResponse{}, ErrStudentNotFound
		}
		return dto.StudentResponse{}, err
	}

	if payload.FullName != nil {
		student.FullName = s.cleanText(*payload.FullName)
	}
	if payload.Email != nil {
		student.Email = strings.TrimSpace(*payload.Email)
	}
	if err := s.studentRepo.Update(ctx, &student); err != nil {
		return dto.StudentResponse{}, err
	}
	return dto.NewStudentResponse(student), nil
}

func (s *rosterService) DeleteStudent(ctx context.Context, id uint) error {
	if _, err := s.studentRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		return err
	}
	return s.studentRepo.Delete(ctx, id)
}

func (s *rosterService) cleanText(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}
