package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/optimark/optimark-api/internal/dto"
	"github.com/optimark/optimark-api/internal/models"
	"github.com/optimark/optimark-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates the provisioning tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// SeedService provisions batches, rosters and exams idempotently. It backs
// environment bootstrap and demo setups; repeated calls with the same
// payload leave the same state behind.
type SeedService interface {
	SeedRoster(ctx context.Context, token string, payload dto.SeedRosterRequest) (dto.SeedRosterResponse, error)
}

type seedService struct {
	batchRepo   repository.BatchRepository
	studentRepo repository.StudentRepository
	examRepo    repository.ExamRepository
	validator   *validator.Validate
	enabled     bool
	token       string
	logger      zerolog.Logger
}

// NewSeedService constructs a provisioning service.
func NewSeedService(batchRepo repository.BatchRepository, studentRepo repository.StudentRepository, examRepo repository.ExamRepository, validate *validator.Validate, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		batchRepo:   batchRepo,
		studentRepo: studentRepo,
		examRepo:    examRepo,
		validator:   validate,
		enabled:     enabled,
		token:       token,
		logger:      logger.With().Str("component", "seed_service").Logger(),
	}
}

func (s *seedService) SeedRoster(ctx context.Context, token string, payload dto.SeedRosterRequest) (dto.SeedRosterResponse, error) {
	if !s.enabled {
		return dto.SeedRosterResponse{}, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return dto.SeedRosterResponse{}, ErrSeedUnauthorized
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.SeedRosterResponse{}, err
	}

	batch, err := s.batchRepo.GetByCode(ctx, payload.BatchCode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		batch = models.Batch{Name: payload.BatchName, Code: payload.BatchCode}
		err = s.batchRepo.Create(ctx, &batch)
	}
	if err != nil {
		return dto.SeedRosterResponse{}, err
	}

	students := make([]models.Student, 0, len(payload.Students))
	for _, entry := range payload.Students {
		students = append(students, models.Student{
			BatchID:       batch.ID,
			StudentNumber: entry.StudentNumber,
			FullName:      entry.FullName,
			Email:         entry.Email,
		})
	}
	affected, err := s.studentRepo.UpsertRoster(ctx, students)
	if err != nil {
		return dto.SeedRosterResponse{}, err
	}

	response := dto.SeedRosterResponse{BatchID: batch.ID, Students: int(affected)}

	if payload.Exam != nil {
		examID, keySets, err := s.seedExam(ctx, batch.ID, *payload.Exam)
		if err != nil {
			return dto.SeedRosterResponse{}, err
		}
		response.ExamID = examID
		response.KeySets = keySets
	}

	s.logger.Info().
		Uint("batch_id", batch.ID).
		Int("students", response.Students).
		Int("key_sets", response.KeySets).
		Msg("roster seeded")
	return response, nil
}

// seedExam reuses an existing exam with the same title in the batch rather
// than inserting a duplicate.
func (s *seedService) seedExam(ctx context.Context, batchID uint, seed dto.SeedExam) (uint, int, error) {
	exams, err := s.examRepo.List(ctx, repository.ExamFilter{BatchID: &batchID})
	if err != nil {
		return 0, 0, err
	}

	var exam models.Exam
	for _, existing := range exams {
		if existing.Title == seed.Title {
			exam = existing
			break
		}
	}
	if exam.ID == 0 {
		exam = models.Exam{BatchID: batchID, Title: seed.Title, NumItems: seed.NumItems}
		if err := s.examRepo.Create(ctx, &exam); err != nil {
			return 0, 0, err
		}
	}

	for _, set := range seed.Sets {
		key := make([]string, len(set.AnswerKey))
		for i, answer := range set.AnswerKey {
			key[i] = strings.ToUpper(strings.TrimSpace(answer))
		}
		keySet := models.AnswerKeySet{
			ExamID:    exam.ID,
			SetCode:   set.SetCode,
			AnswerKey: datatypes.NewJSONSlice(key),
		}
		if err := s.examRepo.UpsertSet(ctx, &keySet); err != nil {
			return exam.ID, 0, err
		}
	}
	return exam.ID, len(seed.Sets), nil
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}
