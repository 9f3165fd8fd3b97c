package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
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
	"github.com/optimark/optimark-api/internal/omr"
	"github.com/optimark/optimark-api/internal/repository"
)

var (
	// ErrScanNotFound indicates the scan was not located.
	ErrScanNotFound = errors.New("scan not found")
	// ErrScanImageRequired indicates the upload carried no image file.
	ErrScanImageRequired = errors.New("scan image is required")
	// ErrScanImageTooLarge indicates the image exceeds the configured limit.
	ErrScanImageTooLarge = errors.New("scan image exceeds maximum allowed size")
	// ErrScanImageType indicates the upload is not a supported image format.
	ErrScanImageType = errors.New("scan image must be png or jpeg")
)

// SheetStore persists uploaded sheet images and their optional sidecar
// payloads on durable storage reachable by the interpreter.
type SheetStore interface {
	SaveImage(examID uint, originalName string, data []byte) (string, error)
	SaveSidecar(imagePath string, data []byte) (string, error)
}

// SheetArchiver pushes a copy of a processed sheet to long-term storage and
// returns its public URL.
type SheetArchiver interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// ScanEventSink receives scan lifecycle events for fan-out to dashboards.
type ScanEventSink interface {
	PublishScanEvent(ctx context.Context, event dto.ScanEvent)
}

// ScanService drives a scan through interpretation, student resolution,
// grading and the pending -> processed/needs_review state machine.
type ScanService interface {
	Upload(ctx context.Context, examID uint, image, sidecar *multipart.FileHeader) (dto.ScanResponse, error)
	Process(ctx context.Context, scanID uint) (dto.ScanResponse, error)
	Review(ctx context.Context, scanID uint, payload dto.ScanReviewRequest) (dto.ScanResponse, error)
	List(ctx context.Context, filter dto.ScanFilter) ([]dto.ScanResponse, error)
	Get(ctx context.Context, scanID uint) (dto.ScanResponse, error)
	Delete(ctx context.Context, scanID uint) error
	Overlay(ctx context.Context, scanID uint) (string, error)
}

type scanService struct {
	scanRepo    repository.ScanRepository
	examRepo    repository.ExamRepository
	studentRepo repository.StudentRepository
	scores      ScoreService
	interpreter omr.Interpreter
	store       SheetStore
	archiver    SheetArchiver
	events      ScanEventSink
	validator   *validator.Validate
	logger      zerolog.Logger
	maxSize     int64
	tracer      trace.Tracer
}

// NewScanService constructs the scan orchestrator. archiver and events may
// be nil when the deployment does not configure them.
func NewScanService(scanRepo repository.ScanRepository, examRepo repository.ExamRepository, studentRepo repository.StudentRepository, scores ScoreService, interpreter omr.Interpreter, store SheetStore, archiver SheetArchiver, events ScanEventSink, validate *validator.Validate, maxSizeMB int, logger zerolog.Logger) ScanService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &scanService{
		scanRepo:    scanRepo,
		examRepo:    examRepo,
		studentRepo: studentRepo,
		scores:      scores,
		interpreter: interpreter,
		store:       store,
		archiver:    archiver,
		events:      events,
		validator:   validate,
		logger:      logger.With().Str("component", "scan_service").Logger(),
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		tracer:      otel.Tracer("github.com/optimark/optimark-api/internal/service/scan"),
	}
}

func (s *scanService) Upload(ctx context.Context, examID uint, image, sidecar *multipart.FileHeader) (dto.ScanResponse, error) {
	ctx, span := s.tracer.Start(ctx, "scan.upload")
	span.SetAttributes(attribute.Int64("scan.exam_id", int64(examID)))
	defer span.End()

	if _, err := s.examRepo.GetByID(ctx, examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "exam_not_found")
			return dto.ScanResponse{}, ErrExamNotFound
		}
		span.RecordError(err)
		return dto.ScanResponse{}, err
	}

	data, err := s.readImage(image)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "image_rejected")
		return dto.ScanResponse{}, err
	}

	imagePath, err := s.store.SaveImage(examID, image.Filename, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "image_store_failed")
		return dto.ScanResponse{}, err
	}

	if sidecar != nil {
		payload, err := readMultipartFile(sidecar, s.maxSize)
		if err != nil {
			span.RecordError(err)
			return dto.ScanResponse{}, err
		}
		if _, err := s.store.SaveSidecar(imagePath, payload); err != nil {
			span.RecordError(err)
			return dto.ScanResponse{}, err
		}
	}

	scan := models.Scan{
		ExamID:    examID,
		ImagePath: imagePath,
		Status:    models.ScanStatusPending,
	}
	if err := s.scanRepo.Create(ctx, &scan); err != nil {
		span.RecordError(err)
		return dto.ScanResponse{}, err
	}

	if err := s.process(ctx, &scan); err != nil {
		span.RecordError(err)
		return dto.ScanResponse{}, err
	}

	span.SetAttributes(attribute.String("scan.status", scan.Status))
	return dto.NewScanResponse(scan), nil
}

// Process re-runs interpretation for an existing scan, overwriting the
// extracted fields of the previous pass.
func (s *scanService) Process(ctx context.Context, scanID uint) (dto.ScanResponse, error) {
	ctx, span := s.tracer.Start(ctx, "scan.process")
	span.SetAttributes(attribute.Int64("scan.id", int64(scanID)))
	defer span.End()

	scan, err := s.scanRepo.GetByID(ctx, scanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ScanResponse{}, ErrScanNotFound
		}
		span.RecordError(err)
		return dto.ScanResponse{}, err
	}

	if err := s.process(ctx, &scan); err != nil {
		span.RecordError(err)
		return dto.ScanResponse{}, err
	}
	return dto.NewScanResponse(scan), nil
}

// process runs one interpretation pass and finalizes the scan. Soft issues
// never surface as errors here; only interpreter context failures, storage
// failures and a missing answer key set propagate.
func (s *scanService) process(ctx context.Context, scan *models.Scan) error {
	start := time.Now()

	result, err := s.interpreter.Interpret(ctx, scan.ImagePath)
	if err != nil {
		perr, ok := omr.AsProcessingError(err)
		if !ok {
			return err
		}
		scan.Status = models.ScanStatusNeedsReview
		scan.Issues = datatypes.NewJSONSlice([]string{omr.IssueProcessingError, perr.Reason})
		if err := s.scanRepo.Update(ctx, scan); err != nil {
			return err
		}
		observability.ScansProcessed().WithLabelValues(scan.Status).Inc()
		observability.ScanProcessingLatency().Observe(time.Since(start).Seconds())
		s.logger.Warn().Uint("scan_id", scan.ID).Str("reason", perr.Reason).Msg("scan interpretation failed")
		s.publish(ctx, *scan)
		return nil
	}

	orchestratorIssues := make([]string, 0, 1)
	var studentID *uint
	if result.StudentNumber != "" {
		exam, err := s.examRepo.GetByID(ctx, scan.ExamID)
		if err != nil {
			return err
		}
		student, err := s.studentRepo.GetByBatchAndNumber(ctx, exam.BatchID, result.StudentNumber)
		switch {
		case err == nil:
			studentID = &student.ID
		case errors.Is(err, gorm.ErrRecordNotFound):
			orchestratorIssues = append(orchestratorIssues, omr.IssueStudentNotFound)
		default:
			return err
		}
	}

	if studentID != nil {
		if _, err := s.scores.Upsert(ctx, scan.ExamID, *studentID, result.SetCode, result.Answers); err != nil {
			return err
		}
	}

	issues := mergeIssues(orchestratorIssues, result.Issues)
	scan.MarkProcessed(studentID, result.StudentNumber, result.SetCode, result.Answers, result.Confidence, issues)
	if err := s.scanRepo.Update(ctx, scan); err != nil {
		return err
	}

	observability.ScansProcessed().WithLabelValues(scan.Status).Inc()
	observability.ScanProcessingLatency().Observe(time.Since(start).Seconds())
	s.archive(ctx, scan)
	s.publish(ctx, *scan)
	return nil
}

// Review is the human override for flagged scans: the caller supplies the
// identity and answers, the scan is graded and forced to processed with
// full confidence. A missing key set rejects the request before any scan
// state changes.
func (s *scanService) Review(ctx context.Context, scanID uint, payload dto.ScanReviewRequest) (dto.ScanResponse, error) {
	ctx, span := s.tracer.Start(ctx, "scan.review")
	span.SetAttributes(attribute.Int64("scan.id", int64(scanID)))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ScanResponse{}, err
	}

	scan, err := s.scanRepo.GetByID(ctx, scanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ScanResponse{}, ErrScanNotFound
		}
		span.RecordError(err)
		return dto.ScanResponse{}, err
	}

	student, err := s.studentRepo.GetByID(ctx, payload.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "student_not_found")
			return dto.ScanResponse{}, ErrStudentNotFound
		}
		span.RecordError(err)
		return dto.ScanResponse{}, err
	}

	if _, err := s.scores.Upsert(ctx, scan.ExamID, student.ID, payload.SetCode, payload.Answers); err != nil {
		span.RecordError(err)
		return dto.ScanResponse{}, err
	}

	scan.MarkProcessed(&student.ID, student.StudentNumber, payload.SetCode, payload.Answers, omr.ConfidenceManual, nil)
	if err := s.scanRepo.Update(ctx, &scan); err != nil {
		span.RecordError(err)
		return dto.ScanResponse{}, err
	}

	observability.ScansProcessed().WithLabelValues(scan.Status).Inc()
	observability.ScoresGraded().WithLabelValues("review").Inc()
	s.logger.Info().Uint("scan_id", scan.ID).Uint("student_id", student.ID).Msg("scan reviewed manually")
	s.publish(ctx, scan)
	return dto.NewScanResponse(scan), nil
}

func (s *scanService) List(ctx context.Context, filter dto.ScanFilter) ([]dto.ScanResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	scans, err := s.scanRepo.List(ctx, repository.ScanFilter{ExamID: filter.ExamID, Status: filter.Status})
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ScanResponse, 0, len(scans))
	for _, scan := range scans {
		responses = append(responses, dto.NewScanResponse(scan))
	}
	return responses, nil
}

func (s *scanService) Get(ctx context.Context, scanID uint) (dto.ScanResponse, error) {
	scan, err := s.scanRepo.GetByID(ctx, scanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ScanResponse{}, ErrScanNotFound
		}
		return dto.ScanResponse{}, err
	}
	return dto.NewScanResponse(scan), nil
}

func (s *scanService) Delete(ctx context.Context, scanID uint) error {
	if _, err := s.scanRepo.GetByID(ctx, scanID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrScanNotFound
		}
		return err
	}
	return s.scanRepo.Delete(ctx, scanID)
}

// Overlay renders the review overlay for a scan and returns its file path.
func (s *scanService) Overlay(ctx context.Context, scanID uint) (string, error) {
	scan, err := s.scanRepo.GetByID(ctx, scanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrScanNotFound
		}
		return "", err
	}
	return omr.BuildOverlay(scan.ImagePath, scan.Answers)
}

func (s *scanService) readImage(image *multipart.FileHeader) ([]byte, error) {
	if image == nil {
		return nil, ErrScanImageRequired
	}
	data, err := readMultipartFile(image, s.maxSize)
	if err != nil {
		return nil, err
	}

	mime := mimetype.Detect(data)
	if !mime.Is("image/png") && !mime.Is("image/jpeg") {
		return nil, ErrScanImageType
	}
	return data, nil
}

func (s *scanService) archive(ctx context.Context, scan *models.Scan) {
	if s.archiver == nil {
		return
	}
	file, err := os.Open(scan.ImagePath)
	if err != nil {
		s.logger.Warn().Err(err).Uint("scan_id", scan.ID).Msg("sheet archive skipped, image unreadable")
		return
	}
	defer file.Close()

	url, err := s.archiver.Upload(ctx, scan.ImagePath, file)
	if err != nil {
		s.logger.Warn().Err(err).Uint("scan_id", scan.ID).Msg("sheet archive failed")
		return
	}
	scan.ArchiveURL = url
	if err := s.scanRepo.Update(ctx, scan); err != nil {
		s.logger.Warn().Err(err).Uint("scan_id", scan.ID).Msg("failed to persist archive url")
	}
}

func (s *scanService) publish(ctx context.Context, scan models.Scan) {
	if s.events == nil {
		return
	}
	s.events.PublishScanEvent(ctx, dto.ScanEvent{
		ScanID:     scan.ID,
		ExamID:     scan.ExamID,
		Status:     scan.Status,
		Confidence: scan.Confidence,
		Issues:     scan.Issues,
		OccurredAt: time.Now().UTC(),
	})
}

func readMultipartFile(file *multipart.FileHeader, maxSize int64) ([]byte, error) {
	if file.Size > maxSize {
		return nil, ErrScanImageTooLarge
	}
	handle, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, maxSize+1)); err != nil {
		return nil, err
	}
	if int64(buf.Len()) > maxSize {
		return nil, ErrScanImageTooLarge
	}
	return buf.Bytes(), nil
}

// mergeIssues joins orchestrator issues with interpreter issues, preserving
// order and dropping duplicates.
func mergeIssues(orchestrator, interpreter []string) []string {
	merged := make([]string, 0, len(orchestrator)+len(interpreter))
	seen := make(map[string]struct{}, len(orchestrator)+len(interpreter))
	for _, issue := range append(append([]string{}, orchestrator...), interpreter...) {
		trimmed := strings.TrimSpace(issue)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		merged = append(merged, trimmed)
	}
	return merged
}
