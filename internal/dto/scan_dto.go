package dto

import (
	"time"

	"github.com/optimark/optimark-api/internal/models"
)

// ScanFilter describes query string filters for listing scans.
type ScanFilter struct {
	ExamID *uint   `query:"exam"`
	Status *string `query:"status" validate:"omitempty,oneof=pending processed needs_review"`
}

// ScanReviewRequest is the manual correction applied to a flagged scan. The
// caller supplies everything the interpreter could not.
type ScanReviewRequest struct {
	StudentID uint     `json:"student_id" validate:"required,gt=0"`
	SetCode   string   `json:"set_code" validate:"required,min=1,max=10"`
	Answers   []string `json:"answers" validate:"required,min=1"`
}

// ScanResponse is returned to API clients when viewing scans.
type ScanResponse struct {
	ID                     uint      `json:"id"`
	ExamID                 uint      `json:"exam_id"`
	StudentID              *uint     `json:"student_id"`
	ImagePath              string    `json:"image_path"`
	ArchiveURL             string    `json:"archive_url,omitempty"`
	ExtractedStudentNumber string    `json:"extracted_student_number"`
	ExtractedSetCode       string    `json:"extracted_set_code"`
	Answers                []string  `json:"answers"`
	Confidence             float64   `json:"confidence"`
	Status                 string    `json:"status"`
	Issues                 []string  `json:"issues"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// NewScanResponse converts a Scan model into a DTO.
func NewScanResponse(model models.Scan) ScanResponse {
	answers := []string(model.Answers)
	if answers == nil {
		answers = []string{}
	}
	issues := []string(model.Issues)
	if issues == nil {
		issues = []string{}
	}

	return ScanResponse{
		ID:                     model.ID,
		ExamID:                 model.ExamID,
		StudentID:              model.StudentID,
		ImagePath:              model.ImagePath,
		ArchiveURL:             model.ArchiveURL,
		ExtractedStudentNumber: model.ExtractedStudentNumber,
		ExtractedSetCode:       model.ExtractedSetCode,
		Answers:                answers,
		Confidence:             model.Confidence,
		Status:                 model.Status,
		Issues:                 issues,
		CreatedAt:              model.CreatedAt,
		UpdatedAt:              model.UpdatedAt,
	}
}

// ScanEvent is published on every scan status transition and streamed to
// review dashboards.
type ScanEvent struct {
	ScanID     uint      `json:"scan_id"`
	ExamID     uint      `json:"exam_id"`
	Status     string    `json:"status"`
	Confidence float64   `json:"confidence"`
	Issues     []string  `json:"issues"`
	OccurredAt time.Time `json:"occurred_at"`
}
