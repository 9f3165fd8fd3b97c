package models

import (
	"time"

	"gorm.io/datatypes"
)

// Scan statuses. A scan is pending until the orchestrator has run; it then
// lands on processed or needs_review depending on whether issues remain.
const (
	ScanStatusPending     = "pending"
	ScanStatusProcessed   = "processed"
	ScanStatusNeedsReview = "needs_review"
)

// Scan is one uploaded answer-sheet image together with everything the
// interpreter extracted from it. StudentID stays nil when no roster match
// was found.
type Scan struct {
	ID                     uint                        `gorm:"primaryKey" json:"id"`
	ExamID                 uint                        `gorm:"not null" json:"exam_id"`
	StudentID              *uint                       `json:"student_id"`
	ImagePath              string                      `gorm:"size:512;not null" json:"image_path"`
	ArchiveURL             string                      `gorm:"size:512" json:"archive_url"`
	ExtractedStudentNumber string                      `gorm:"size:50" json:"extracted_student_number"`
	ExtractedSetCode       string                      `gorm:"size:10" json:"extracted_set_code"`
	Answers                datatypes.JSONSlice[string] `gorm:"type:json" json:"answers"`
	Confidence             float64                     `gorm:"not null;default:0" json:"confidence"`
	Status                 string                      `gorm:"size:20;not null;default:pending" json:"status"`
	Issues                 datatypes.JSONSlice[string] `gorm:"type:json" json:"issues"`
	CreatedAt              time.Time                   `json:"created_at"`
	UpdatedAt              time.Time                   `json:"updated_at"`
	Exam                   Exam                        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student                *Student                    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
}

// MarkProcessed overwrites the extracted fields for one processing pass and
// derives the terminal status from the issue list. This is the only place
// status and issues are set together, which keeps the two consistent.
func (s *Scan) MarkProcessed(studentID *uint, studentNumber, setCode string, answers []string, confidence float64, issues []string) {
	s.StudentID = studentID
	s.ExtractedStudentNumber = studentNumber
	s.ExtractedSetCode = setCode
	s.Answers = datatypes.NewJSONSlice(answers)
	s.Confidence = confidence
	s.Issues = datatypes.NewJSONSlice(issues)
	if len(issues) == 0 {
		s.Status = ScanStatusProcessed
	} else {
		s.Status = ScanStatusNeedsReview
	}
}
