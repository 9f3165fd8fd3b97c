package omr

import (
	"context"
	"errors"
)

// Issue codes attached to scans during interpretation and orchestration.
const (
	IssueMissingStudentNumber = "missing_student_number"
	IssueMissingSetCode       = "missing_set_code"
	IssueEmptyAnswers         = "empty_answers"
	IssueStudentNotFound      = "student_not_found"
	IssueProcessingError      = "processing_error"
)

// Confidence tiers reported by interpreters. A clean read must always rank
// above a flagged one; backends may refine the values but not the ordering.
const (
	ConfidenceClean   = 0.9
	ConfidenceFlagged = 0.5
	ConfidenceManual  = 1.0
)

// Interpretation is the structured result of reading one answer sheet.
// Answers holds one normalized upper-case option letter per item, empty
// string for blank marks. StudentNumber and SetCode may be empty when the
// sheet did not yield them; the corresponding issue codes are then present.
type Interpretation struct {
	Answers       []string
	StudentNumber string
	SetCode       string
	Confidence    float64
	Issues        []string
}

// ProcessingError is the hard failure of an interpreter: the image is
// missing or undecodable. Soft problems are reported through Issues instead.
type ProcessingError struct {
	Reason string
	Err    error
}

func (e *ProcessingError) Error() string {
	return e.Reason
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// AsProcessingError reports whether err is an interpreter hard failure and
// returns it when so.
func AsProcessingError(err error) (*ProcessingError, bool) {
	var perr *ProcessingError
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

// Interpreter converts a stored answer-sheet image into an Interpretation.
// Implementations must be side-effect free on external state; a real vision
// backend may pre-process the image internally (grayscale, deskew,
// threshold) before mark detection.
type Interpreter interface {
	Interpret(ctx context.Context, imagePath string) (Interpretation, error)
}
