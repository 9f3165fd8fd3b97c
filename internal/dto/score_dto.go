package dto

import (
	"time"

	"github.com/optimark/optimark-api/internal/models"
)

// BreakdownItemResponse serializes one item of a score breakdown.
type BreakdownItemResponse struct {
	Item    int    `json:"item"`
	Answer  string `json:"answer"`
	Key     string `json:"key"`
	Correct bool   `json:"correct"`
}

// ScoreResponse is returned to API clients when viewing scores.
type ScoreResponse struct {
	ID            uint                    `json:"id"`
	ExamID        uint                    `json:"exam_id"`
	StudentID     uint                    `json:"student_id"`
	StudentNumber string                  `json:"student_number,omitempty"`
	FullName      string                  `json:"full_name,omitempty"`
	SetCode       string                  `json:"set_code"`
	RawScore      int                     `json:"raw_score"`
	Percent       float64                 `json:"percent"`
	Breakdown     []BreakdownItemResponse `json:"breakdown"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// NewScoreResponse converts a Score model into a DTO.
func NewScoreResponse(model models.Score) ScoreResponse {
	breakdown := make([]BreakdownItemResponse, 0, len(model.Breakdown))
	for _, item := range model.Breakdown {
		breakdown = append(breakdown, BreakdownItemResponse{
			Item:    item.Item,
			Answer:  item.Answer,
			Key:     item.Key,
			Correct: item.Correct,
		})
	}

	return ScoreResponse{
		ID:            model.ID,
		ExamID:        model.ExamID,
		StudentID:     model.StudentID,
		StudentNumber: model.Student.StudentNumber,
		FullName:      model.Student.FullName,
		SetCode:       model.SetCode,
		RawScore:      model.RawScore,
		Percent:       model.Percent,
		Breakdown:     breakdown,
		UpdatedAt:     model.UpdatedAt,
	}
}

// ScoreUpsertRequest grades one student's submitted answers against a key set.
type ScoreUpsertRequest struct {
	ExamID    uint     `json:"exam_id" validate:"required,gt=0"`
	StudentID uint     `json:"student_id" validate:"required,gt=0"`
	SetCode   string   `json:"set_code" validate:"required,min=1,max=10"`
	Answers   []string `json:"answers" validate:"required,min=1"`
}

// BulkScoreRequest applies one upsert per student for non-scan grading.
type BulkScoreRequest struct {
	ExamID  uint              `json:"exam_id" validate:"required,gt=0"`
	SetCode string            `json:"set_code" validate:"required,min=1,max=10"`
	Answers map[uint][]string `json:"answers" validate:"required,min=1"`
}

// BulkScoreResponse reports how many entries were graded.
type BulkScoreResponse struct {
	Processed int `json:"processed"`
}

// RecomputeResponse reports how many scores a recompute pass rewrote.
type RecomputeResponse struct {
	Updated int `json:"updated"`
}
