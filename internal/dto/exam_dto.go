package dto

import (
	"time"

	"github.com/optimark/optimark-api/internal/models"
)

// ExamCreateRequest describes the payload for creating an exam.
type ExamCreateRequest struct {
	BatchID  uint   `json:"batch_id" validate:"required,gt=0"`
	Title    string `json:"title" validate:"required,min=2,max=255"`
	NumItems int    `json:"num_items" validate:"required,gt=0,lte=300"`
}

// ExamUpdateRequest updates mutable exam fields.
type ExamUpdateRequest struct {
	Title    *string `json:"title" validate:"omitempty,min=2,max=255"`
	NumItems *int    `json:"num_items" validate:"omitempty,gt=0,lte=300"`
}

// ExamResponse is returned to API clients when viewing exams.
type ExamResponse struct {
	ID        uint      `json:"id"`
	BatchID   uint      `json:"batch_id"`
	Title     string    `json:"title"`
	NumItems  int       `json:"num_items"`
	CreatedAt time.Time `json:"created_at"`
}

// NewExamResponse converts an Exam model into a DTO.
func NewExamResponse(model models.Exam) ExamResponse {
	return ExamResponse{
		ID:        model.ID,
		BatchID:   model.BatchID,
		Title:     model.Title,
		NumItems:  model.NumItems,
		CreatedAt: model.CreatedAt,
	}
}

// AnswerKeySetRequest creates or replaces an answer key set for an exam.
type AnswerKeySetRequest struct {
	SetCode   string   `json:"set_code" validate:"required,min=1,max=10"`
	AnswerKey []string `json:"answer_key" validate:"required,min=1,dive,len=1"`
}

// AnswerKeySetResponse is returned to API clients when viewing key sets.
type AnswerKeySetResponse struct {
	ID        uint     `json:"id"`
	ExamID    uint     `json:"exam_id"`
	SetCode   string   `json:"set_code"`
	AnswerKey []string `json:"answer_key"`
}

// NewAnswerKeySetResponse converts an AnswerKeySet model into a DTO.
func NewAnswerKeySetResponse(model models.AnswerKeySet) AnswerKeySetResponse {
	return AnswerKeySetResponse{
		ID:        model.ID,
		ExamID:    model.ExamID,
		SetCode:   model.SetCode,
		AnswerKey: model.AnswerKey,
	}
}
