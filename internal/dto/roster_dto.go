package dto

import (
	"time"

	"github.com/optimark/optimark-api/internal/models"
)

// BatchCreateRequest describes the payload for creating a batch.
type BatchCreateRequest struct {
	Name string `json:"name" validate:"required,min=2,max=255"`
	Code string `json:"code" validate:"required,min=2,max=50"`
}

// BatchResponse is returned to API clients when viewing batches.
type BatchResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// NewBatchResponse converts a Batch model into a DTO.
func NewBatchResponse(model models.Batch) BatchResponse {
	return BatchResponse{
		ID:        model.ID,
		Name:      model.Name,
		Code:      model.Code,
		CreatedAt: model.CreatedAt,
	}
}

// StudentCreateRequest describes the payload for enrolling a student.
type StudentCreateRequest struct {
	BatchID       uint   `json:"batch_id" validate:"required,gt=0"`
	StudentNumber string `json:"student_number" validate:"required,min=1,max=50"`
	FullName      string `json:"full_name" validate:"required,min=2,max=255"`
	Email         string `json:"email" validate:"omitempty,email"`
}

// StudentUpdateRequest updates mutable student fields.
type StudentUpdateRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=2,max=255"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

// StudentResponse is returned to API clients when viewing students.
type StudentResponse struct {
	ID            uint      `json:"id"`
	BatchID       uint      `json:"batch_id"`
	StudentNumber string    `json:"student_number"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewStudentResponse converts a Student model into a DTO.
func NewStudentResponse(model models.Student) StudentResponse {
	return StudentResponse{
		ID:            model.ID,
		BatchID:       model.BatchID,
		StudentNumber: model.StudentNumber,
		FullName:      model.FullName,
		Email:         model.Email,
		CreatedAt:     model.CreatedAt,
	}
}
