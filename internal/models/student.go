package models

import "time"

// Student represents a test taker enrolled in a batch. The student number is
// the identifier printed on answer sheets and is unique within its batch.
type Student struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	BatchID       uint      `gorm:"not null;uniqueIndex:idx_batch_student_number" json:"batch_id"`
	StudentNumber string    `gorm:"size:50;not null;uniqueIndex:idx_batch_student_number" json:"student_number"`
	FullName      string    `gorm:"size:255;not null" json:"full_name"`
	Email         string    `gorm:"size:255" json:"email"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Batch         Batch     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
