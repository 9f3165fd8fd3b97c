package models

import (
	"time"

	"gorm.io/datatypes"
)

// Exam is a multiple-choice exam administered to one batch. NumItems is the
// expected length of every answer key attached to it.
type Exam struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BatchID   uint      `gorm:"not null" json:"batch_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	NumItems  int       `gorm:"not null;default:100" json:"num_items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Batch     Batch     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// AnswerKeySet is one of possibly several interchangeable answer keys for an
// exam, addressed by a set code unique within the exam.
type AnswerKeySet struct {
	ID        uint                        `gorm:"primaryKey" json:"id"`
	ExamID    uint                        `gorm:"not null;uniqueIndex:idx_exam_set_code" json:"exam_id"`
	SetCode   string                      `gorm:"size:10;not null;uniqueIndex:idx_exam_set_code" json:"set_code"`
	AnswerKey datatypes.JSONSlice[string] `gorm:"type:json" json:"answer_key"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
	Exam      Exam                        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
