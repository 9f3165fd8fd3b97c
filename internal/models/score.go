package models

import (
	"time"

	"gorm.io/datatypes"
)

// BreakdownItem records the outcome of a single exam item within a Score.
type BreakdownItem struct {
	Item    int    `json:"item"`
	Answer  string `json:"answer"`
	Key     string `json:"key"`
	Correct bool   `json:"correct"`
}

// Score is the graded outcome of one student's attempt at one exam. The
// unique index on (exam_id, student_id) backs the one-score-per-student
// invariant; all writes go through the score service upsert.
type Score struct {
	ID        uint                               `gorm:"primaryKey" json:"id"`
	ExamID    uint                               `gorm:"not null;uniqueIndex:idx_exam_student_score" json:"exam_id"`
	StudentID uint                               `gorm:"not null;uniqueIndex:idx_exam_student_score" json:"student_id"`
	SetCode   string                             `gorm:"size:10;not null" json:"set_code"`
	RawScore  int                                `gorm:"not null;default:0" json:"raw_score"`
	Percent   float64                            `gorm:"not null;default:0" json:"percent"`
	Breakdown datatypes.JSONSlice[BreakdownItem] `gorm:"type:json" json:"breakdown"`
	CreatedAt time.Time                          `json:"created_at"`
	UpdatedAt time.Time                          `json:"updated_at"`
	Exam      Exam                               `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student   Student                            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// SubmittedAnswers extracts the answer vector recorded in the breakdown,
// ordered by item. Recompute re-grades from this, not from any scan.
func (s Score) SubmittedAnswers() []string {
	answers := make([]string, 0, len(s.Breakdown))
	for _, item := range s.Breakdown {
		answers = append(answers, item.Answer)
	}
	return answers
}
