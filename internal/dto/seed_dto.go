package dto

// SeedStudent is one roster entry in a provisioning request.
type SeedStudent struct {
	StudentNumber string `json:"student_number" validate:"required,min=1,max=50"`
	FullName      string `json:"full_name" validate:"required,min=2,max=255"`
	Email         string `json:"email" validate:"omitempty,email"`
}

// SeedKeySet is one answer key set in a provisioning request.
type SeedKeySet struct {
	SetCode   string   `json:"set_code" validate:"required,min=1,max=10"`
	AnswerKey []string `json:"answer_key" validate:"required,min=1,dive,len=1"`
}

// SeedExam provisions an exam with its key sets.
type SeedExam struct {
	Title    string       `json:"title" validate:"required,min=2,max=255"`
	NumItems int          `json:"num_items" validate:"required,gt=0,lte=300"`
	Sets     []SeedKeySet `json:"sets" validate:"omitempty,dive"`
}

// SeedRosterRequest provisions a batch, its students, and optionally an exam
// in one idempotent pass.
type SeedRosterRequest struct {
	BatchName string        `json:"batch_name" validate:"required,min=2,max=255"`
	BatchCode string        `json:"batch_code" validate:"required,min=2,max=50"`
	Students  []SeedStudent `json:"students" validate:"omitempty,dive"`
	Exam      *SeedExam     `json:"exam" validate:"omitempty"`
}

// SeedRosterResponse reports what the provisioning pass touched.
type SeedRosterResponse struct {
	BatchID  uint `json:"batch_id"`
	Students int  `json:"students"`
	ExamID   uint `json:"exam_id,omitempty"`
	KeySets  int  `json:"key_sets"`
}
