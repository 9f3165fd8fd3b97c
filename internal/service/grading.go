package service

import "github.com/optimark/optimark-api/internal/models"

// GradingResult is the outcome of grading one answer vector against one key.
type GradingResult struct {
	RawScore  int
	Percent   float64
	Breakdown []models.BreakdownItem
}

// GradeAnswers compares a submitted answer vector against an answer key.
// The key defines the item count: missing submitted answers grade as
// incorrect against the empty string, extra ones are ignored. Comparison is
// exact and case-sensitive; interpreters normalize to upper case before this
// point. The function is total and never fails.
func GradeAnswers(submitted, answerKey []string) GradingResult {
	total := len(answerKey)
	breakdown := make([]models.BreakdownItem, 0, total)
	correct := 0

	for idx, key := range answerKey {
		given := ""
		if idx < len(submitted) {
			given = submitted[idx]
		}
		isCorrect := given == key
		if isCorrect {
			correct++
		}
		breakdown = append(breakdown, models.BreakdownItem{
			Item:    idx + 1,
			Answer:  given,
			Key:     key,
			Correct: isCorrect,
		})
	}

	percent := 0.0
	if total > 0 {
		percent = float64(correct) / float64(total) * 100
	}

	return GradingResult{RawScore: correct, Percent: percent, Breakdown: breakdown}
}
