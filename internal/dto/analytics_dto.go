package dto

// ItemStatResponse carries the psychometric indices of one exam item.
type ItemStatResponse struct {
	Item                int     `json:"item"`
	Difficulty          float64 `json:"difficulty"`
	DiscriminationIndex float64 `json:"discrimination_index"`
	PointBiserial       float64 `json:"point_biserial"`
}

// ExamAnalyticsResponse is the exam-level psychometric report.
type ExamAnalyticsResponse struct {
	ExamID         uint               `json:"exam_id"`
	KR20           float64            `json:"kr20"`
	AverageScore   float64            `json:"average_score"`
	AveragePercent float64            `json:"average_percent"`
	ItemStats      []ItemStatResponse `json:"item_stats"`
}
