package models

// LearningRecord is one historical-fix entry returned by the learnings
// lookup collaborator. Used for effort estimation and approval evidence.
type LearningRecord struct {
	Pattern            string  `json:"pattern"`
	SuccessRate        float64 `json:"success_rate"`
	TimesUsed          int     `json:"times_used"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
}
