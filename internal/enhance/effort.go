package enhance

import "github.com/sentinelstack/sentinel-heal/internal/models"

const (
	// hoursPerStep is the heuristic cost of one implementation step.
	hoursPerStep = 0.5
	// heuristicWeight blends the step-count heuristic with historical
	// durations when history is available.
	heuristicWeight  = 0.3
	historicalWeight = 0.7
	// defaultSuccessRate stands in when the learnings collaborator is
	// unavailable or has no matching records.
	defaultSuccessRate = 75.0
)

// estimateEffort blends a step-count heuristic with the average duration of
// similar historical fixes, weighted 30/70. Without history the heuristic
// stands alone.
func estimateEffort(stepCount int, history []models.LearningRecord) float64 {
	heuristic := float64(stepCount) * hoursPerStep
	if len(history) == 0 {
		return heuristic
	}
	var totalMinutes float64
	for _, record := range history {
		totalMinutes += record.AvgDurationMinutes
	}
	historical := totalMinutes / float64(len(history)) / 60
	return heuristicWeight*heuristic + historicalWeight*historical
}

// historicalSuccessRate averages the success rates of similar past fixes,
// defaulting when no history exists.
func historicalSuccessRate(history []models.LearningRecord) float64 {
	if len(history) == 0 {
		return defaultSuccessRate
	}
	var total float64
	for _, record := range history {
		total += record.SuccessRate
	}
	return total / float64(len(history))
}

// estimateROI quantifies the payoff: hours saved per week against a
// year-amortized implementation effort.
func estimateROI(pattern models.RootCausePattern, effortHours float64) models.ROIEstimate {
	manualHours := pattern.ManualFixMinutes / 60
	if !pattern.ManualFixKnown || manualHours == 0 {
		// No measured manual cost; assume a modest triage overhead per
		// occurrence so ROI stays comparable across patterns.
		manualHours = 0.25
	}
	hoursSaved := pattern.OccurrencesPerWeek * manualHours

	roi := models.ROIEstimate{
		HoursSavedPerWeek:       hoursSaved,
		InterventionsEliminated: pattern.OccurrencesPerWeek,
		ReliabilityDelta:        pattern.OccurrencesPerWeek * float64(pattern.Severity.Rank()),
	}
	if effortHours > 0 {
		roi.Ratio = hoursSaved / (effortHours / 52)
	}
	return roi
}
