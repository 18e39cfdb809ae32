package enhance

import (
	"fmt"

	"github.com/sentinelstack/sentinel-heal/internal/models"
)

const (
	tier1SuccessRate = 95.0
	tier1MaxEffort   = 1.0
	tier3SuccessRate = 70.0
	tier3MaxEffort   = 8.0
)

// tierFor assigns the approval tier for a pattern. Tier 1 is checked first,
// then the Tier 3 exclusions; only a pattern clearing both lands in Tier 2.
func (d *Detector) tierFor(pattern models.RootCausePattern, successRate, effortHours float64) (models.ApprovalTier, string) {
	secondaries := len(pattern.SecondaryRootCauses)

	if pattern.Confidence >= d.opts.Tier1Confidence &&
		successRate >= tier1SuccessRate &&
		pattern.Severity != models.SeverityCritical &&
		secondaries <= 1 &&
		effortHours <= tier1MaxEffort {
		return models.TierAutoApply, ""
	}

	switch {
	case pattern.Confidence < d.opts.Tier2Confidence:
		return models.TierManualReview, fmt.Sprintf("confidence %.0f below %.0f", pattern.Confidence, d.opts.Tier2Confidence)
	case pattern.Severity == models.SeverityCritical:
		return models.TierManualReview, "critical severity requires human review"
	case secondaries >= 3:
		return models.TierManualReview, fmt.Sprintf("%d secondary root causes indicate a tangled fix", secondaries)
	case successRate < tier3SuccessRate:
		return models.TierManualReview, fmt.Sprintf("historical success rate %.0f%% below %.0f%%", successRate, tier3SuccessRate)
	case effortHours > tier3MaxEffort:
		return models.TierManualReview, fmt.Sprintf("estimated effort %.1fh exceeds %.0fh", effortHours, tier3MaxEffort)
	}

	return models.TierPrompt, "requires interactive approval"
}
