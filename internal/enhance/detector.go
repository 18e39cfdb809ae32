// Package enhance turns recurring root-cause patterns into improvement
// proposals gated by a three-tier approval policy.
package enhance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelstack/sentinel-heal/internal/models"
)

// Learnings looks up historical fixes similar to a description. The detector
// tolerates this collaborator being nil or failing.
type Learnings interface {
	Search(ctx context.Context, description string, limit int) ([]models.LearningRecord, error)
}

// Options tunes candidacy filtering and tier thresholds. Zero values fall
// back to defaults.
type Options struct {
	MinConfidence   float64
	MinOccurrences  int
	Tier1Confidence float64
	Tier2Confidence float64
}

// DefaultOptions returns the stock detection policy.
func DefaultOptions() Options {
	return Options{
		MinConfidence:   70,
		MinOccurrences:  3,
		Tier1Confidence: 95,
		Tier2Confidence: 80,
	}
}

func (o Options) normalized() Options {
	if o.MinConfidence <= 0 {
		o.MinConfidence = 70
	}
	if o.MinOccurrences <= 0 {
		o.MinOccurrences = 3
	}
	if o.Tier1Confidence <= 0 {
		o.Tier1Confidence = 95
	}
	if o.Tier2Confidence <= 0 {
		o.Tier2Confidence = 80
	}
	return o
}

// Detector converts mined patterns into enhancement suggestions.
type Detector struct {
	logger    *slog.Logger
	learnings Learnings
	opts      Options
}

// NewDetector constructs a Detector; learnings may be nil.
func NewDetector(logger *slog.Logger, learnings Learnings, opts Options) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger, learnings: learnings, opts: opts.normalized()}
}

// Detect filters patterns to enhancement candidates and builds one suggestion
// per candidate, sorted by priority then descending ROI ratio.
func (d *Detector) Detect(ctx context.Context, patterns []models.RootCausePattern) []models.EnhancementSuggestion {
	out := []models.EnhancementSuggestion{}
	for _, pattern := range patterns {
		if pattern.Confidence < d.opts.MinConfidence || pattern.Occurrences < d.opts.MinOccurrences {
			continue
		}
		out = append(out, d.suggest(ctx, pattern))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ROI.Ratio > out[j].ROI.Ratio
	})
	return out
}

func (d *Detector) suggest(ctx context.Context, pattern models.RootCausePattern) models.EnhancementSuggestion {
	category := categorize(pattern)
	tmpl := templateFor(category)

	history := d.lookupHistory(ctx, pattern)
	effort := estimateEffort(len(tmpl.steps), history)
	successRate := historicalSuccessRate(history)
	roi := estimateROI(pattern, effort)

	suggestion := models.EnhancementSuggestion{
		ID:                  uuid.NewString(),
		Title:               tmpl.title(pattern),
		Description:         tmpl.description(pattern),
		Category:            category,
		Priority:            priorityFor(pattern),
		Confidence:          pattern.Confidence,
		PatternID:           pattern.ID,
		ImplementationSteps: tmpl.steps,
		EffortHours:         effort,
		AssignedAgent:       tmpl.agent,
		ROI:                 roi,
		Evidence:            evidence(pattern, history),
		CreatedAt:           time.Now().UTC(),
	}

	suggestion.Tier, suggestion.ApprovalReason = d.tierFor(pattern, successRate, effort)
	suggestion.ApprovalRequired = suggestion.Tier != models.TierAutoApply
	return suggestion
}

func (d *Detector) lookupHistory(ctx context.Context, pattern models.RootCausePattern) []models.LearningRecord {
	if d.learnings == nil {
		return nil
	}
	records, err := d.learnings.Search(ctx, pattern.Description, 5)
	if err != nil {
		d.logger.Warn("learnings lookup failed, falling back to heuristics",
			slog.String("pattern", pattern.ID), slog.Any("error", err))
		return nil
	}
	return records
}

// priorityFor ranks a suggestion 1 (highest) to 4 from pattern severity.
func priorityFor(pattern models.RootCausePattern) int {
	priority := 5 - pattern.Severity.Rank()
	if priority < 1 {
		priority = 1
	}
	if priority > 4 {
		priority = 4
	}
	return priority
}

func evidence(pattern models.RootCausePattern, history []models.LearningRecord) []string {
	out := []string{
		fmt.Sprintf("recurred %d times (%.1f/week) between %s and %s",
			pattern.Occurrences, pattern.OccurrencesPerWeek,
			pattern.FirstSeen.Format("2006-01-02"), pattern.LastSeen.Format("2006-01-02")),
	}
	for _, record := range history {
		out = append(out, fmt.Sprintf("similar fix %q used %d times at %.0f%% success",
			record.Pattern, record.TimesUsed, record.SuccessRate))
	}
	return out
}

// categorize buckets a pattern by keyword inspection of its description plus
// manual-fix availability. Security and performance keywords outrank the
// automation of a known manual fix.
func categorize(pattern models.RootCausePattern) models.EnhancementCategory {
	text := strings.ToLower(pattern.Description)
	switch {
	case containsAny(text, "security", "vulnerab", "cve", "credential", "permission"):
		return models.CategorySecurity
	case containsAny(text, "slow", "latency", "timeout", "performance", "memory", "cpu"):
		return models.CategoryPerformance
	case pattern.ManualFixKnown:
		return models.CategoryAutoRemediation
	case containsAny(text, "undetected", "silent", "visibility", "missed", "monitor"):
		return models.CategoryMonitoring
	default:
		return models.CategoryReliability
	}
}

func containsAny(text string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
