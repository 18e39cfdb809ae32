// Package patterns mines recurring root-cause signatures from retained
// snapshot history. Mined patterns feed the enhancement detector.
package patterns

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sentinelstack/sentinel-heal/internal/dedup"
	"github.com/sentinelstack/sentinel-heal/internal/models"
	"github.com/sentinelstack/sentinel-heal/internal/utils"
)

// Store abstracts persistence for mined patterns.
type Store interface {
	StorePatterns(ctx context.Context, patterns []models.RootCausePattern) error
}

// StoreFunc adapts a plain function to the Store interface.
type StoreFunc func(ctx context.Context, patterns []models.RootCausePattern) error

func (f StoreFunc) StorePatterns(ctx context.Context, patterns []models.RootCausePattern) error {
	return f(ctx, patterns)
}

// Miner aggregates issue recurrences across a snapshot window into
// frequency-based root-cause patterns.
type Miner struct {
	store  Store
	logger *slog.Logger
}

// NewMiner constructs a Miner; store may be nil for dry runs.
func NewMiner(logger *slog.Logger, store Store) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{store: store, logger: logger}
}

// Mine aggregates the issues of an ordered snapshot window by fingerprint and
// returns the recurring patterns sorted by occurrence count descending. A
// signature seen in a single snapshot only is not a pattern and is dropped.
func (m *Miner) Mine(ctx context.Context, snapshots []models.HealthSnapshot) ([]models.RootCausePattern, error) {
	if len(snapshots) == 0 {
		return nil, nil
	}

	aggregates := make(map[string]*issueAggregate)
	for _, snap := range snapshots {
		ts := snap.Timestamp
		for _, issue := range snap.Issues {
			fp := dedup.Fingerprint(issue)
			if fp == "" {
				continue
			}
			agg, ok := aggregates[fp]
			if !ok {
				agg = &issueAggregate{
					hash:       dedup.FingerprintHash(issue),
					component:  issue.Component,
					exemplar:   issue,
					firstSeen:  ts,
					lastSeen:   ts,
					rootCauses: make(map[string]struct{}),
				}
				aggregates[fp] = agg
			}
			agg.count++
			if ts.Before(agg.firstSeen) {
				agg.firstSeen = ts
			}
			if ts.After(agg.lastSeen) {
				agg.lastSeen = ts
				agg.exemplar = issue
			}
			if issue.Severity.Rank() > agg.maxSeverity.Rank() {
				agg.maxSeverity = issue.Severity
			}
			if cause := strings.TrimSpace(issue.RootCause); cause != "" {
				agg.rootCauses[cause] = struct{}{}
			}
		}
	}

	patterns := make([]models.RootCausePattern, 0, len(aggregates))
	for _, agg := range aggregates {
		if agg.count < 2 {
			continue
		}
		pattern := models.RootCausePattern{
			ID:                 "pattern-" + agg.hash,
			Component:          agg.component,
			Description:        agg.exemplar.Description,
			Severity:           agg.maxSeverity,
			Occurrences:        agg.count,
			OccurrencesPerWeek: perWeek(agg.count, agg.firstSeen, agg.lastSeen),
			Confidence:         patternConfidence(agg.count),
			ManualFixKnown:     agg.exemplar.Recommendation != "",
			FirstSeen:          agg.firstSeen,
			LastSeen:           agg.lastSeen,
		}
		if pattern.ManualFixKnown {
			pattern.ManualFixMinutes = defaultManualFixMinutes
		}
		pattern.SecondaryRootCauses = agg.secondaryCauses()
		patterns = append(patterns, pattern)
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].Occurrences != patterns[j].Occurrences {
			return patterns[i].Occurrences > patterns[j].Occurrences
		}
		return patterns[i].ID < patterns[j].ID
	})

	if m.store != nil && len(patterns) > 0 {
		if err := m.store.StorePatterns(ctx, patterns); err != nil {
			m.logger.Warn("pattern store failed", slog.Any("error", err))
		}
	}

	return patterns, nil
}

// defaultManualFixMinutes is assumed when a recommendation exists but no
// measured fix duration is available yet.
const defaultManualFixMinutes = 15

type issueAggregate struct {
	hash        string
	component   string
	exemplar    models.Issue
	count       int
	maxSeverity models.Severity
	firstSeen   time.Time
	lastSeen    time.Time
	rootCauses  map[string]struct{}
}

// secondaryCauses returns every distinct root cause beyond the exemplar's
// own, sorted for stable output.
func (agg *issueAggregate) secondaryCauses() []string {
	primary := strings.TrimSpace(agg.exemplar.RootCause)
	var out []string
	for cause := range agg.rootCauses {
		if cause == primary {
			continue
		}
		out = append(out, cause)
	}
	sort.Strings(out)
	return out
}

// perWeek normalizes an occurrence count by the observed span, never less
// than one week so short windows do not inflate the rate.
func perWeek(count int, first, last time.Time) float64 {
	return float64(count) / utils.WeeksBetween(first, last)
}

// patternConfidence grows with recurrence count and saturates at 95. Two
// occurrences are barely a pattern; ten are near certainty.
func patternConfidence(count int) float64 {
	confidence := 50 + float64(count-2)*10
	if confidence > 95 {
		return 95
	}
	if confidence < 50 {
		return 50
	}
	return confidence
}
