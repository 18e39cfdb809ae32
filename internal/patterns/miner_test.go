package patterns

import (
	"context"
	"testing"
	"time"

	"github.com/sentinelstack/sentinel-heal/internal/models"
)

type fakePatternStore struct {
	stored int
}

func (f *fakePatternStore) StorePatterns(ctx context.Context, patterns []models.RootCausePattern) error {
	f.stored += len(patterns)
	return nil
}

func snapshotWithIssues(ts time.Time, issues ...models.Issue) models.HealthSnapshot {
	return models.HealthSnapshot{Issues: issues, Timestamp: ts}
}

func TestMinerAggregatesRecurringIssues(t *testing.T) {
	store := &fakePatternStore{}
	miner := NewMiner(nil, store)

	now := time.Now()
	recurring := models.Issue{
		Component:      "build",
		Severity:       models.SeverityMedium,
		Description:    "Build failed: cannot find module lodash",
		RootCause:      "missing dependency",
		Recommendation: "run npm install",
	}
	oneOff := models.Issue{
		Component:   "git",
		Severity:    models.SeverityLow,
		Description: "stale lock file detected",
	}

	patterns, err := miner.Mine(context.Background(), []models.HealthSnapshot{
		snapshotWithIssues(now, recurring, oneOff),
		snapshotWithIssues(now.Add(30*time.Minute), recurring),
		snapshotWithIssues(now.Add(time.Hour), recurring),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(patterns))
	}

	p := patterns[0]
	if p.Occurrences != 3 {
		t.Fatalf("expected 3 occurrences, got %d", p.Occurrences)
	}
	if p.Component != "build" {
		t.Fatalf("unexpected component %q", p.Component)
	}
	if !p.ManualFixKnown {
		t.Fatalf("recommendation present, expected ManualFixKnown")
	}
	if p.OccurrencesPerWeek != 3 {
		t.Fatalf("sub-week span must normalize to 1 week, got %.2f/week", p.OccurrencesPerWeek)
	}
	if !p.FirstSeen.Equal(now) || !p.LastSeen.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected seen range %v..%v", p.FirstSeen, p.LastSeen)
	}
	if store.stored != 1 {
		t.Fatalf("expected stored patterns, got %d", store.stored)
	}
}

func TestMinerKeepsMaxSeverity(t *testing.T) {
	miner := NewMiner(nil, nil)

	now := time.Now()
	low := models.Issue{Component: "ci", Severity: models.SeverityLow, Description: "pipeline flaky"}
	high := low
	high.Severity = models.SeverityHigh

	patterns, err := miner.Mine(context.Background(), []models.HealthSnapshot{
		snapshotWithIssues(now, low),
		snapshotWithIssues(now.Add(time.Hour), high),
		snapshotWithIssues(now.Add(2*time.Hour), low),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(patterns))
	}
	if patterns[0].Severity != models.SeverityHigh {
		t.Fatalf("expected max severity high, got %s", patterns[0].Severity)
	}
}

func TestMinerSecondaryRootCauses(t *testing.T) {
	miner := NewMiner(nil, nil)

	now := time.Now()
	first := models.Issue{Component: "tests", Severity: models.SeverityMedium, Description: "integration suite timing out", RootCause: "slow database fixture"}
	second := first
	second.RootCause = "network flakiness"

	patterns, err := miner.Mine(context.Background(), []models.HealthSnapshot{
		snapshotWithIssues(now, first),
		snapshotWithIssues(now.Add(time.Hour), second),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(patterns))
	}
	// The exemplar is the latest occurrence, so its cause is primary.
	causes := patterns[0].SecondaryRootCauses
	if len(causes) != 1 || causes[0] != "slow database fixture" {
		t.Fatalf("unexpected secondary causes %v", causes)
	}
}

func TestMinerConfidenceGrowsWithOccurrences(t *testing.T) {
	if patternConfidence(2) != 50 {
		t.Fatalf("expected floor 50, got %.0f", patternConfidence(2))
	}
	if patternConfidence(5) != 80 {
		t.Fatalf("expected 80 for 5 occurrences, got %.0f", patternConfidence(5))
	}
	if patternConfidence(50) != 95 {
		t.Fatalf("expected cap 95, got %.0f", patternConfidence(50))
	}
}

func TestMinerEmptyHistory(t *testing.T) {
	miner := NewMiner(nil, nil)
	patterns, err := miner.Mine(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patterns != nil {
		t.Fatalf("expected nil patterns, got %v", patterns)
	}
}
