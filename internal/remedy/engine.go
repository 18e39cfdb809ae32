// Package remedy matches issues against a static registry of remediation
// scenarios and executes (or declines to execute) the associated fix.
package remedy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sentinelstack/sentinel-heal/internal/models"
	"github.com/sentinelstack/sentinel-heal/internal/verify"
)

// minScenarioConfidence is a registry invariant: low-confidence guesses are
// not eligible for automated remediation at all; they belong in the
// enhancement/manual-review path.
const minScenarioConfidence = 70

// FixFunc performs a scenario's repair and reports before/after state.
type FixFunc func(ctx context.Context, issue models.Issue, wc verify.WorkingContext) (before, after string, err error)

// Scenario is one entry in the static remediation registry. Loaded once at
// startup; never mutated at runtime.
type Scenario struct {
	ID          string
	Context     models.ScenarioContext
	Description string
	Matches     func(issue models.Issue) bool
	AutoFixable bool
	Confidence  float64
	Fix         FixFunc
}

// Engine executes the first matching scenario for an issue.
type Engine struct {
	logger    *slog.Logger
	scenarios []Scenario
	// dryRun simulates fixes without invoking procedures.
	dryRun bool
}

// NewEngine validates the registry and constructs an engine. A malformed
// registry is a programmer error and fails construction.
func NewEngine(logger *slog.Logger, dryRun bool, scenarios []Scenario) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	seen := make(map[string]struct{}, len(scenarios))
	for _, s := range scenarios {
		if s.ID == "" || s.Matches == nil {
			return nil, fmt.Errorf("scenario registry: entry %q missing id or matcher", s.ID)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("scenario registry: duplicate id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.Confidence < minScenarioConfidence {
			return nil, fmt.Errorf("scenario registry: %q confidence %.0f below minimum %d", s.ID, s.Confidence, minScenarioConfidence)
		}
		if s.AutoFixable && s.Fix == nil {
			return nil, fmt.Errorf("scenario registry: %q auto-fixable without a fix procedure", s.ID)
		}
	}
	return &Engine{logger: logger, scenarios: scenarios, dryRun: dryRun}, nil
}

// contextMatches reports whether a scenario applies in the current run.
func contextMatches(sc models.ScenarioContext, wc verify.WorkingContext) bool {
	switch sc {
	case models.ScenarioShared:
		return true
	case models.ScenarioFramework:
		return wc.FrameworkRepo
	case models.ScenarioProject:
		return !wc.FrameworkRepo
	default:
		return false
	}
}

// Remediate attempts to fix one issue. Expected failure modes (no matching
// scenario, manual-only scenario, fix error) come back as result values,
// never as errors.
func (e *Engine) Remediate(ctx context.Context, issueID string, issue models.Issue, wc verify.WorkingContext) models.RemediationResult {
	result := models.RemediationResult{
		IssueID:   issueID,
		Timestamp: time.Now().UTC(),
	}

	var matched *Scenario
	for i := range e.scenarios {
		s := &e.scenarios[i]
		if contextMatches(s.Context, wc) && s.Matches(issue) {
			matched = s
			break
		}
	}

	if matched == nil {
		result.ActionTaken = "no matching scenario"
		result.NextSteps = []string{"manual investigation required"}
		return result
	}

	result.Scenario = matched.ID
	result.Confidence = matched.Confidence

	if !matched.AutoFixable {
		result.ActionTaken = "manual fix required"
		result.Confidence = 0
		result.NextSteps = []string{
			fmt.Sprintf("scenario %s matched but is not auto-fixable", matched.ID),
			"manual investigation required",
		}
		return result
	}

	start := time.Now()
	if e.dryRun {
		result.Success = true
		result.ActionTaken = fmt.Sprintf("simulated %s", matched.ID)
		result.BeforeState = "dry-run"
		result.AfterState = "dry-run"
		result.Duration = time.Since(start)
		return result
	}

	before, after, err := matched.Fix(ctx, issue, wc)
	result.Duration = time.Since(start)
	result.BeforeState = before
	result.AfterState = after
	if err != nil {
		e.logger.Warn("scenario fix failed",
			slog.String("scenario", matched.ID),
			slog.Any("error", err))
		result.ActionTaken = fmt.Sprintf("%s failed: %v", matched.ID, err)
		result.NextSteps = []string{"manual investigation required"}
		return result
	}

	result.Success = true
	result.Learned = true
	result.ActionTaken = fmt.Sprintf("executed %s", matched.ID)
	return result
}

// Scenarios exposes the registry for the status surface.
func (e *Engine) Scenarios() []Scenario {
	out := make([]Scenario, len(e.scenarios))
	copy(out, e.scenarios)
	return out
}
