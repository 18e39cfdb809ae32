package remedy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelstack/sentinel-heal/internal/models"
	"github.com/sentinelstack/sentinel-heal/internal/verify"
)

func newTestEngine(t *testing.T, scenarios []Scenario) *Engine {
	t.Helper()
	e, err := NewEngine(nil, false, scenarios)
	require.NoError(t, err)
	return e
}

func TestRegistryValidation(t *testing.T) {
	_, err := NewEngine(nil, false, []Scenario{{
		ID:         "weak-guess",
		Context:    models.ScenarioShared,
		Matches:    func(models.Issue) bool { return true },
		Confidence: 60,
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below minimum")

	_, err = NewEngine(nil, false, []Scenario{
		{ID: "dup", Context: models.ScenarioShared, Matches: func(models.Issue) bool { return true }, Confidence: 80},
		{ID: "dup", Context: models.ScenarioShared, Matches: func(models.Issue) bool { return true }, Confidence: 80},
	})
	require.Error(t, err)

	_, err = NewEngine(nil, false, []Scenario{{
		ID:          "fixless",
		Context:     models.ScenarioShared,
		Matches:     func(models.Issue) bool { return true },
		AutoFixable: true,
		Confidence:  90,
	}})
	require.Error(t, err)
}

func TestBuiltinRegistryIsWellFormed(t *testing.T) {
	_, err := NewEngine(nil, false, BuiltinScenarios())
	require.NoError(t, err)
	for _, s := range BuiltinScenarios() {
		assert.GreaterOrEqual(t, s.Confidence, float64(70), "scenario %s", s.ID)
	}
}

func TestScenarioSelectionPrefersSpecific(t *testing.T) {
	// Dry run: selection is under test, not the fix procedure.
	e, err := NewEngine(nil, true, BuiltinScenarios())
	require.NoError(t, err)
	result := e.Remediate(context.Background(), "issue-1", models.Issue{
		Component:   "dependencies",
		Description: "Cannot find module 'leftpad' while building project",
	}, verify.WorkingContext{Root: t.TempDir()})

	assert.Equal(t, "missing-dependencies", result.Scenario)
}

func TestNoMatchingScenario(t *testing.T) {
	e := newTestEngine(t, BuiltinScenarios())
	result := e.Remediate(context.Background(), "issue-2", models.Issue{
		Component:   "weather",
		Description: "it is raining",
	}, verify.WorkingContext{Root: t.TempDir()})

	assert.False(t, result.Success)
	assert.Zero(t, result.Confidence)
	assert.Equal(t, "no matching scenario", result.ActionTaken)
	assert.Contains(t, result.NextSteps, "manual investigation required")
}

func TestManualOnlyScenarioNeverExecutes(t *testing.T) {
	executed := false
	e := newTestEngine(t, []Scenario{{
		ID:          "manual-only",
		Context:     models.ScenarioShared,
		Matches:     func(models.Issue) bool { return true },
		AutoFixable: false,
		Confidence:  85,
		Fix: func(context.Context, models.Issue, verify.WorkingContext) (string, string, error) {
			executed = true
			return "", "", nil
		},
	}})

	result := e.Remediate(context.Background(), "issue-3", models.Issue{Description: "anything"}, verify.WorkingContext{})
	assert.False(t, executed, "manual-only fix must not run")
	assert.False(t, result.Success)
	assert.Zero(t, result.Confidence)
	assert.Equal(t, "manual fix required", result.ActionTaken)
}

func TestSuccessfulFixCapturesStates(t *testing.T) {
	e := newTestEngine(t, []Scenario{{
		ID:          "fixer",
		Context:     models.ScenarioShared,
		Matches:     func(models.Issue) bool { return true },
		AutoFixable: true,
		Confidence:  90,
		Fix: func(context.Context, models.Issue, verify.WorkingContext) (string, string, error) {
			return "broken", "repaired", nil
		},
	}})

	result := e.Remediate(context.Background(), "issue-4", models.Issue{Description: "x"}, verify.WorkingContext{})
	require.True(t, result.Success)
	assert.Equal(t, "broken", result.BeforeState)
	assert.Equal(t, "repaired", result.AfterState)
	assert.True(t, result.Learned)
	assert.Equal(t, float64(90), result.Confidence)
}

func TestFailedFixSurfacesAsResult(t *testing.T) {
	e := newTestEngine(t, []Scenario{{
		ID:          "flaky-fixer",
		Context:     models.ScenarioShared,
		Matches:     func(models.Issue) bool { return true },
		AutoFixable: true,
		Confidence:  90,
		Fix: func(context.Context, models.Issue, verify.WorkingContext) (string, string, error) {
			return "broken", "", errors.New("disk on fire")
		},
	}})

	result := e.Remediate(context.Background(), "issue-5", models.Issue{Description: "x"}, verify.WorkingContext{})
	assert.False(t, result.Success)
	assert.Contains(t, result.ActionTaken, "disk on fire")
	assert.Contains(t, result.NextSteps, "manual investigation required")
}

func TestContextScoping(t *testing.T) {
	e := newTestEngine(t, []Scenario{{
		ID:          "framework-only",
		Context:     models.ScenarioFramework,
		Matches:     func(models.Issue) bool { return true },
		AutoFixable: true,
		Confidence:  90,
		Fix: func(context.Context, models.Issue, verify.WorkingContext) (string, string, error) {
			return "a", "b", nil
		},
	}})

	inProject := e.Remediate(context.Background(), "i", models.Issue{Description: "x"}, verify.WorkingContext{FrameworkRepo: false})
	assert.Equal(t, "no matching scenario", inProject.ActionTaken)

	inFramework := e.Remediate(context.Background(), "i", models.Issue{Description: "x"}, verify.WorkingContext{FrameworkRepo: true})
	assert.True(t, inFramework.Success)
}

func TestDryRunSimulates(t *testing.T) {
	executed := false
	e, err := NewEngine(nil, true, []Scenario{{
		ID:          "sim",
		Context:     models.ScenarioShared,
		Matches:     func(models.Issue) bool { return true },
		AutoFixable: true,
		Confidence:  90,
		Fix: func(context.Context, models.Issue, verify.WorkingContext) (string, string, error) {
			executed = true
			return "", "", nil
		},
	}})
	require.NoError(t, err)

	result := e.Remediate(context.Background(), "i", models.Issue{Description: "x"}, verify.WorkingContext{})
	assert.True(t, result.Success)
	assert.False(t, executed)
	assert.Contains(t, result.ActionTaken, "simulated")
}
