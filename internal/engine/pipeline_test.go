package engine

import (
	"context"
	"testing"

	"github.com/sentinelstack/sentinel-heal/internal/classify"
	"github.com/sentinelstack/sentinel-heal/internal/models"
	"github.com/sentinelstack/sentinel-heal/internal/verify"
)

// stubVerifier returns a canned outcome for its layer.
type stubVerifier struct {
	layer      models.Layer
	verified   bool
	confidence float64
	panics     bool
}

func (s stubVerifier) Layer() models.Layer { return s.layer }

func (s stubVerifier) Verify(ctx context.Context, issue models.Issue, wc verify.WorkingContext) models.VerificationOutcome {
	if s.panics {
		panic("verifier blew up")
	}
	return models.VerificationOutcome{
		Verified:   s.verified,
		Confidence: s.confidence,
		Evidence:   []models.EvidenceItem{{Check: "stub", Passed: s.verified}},
	}
}

func allLayerStubs(confidence float64) []verify.Verifier {
	return []verify.Verifier{
		stubVerifier{layer: models.LayerFramework, verified: true, confidence: confidence},
		stubVerifier{layer: models.LayerProject, verified: true, confidence: confidence},
		stubVerifier{layer: models.LayerContext, verified: true, confidence: confidence},
	}
}

func TestPipelineRunPartitionsBatch(t *testing.T) {
	verifiers := []verify.Verifier{
		stubVerifier{layer: models.LayerProject, verified: true, confidence: 92},
		stubVerifier{layer: models.LayerFramework, verified: false},
		stubVerifier{layer: models.LayerContext, verified: true, confidence: 80},
	}
	p := NewPipeline(nil, classify.New(), verify.NewGuard(3, nil), DefaultAutoApplyThresholds(), verifiers...)

	issues := []models.Issue{
		{Component: "dependencies", Severity: models.SeverityHigh, Description: "Cannot find module 'x'", AutoFixAvailable: true},
		{Component: "core", Severity: models.SeverityCritical, Description: "hook registry corrupt"},
		{Component: "preferences", Severity: models.SeverityLow, Description: "naming convention drift"},
	}

	report := p.Run(context.Background(), issues, verify.WorkingContext{Root: t.TempDir()})
	if report.Skipped {
		t.Fatalf("run should not be skipped")
	}
	if len(report.Verified) != 2 {
		t.Fatalf("expected 2 verified issues, got %d", len(report.Verified))
	}
	if len(report.Unverified) != 1 {
		t.Fatalf("expected 1 unverified issue, got %d", len(report.Unverified))
	}
	if report.Unverified[0].Component != "core" {
		t.Fatalf("framework issue should be echoed back unverified")
	}
	if len(report.Verified)+len(report.Unverified) != len(issues) {
		t.Fatalf("partition must cover the input batch")
	}
}

func TestPipelineAutoApplyThresholds(t *testing.T) {
	cases := []struct {
		name       string
		component  string
		confidence float64
		autoFix    bool
		want       bool
	}{
		{"project above threshold", "dependencies", 92, true, true},
		{"project below threshold", "dependencies", 89, true, false},
		{"context requires stricter bar", "preferences", 92, true, false},
		{"context above stricter bar", "preferences", 96, true, true},
		{"no auto fix available", "dependencies", 99, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPipeline(nil, classify.New(), verify.NewGuard(3, nil), DefaultAutoApplyThresholds(), allLayerStubs(tc.confidence)...)
			report := p.Run(context.Background(), []models.Issue{{
				Component:        tc.component,
				Severity:         models.SeverityMedium,
				Description:      "detected drift",
				AutoFixAvailable: tc.autoFix,
			}}, verify.WorkingContext{Root: t.TempDir()})

			if len(report.Verified) != 1 {
				t.Fatalf("expected verified issue, got %d", len(report.Verified))
			}
			v := report.Verified[0]
			if v.AutoApply != tc.want {
				t.Fatalf("auto_apply = %v, want %v (layer=%s confidence=%.0f)", v.AutoApply, tc.want, v.Layer, v.Confidence)
			}
			// Invariant: auto_apply implies confidence meets the layer bar.
			if v.AutoApply {
				min := 90.0
				if v.Layer == models.LayerContext {
					min = 95.0
				}
				if v.Confidence < min {
					t.Fatalf("auto_apply granted below threshold: %.0f < %.0f", v.Confidence, min)
				}
			}
		})
	}
}

func TestPipelineSkipsAtCapacity(t *testing.T) {
	guard := verify.NewGuard(1, nil)
	held, ok := guard.Acquire("/elsewhere")
	if !ok {
		t.Fatalf("setup acquire failed")
	}
	defer guard.Release(held)

	p := NewPipeline(nil, classify.New(), guard, DefaultAutoApplyThresholds(), allLayerStubs(95)...)
	issues := []models.Issue{
		{Component: "build", Description: "compile error"},
		{Component: "tests", Description: "flaky test"},
	}
	report := p.Run(context.Background(), issues, verify.WorkingContext{Root: "/work"})

	if !report.Skipped {
		t.Fatalf("expected skipped report at capacity")
	}
	if len(report.Verified) != 0 {
		t.Fatalf("skipped run must verify nothing")
	}
	if len(report.Unverified) != len(issues) {
		t.Fatalf("skipped run must echo the full input, got %d", len(report.Unverified))
	}
	if guard.Active() != 1 {
		t.Fatalf("skipped run must not change the active session count")
	}
}

func TestPipelineReleasesSlotOnEveryPath(t *testing.T) {
	guard := verify.NewGuard(1, nil)
	p := NewPipeline(nil, classify.New(), guard, DefaultAutoApplyThresholds(),
		stubVerifier{layer: models.LayerProject, panics: true},
	)

	report := p.Run(context.Background(), []models.Issue{
		{Component: "build", Description: "compile error"},
	}, verify.WorkingContext{Root: "/work"})

	if len(report.Unverified) != 1 {
		t.Fatalf("panicking verifier should leave issue unverified")
	}
	if guard.Active() != 0 {
		t.Fatalf("slot must be released after a panicking run, active=%d", guard.Active())
	}
}

func TestPipelineFrameworkAgentOverride(t *testing.T) {
	p := NewPipeline(nil, classify.New(), verify.NewGuard(3, nil), DefaultAutoApplyThresholds(), allLayerStubs(95)...)
	issue := models.Issue{Component: "core", Severity: models.SeverityHigh, Description: "hook registry corrupt"}

	inProject := p.Run(context.Background(), []models.Issue{issue}, verify.WorkingContext{Root: "/proj", FrameworkRepo: false})
	if len(inProject.Verified) != 1 {
		t.Fatalf("expected verified issue")
	}
	if agent := inProject.Verified[0].AssignedAgent; agent != "project-maintainer" {
		t.Fatalf("framework agent must not be assigned in an end-user project, got %q", agent)
	}

	inFramework := p.Run(context.Background(), []models.Issue{issue}, verify.WorkingContext{Root: "/fw", FrameworkRepo: true})
	if agent := inFramework.Verified[0].AssignedAgent; agent == "project-maintainer" {
		t.Fatalf("framework repo run should assign a framework agent, got %q", agent)
	}
}

func TestPipelineStats(t *testing.T) {
	p := NewPipeline(nil, classify.New(), verify.NewGuard(3, nil), DefaultAutoApplyThresholds(), allLayerStubs(92)...)
	report := p.Run(context.Background(), []models.Issue{
		{Component: "dependencies", Severity: models.SeverityHigh, Description: "Cannot find module 'a'", AutoFixAvailable: true},
		{Component: "build", Severity: models.SeverityMedium, Description: "compile failed", AutoFixAvailable: false},
	}, verify.WorkingContext{Root: t.TempDir()})

	stats, ok := report.ByLayer[models.LayerProject]
	if !ok {
		t.Fatalf("expected project layer stats")
	}
	if stats.Issues != 2 {
		t.Fatalf("expected 2 project issues, got %d", stats.Issues)
	}
	if stats.AvgConfidence != 92 {
		t.Fatalf("expected avg confidence 92, got %f", stats.AvgConfidence)
	}
	if report.AutoApply != 1 || report.ManualReview != 1 {
		t.Fatalf("expected 1 auto-apply and 1 manual-review, got %d/%d", report.AutoApply, report.ManualReview)
	}
}
