// Package engine orchestrates the verification pipeline: classify each raw
// issue, verify it against ground truth, assign a remediation agent, and
// decide auto-apply eligibility.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sentinelstack/sentinel-heal/internal/classify"
	"github.com/sentinelstack/sentinel-heal/internal/models"
	"github.com/sentinelstack/sentinel-heal/internal/verify"
)

// AutoApplyThresholds holds the per-layer confidence floors for unattended
// remediation. Context-layer fixes touch user-visible conventions and demand
// the stricter bar.
type AutoApplyThresholds struct {
	Framework float64
	Project   float64
	Context   float64
}

// DefaultAutoApplyThresholds returns the stock policy.
func DefaultAutoApplyThresholds() AutoApplyThresholds {
	return AutoApplyThresholds{Framework: 90, Project: 90, Context: 95}
}

func (t AutoApplyThresholds) forLayer(layer models.Layer) float64 {
	switch layer {
	case models.LayerContext:
		return t.Context
	case models.LayerFramework:
		return t.Framework
	default:
		return t.Project
	}
}

// Pipeline runs classification, verification, agent assignment and the
// auto-apply decision over a batch of issues. All collaborators are
// injected; the guard is the only shared mutable state.
type Pipeline struct {
	logger      *slog.Logger
	classifier  *classify.Classifier
	guard       *verify.Guard
	verifiers   map[models.Layer]verify.Verifier
	thresholds  AutoApplyThresholds
	concurrency int
}

// NewPipeline constructs a verification pipeline.
func NewPipeline(logger *slog.Logger, classifier *classify.Classifier, guard *verify.Guard, thresholds AutoApplyThresholds, verifiers ...verify.Verifier) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = classify.New()
	}
	if guard == nil {
		guard = verify.NewGuard(verify.DefaultMaxSessions, logger)
	}
	byLayer := make(map[models.Layer]verify.Verifier, len(verifiers))
	for _, v := range verifiers {
		byLayer[v.Layer()] = v
	}
	return &Pipeline{
		logger:      logger,
		classifier:  classifier,
		guard:       guard,
		verifiers:   byLayer,
		thresholds:  thresholds,
		concurrency: 4,
	}
}

// SetConcurrency bounds how many issues verify in parallel within a batch.
func (p *Pipeline) SetConcurrency(n int) {
	if n > 0 {
		p.concurrency = n
	}
}

type issueResult struct {
	verified *models.VerifiedIssue
	issue    models.Issue
}

// Run verifies a batch. A rejected guard acquisition returns a zero-effect
// report with the full input echoed back unverified; a failure in one
// issue's verification never aborts the batch.
func (p *Pipeline) Run(ctx context.Context, issues []models.Issue, wc verify.WorkingContext) models.VerificationReport {
	report := models.VerificationReport{
		RunID:      uuid.NewString(),
		Verified:   []models.VerifiedIssue{},
		Unverified: []models.Issue{},
		StartedAt:  time.Now().UTC(),
	}

	session, ok := p.guard.Acquire(wc.Root)
	if !ok {
		report.Skipped = true
		report.SkipReason = "verification capacity reached; run skipped"
		report.Unverified = append(report.Unverified, issues...)
		return report
	}
	defer p.guard.Release(session)

	// Classifications are deterministic, so one lookup per distinct issue
	// text is enough for the lifetime of this run.
	classCache := make(map[string]models.LayerClassification, len(issues))
	classOf := func(issue models.Issue) models.LayerClassification {
		key := issue.Component + "\x00" + issue.Description
		if c, ok := classCache[key]; ok {
			return c
		}
		c := p.classifier.Classify(issue)
		classCache[key] = c
		return c
	}

	results := make([]issueResult, len(issues))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, issue := range issues {
		i, issue := i, issue
		g.Go(func() error {
			results[i] = p.verifyOne(gctx, issue, classOf(issue), wc)
			return nil
		})
	}
	// Workers never return errors; they record unverified issues instead.
	_ = g.Wait()

	confidenceSums := make(map[models.Layer]float64, 3)
	report.ByLayer = make(map[models.Layer]models.LayerStats, 3)
	for _, res := range results {
		if res.verified == nil {
			report.Unverified = append(report.Unverified, res.issue)
			continue
		}
		v := *res.verified
		report.Verified = append(report.Verified, v)
		stats := report.ByLayer[v.Layer]
		stats.Issues++
		report.ByLayer[v.Layer] = stats
		confidenceSums[v.Layer] += v.Confidence
		if v.AutoApply {
			report.AutoApply++
		} else {
			report.ManualReview++
		}
	}
	for layer, stats := range report.ByLayer {
		if stats.Issues > 0 {
			stats.AvgConfidence = confidenceSums[layer] / float64(stats.Issues)
			report.ByLayer[layer] = stats
		}
	}

	report.Duration = time.Since(report.StartedAt)
	p.logger.Info("verification run complete",
		slog.String("run_id", report.RunID),
		slog.Int("verified", len(report.Verified)),
		slog.Int("unverified", len(report.Unverified)),
		slog.Int("auto_apply", report.AutoApply))
	return report
}

func (p *Pipeline) verifyOne(ctx context.Context, issue models.Issue, classification models.LayerClassification, wc verify.WorkingContext) (res issueResult) {
	res = issueResult{issue: issue}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("issue verification panicked",
				slog.String("component", issue.Component),
				slog.Any("panic", r))
			res.verified = nil
		}
	}()

	verifier, ok := p.verifiers[classification.Layer]
	if !ok {
		p.logger.Warn("no verifier for layer", slog.String("layer", string(classification.Layer)))
		return res
	}

	outcome := verifier.Verify(ctx, issue, wc)
	if !outcome.Verified {
		return res
	}

	threshold := p.thresholds.forLayer(classification.Layer)
	verified := models.VerifiedIssue{
		Issue:          issue,
		Layer:          classification.Layer,
		Classification: classification,
		Verified:       true,
		Confidence:     outcome.Confidence,
		Evidence:       outcome.Evidence,
		AssignedAgent:  assignAgent(classification.Layer, issue, wc.FrameworkRepo),
		AutoApply:      issue.AutoFixAvailable && outcome.Confidence >= threshold,
		Priority:       priorityFor(issue.Severity, outcome.Confidence),
		CreatedAt:      time.Now().UTC(),
	}
	res.verified = &verified
	return res
}

// Describe summarises the pipeline configuration for the status surface.
func (p *Pipeline) Describe() string {
	return fmt.Sprintf("pipeline[max_sessions=%d thresholds=%.0f/%.0f/%.0f]",
		p.guard.Max(), p.thresholds.Framework, p.thresholds.Project, p.thresholds.Context)
}
