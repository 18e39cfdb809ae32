// Package services wires the verification pipeline, deduplication, ticket
// store, remediation engine, analysis and enhancement detection into one
// health cycle.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sentinelstack/sentinel-heal/internal/correlate"
	"github.com/sentinelstack/sentinel-heal/internal/dedup"
	"github.com/sentinelstack/sentinel-heal/internal/engine"
	"github.com/sentinelstack/sentinel-heal/internal/enhance"
	"github.com/sentinelstack/sentinel-heal/internal/metrics"
	"github.com/sentinelstack/sentinel-heal/internal/models"
	"github.com/sentinelstack/sentinel-heal/internal/patterns"
	"github.com/sentinelstack/sentinel-heal/internal/remedy"
	"github.com/sentinelstack/sentinel-heal/internal/telemetry"
	"github.com/sentinelstack/sentinel-heal/internal/tickets"
	"github.com/sentinelstack/sentinel-heal/internal/utils"
	"github.com/sentinelstack/sentinel-heal/internal/verify"
)

// CycleReport is the structured outcome of one health cycle, recorded to
// telemetry and exposed on the status surface.
type CycleReport struct {
	SnapshotID        string                         `json:"snapshot_id"`
	StartedAt         time.Time                      `json:"started_at"`
	Duration          time.Duration                  `json:"duration"`
	Skipped           bool                           `json:"skipped"`
	SkipReason        string                         `json:"skip_reason,omitempty"`
	Verification      models.VerificationReport      `json:"verification"`
	TicketsWritten    int                            `json:"tickets_written"`
	TicketsSuppressed int                            `json:"tickets_suppressed"`
	Remediations      []models.RemediationResult     `json:"remediations"`
	Correlations      int                            `json:"correlations"`
	Trends            int                            `json:"trends"`
	Alerts            []models.PredictiveAlert       `json:"alerts"`
	Suggestions       []models.EnhancementSuggestion `json:"suggestions"`
}

// Options tunes cycle behavior outside the injected components.
type Options struct {
	GroupingEnabled bool
	GroupStrategy   dedup.GroupStrategy
	MaxGroupSize    int
	TicketRetention time.Duration
}

// p95LogEvery controls how often the cycle latency p95 is logged.
const p95LogEvery = 20

// HealService runs health cycles over injected components. All component
// dependencies are constructed at the boundary and passed in.
type HealService struct {
	logger     *slog.Logger
	pipeline   *engine.Pipeline
	remedyEng  *remedy.Engine
	dedup      *dedup.Deduplicator
	grouper    *dedup.Grouper
	store      *tickets.Store
	miner      *patterns.Miner
	detector   *enhance.Detector
	correlator *correlate.Correlator
	events     *telemetry.Log
	latency    *utils.LatencyTracker
	wc         verify.WorkingContext
	opts       Options

	mu         sync.Mutex
	cycleCount int
	lastReport *CycleReport
}

// NewHealService assembles the cycle facade.
func NewHealService(
	logger *slog.Logger,
	pipeline *engine.Pipeline,
	remedyEng *remedy.Engine,
	deduplicator *dedup.Deduplicator,
	store *tickets.Store,
	miner *patterns.Miner,
	detector *enhance.Detector,
	correlator *correlate.Correlator,
	events *telemetry.Log,
	wc verify.WorkingContext,
	opts Options,
) *HealService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxGroupSize <= 0 {
		opts.MaxGroupSize = dedup.DefaultMaxGroupSize
	}
	if opts.TicketRetention <= 0 {
		opts.TicketRetention = tickets.DefaultRetention
	}
	return &HealService{
		logger:     logger,
		pipeline:   pipeline,
		remedyEng:  remedyEng,
		dedup:      deduplicator,
		grouper:    dedup.NewGrouper(opts.GroupStrategy, opts.MaxGroupSize),
		store:      store,
		miner:      miner,
		detector:   detector,
		correlator: correlator,
		events:     events,
		latency:    utils.NewLatencyTracker(256),
		wc:         wc,
		opts:       opts,
	}
}

// RunCycle processes one snapshot against the retained history. history is
// ordered oldest first and already includes the snapshot itself.
func (s *HealService) RunCycle(ctx context.Context, snapshot models.HealthSnapshot, history []models.HealthSnapshot) CycleReport {
	start := time.Now()
	report := CycleReport{
		SnapshotID:   snapshot.ID,
		StartedAt:    start.UTC(),
		Remediations: []models.RemediationResult{},
		Alerts:       []models.PredictiveAlert{},
		Suggestions:  []models.EnhancementSuggestion{},
	}

	verification := s.pipeline.Run(ctx, snapshot.Issues, s.wc)
	report.Verification = verification
	if verification.Skipped {
		report.Skipped = true
		report.SkipReason = verification.SkipReason
		report.Duration = time.Since(start)
		metrics.ObserveGuardRejection()
		metrics.ObserveCycle(report.Duration, metrics.OutcomeSkipped)
		s.finish(&report)
		return report
	}
	for _, v := range verification.Verified {
		metrics.ObserveVerification(string(v.Layer), v.Verified)
	}

	s.fileTickets(&report, verification.Verified)
	s.autoRemediate(ctx, &report, verification.Verified)
	s.analyze(&report, history)
	s.minePatterns(ctx, &report, history)

	report.Duration = time.Since(start)
	metrics.ObserveCycle(report.Duration, metrics.OutcomeSuccess)
	s.finish(&report)
	return report
}

// fileTickets runs dedup and grouping over verified issues and writes the
// survivors to the ticket store.
func (s *HealService) fileTickets(report *CycleReport, verified []models.VerifiedIssue) {
	if len(verified) == 0 {
		return
	}
	existing, err := s.store.Existing()
	if err != nil {
		s.logger.Warn("ticket store unreadable, filing without dedup", slog.Any("error", err))
		existing = nil
	}

	now := time.Now().UTC()
	var toFile []models.VerifiedIssue
	refresh := map[string]bool{}
	for _, v := range verified {
		switch s.dedup.Check(v.Issue, existing, now) {
		case dedup.DecisionSuppress:
			report.TicketsSuppressed++
		case dedup.DecisionRefresh:
			refresh[dedup.FingerprintHash(v.Issue)] = true
			toFile = append(toFile, v)
		default:
			toFile = append(toFile, v)
		}
	}
	metrics.ObserveSuppressed(report.TicketsSuppressed)
	if len(toFile) == 0 {
		return
	}

	for _, t := range s.buildTickets(toFile, now) {
		needsRefresh := false
		for _, hash := range t.Fingerprints {
			if refresh[hash] {
				needsRefresh = true
				break
			}
		}

		var err error
		if needsRefresh {
			_, err = s.store.Refresh(t)
		} else {
			_, err = s.store.Create(t)
		}
		switch {
		case errors.Is(err, tickets.ErrDuplicate):
			report.TicketsSuppressed += len(t.Issues)
		case err != nil:
			s.logger.Warn("ticket write failed", slog.String("agent", t.Agent), slog.Any("error", err))
		default:
			report.TicketsWritten++
		}
	}
}

// buildTickets converts the surviving issues into store artifacts, combined
// per group when grouping is enabled.
func (s *HealService) buildTickets(issues []models.VerifiedIssue, now time.Time) []tickets.Ticket {
	if !s.opts.GroupingEnabled {
		out := make([]tickets.Ticket, 0, len(issues))
		for _, v := range issues {
			out = append(out, tickets.Ticket{
				Agent:        v.AssignedAgent,
				Priority:     v.Priority,
				Layer:        v.Layer,
				Summary:      v.Issue.Description,
				Issues:       []models.VerifiedIssue{v},
				Fingerprints: []string{dedup.FingerprintHash(v.Issue)},
				CreatedAt:    now,
			})
		}
		return out
	}

	groups := s.grouper.Group(issues)
	out := make([]tickets.Ticket, 0, len(groups))
	for _, group := range groups {
		first := group.Issues[0]
		hashes := make([]string, 0, len(group.Issues))
		for _, v := range group.Issues {
			hashes = append(hashes, dedup.FingerprintHash(v.Issue))
		}
		out = append(out, tickets.Ticket{
			Agent:        first.AssignedAgent,
			Priority:     highestPriority(group.Issues),
			Layer:        first.Layer,
			Summary:      fmt.Sprintf("%d verified issues for %s (part %d)", len(group.Issues), group.Key, group.Part),
			Issues:       group.Issues,
			Fingerprints: hashes,
			GroupKey:     group.Key,
			Part:         group.Part,
			CreatedAt:    now,
		})
	}
	return out
}

func highestPriority(issues []models.VerifiedIssue) int {
	best := issues[0].Priority
	for _, v := range issues[1:] {
		if v.Priority < best {
			best = v.Priority
		}
	}
	return best
}

// autoRemediate attempts scenario fixes for auto-apply issues.
func (s *HealService) autoRemediate(ctx context.Context, report *CycleReport, verified []models.VerifiedIssue) {
	for _, v := range verified {
		if !v.AutoApply {
			continue
		}
		result := s.remedyEng.Remediate(ctx, dedup.FingerprintHash(v.Issue), v.Issue, s.wc)
		report.Remediations = append(report.Remediations, result)
		metrics.ObserveRemediation(result.Scenario, result.Success)
		if err := s.events.RecordRemediation(result, result.Success); err != nil {
			s.logger.Warn("remediation telemetry failed", slog.Any("error", err))
		}
	}
}

// analyze runs the correlator over the snapshot window and emits alerts.
func (s *HealService) analyze(report *CycleReport, history []models.HealthSnapshot) {
	analysis := s.correlator.Analyze(history)
	report.Correlations = len(analysis.Correlations)
	report.Trends = len(analysis.DegradationTrends)
	report.Alerts = analysis.PredictiveAlerts

	for _, alert := range analysis.PredictiveAlerts {
		metrics.ObserveAlert(string(alert.Type))
		if err := s.events.Record(telemetry.EventAlert, alert); err != nil {
			s.logger.Warn("alert telemetry failed", slog.Any("error", err))
		}
	}
}

// minePatterns aggregates recurring issues and proposes enhancements.
func (s *HealService) minePatterns(ctx context.Context, report *CycleReport, history []models.HealthSnapshot) {
	mined, err := s.miner.Mine(ctx, history)
	if err != nil {
		s.logger.Warn("pattern mining failed", slog.Any("error", err))
		return
	}
	suggestions := s.detector.Detect(ctx, mined)
	report.Suggestions = suggestions
	for _, suggestion := range suggestions {
		if err := s.events.Record(telemetry.EventSuggestion, suggestion); err != nil {
			s.logger.Warn("suggestion telemetry failed", slog.Any("error", err))
		}
	}
}

// finish records the cycle, tracks latency and stores the status snapshot.
func (s *HealService) finish(report *CycleReport) {
	s.latency.Observe(report.Duration)
	p95 := s.latency.Percentile(95)
	if err := s.events.RecordCycle(report, report.Duration, p95); err != nil {
		s.logger.Warn("cycle telemetry failed", slog.Any("error", err))
	}

	s.mu.Lock()
	s.cycleCount++
	count := s.cycleCount
	s.lastReport = report
	s.mu.Unlock()

	if count%p95LogEvery == 0 {
		s.logger.Info("cycle latency",
			slog.Int("cycles", count),
			slog.Duration("p95", p95))
	}
	s.logger.Info("cycle complete",
		slog.String("snapshot", report.SnapshotID),
		slog.Bool("skipped", report.Skipped),
		slog.Int("verified", len(report.Verification.Verified)),
		slog.Int("tickets", report.TicketsWritten),
		slog.Int("suppressed", report.TicketsSuppressed),
		slog.Int("alerts", len(report.Alerts)),
		slog.Duration("duration", report.Duration))
}

// Cleanup prunes expired tickets and fingerprint markers.
func (s *HealService) Cleanup(now time.Time) (int, error) {
	removed, err := s.store.Cleanup(now, s.opts.TicketRetention)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("ticket cleanup", slog.Int("removed", removed))
	}
	return removed, nil
}

// LastReport returns the most recent cycle report, or nil before the first
// cycle.
func (s *HealService) LastReport() *CycleReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}
