// Package orchestrator is the outer scheduling loop: it triggers periodic
// health cycles and an independent ticket-cleanup cycle. Cycles of the same
// kind never overlap; the two kinds may.
package orchestrator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sentinelstack/sentinel-heal/internal/models"
	"github.com/sentinelstack/sentinel-heal/internal/services"
)

// SnapshotSource produces health snapshots on demand.
type SnapshotSource interface {
	FetchLatest(ctx context.Context) (models.HealthSnapshot, error)
}

// Runner executes the two cycle kinds. Satisfied by services.HealService.
type Runner interface {
	RunCycle(ctx context.Context, snapshot models.HealthSnapshot, history []models.HealthSnapshot) services.CycleReport
	Cleanup(now time.Time) (int, error)
}

// Options sets the scheduling intervals and history window.
type Options struct {
	HealthInterval  time.Duration
	CleanupInterval time.Duration
	MaxHistory      int
}

func (o Options) normalized() Options {
	if o.HealthInterval <= 0 {
		o.HealthInterval = 30 * time.Minute
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = 6 * time.Hour
	}
	if o.MaxHistory <= 0 {
		o.MaxHistory = 48
	}
	return o
}

// Orchestrator owns the retained snapshot window and the two cycle timers.
type Orchestrator struct {
	logger *slog.Logger
	source SnapshotSource
	runner Runner
	opts   Options

	healthBusy  atomic.Bool
	cleanupBusy atomic.Bool

	history []models.HealthSnapshot
}

// New constructs an Orchestrator.
func New(logger *slog.Logger, source SnapshotSource, runner Runner, opts Options) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		logger: logger,
		source: source,
		runner: runner,
		opts:   opts.normalized(),
	}
}

// Seed preloads the snapshot window, typically from the source's history
// endpoint. Call before Run.
func (o *Orchestrator) Seed(snapshots []models.HealthSnapshot) {
	o.history = append(o.history[:0], snapshots...)
	if len(o.history) > o.opts.MaxHistory {
		o.history = o.history[len(o.history)-o.opts.MaxHistory:]
	}
}

// Run blocks until the context is cancelled. A health cycle fires
// immediately on start, then on every interval tick.
func (o *Orchestrator) Run(ctx context.Context) {
	healthTicker := time.NewTicker(o.opts.HealthInterval)
	defer healthTicker.Stop()
	cleanupTicker := time.NewTicker(o.opts.CleanupInterval)
	defer cleanupTicker.Stop()

	o.logger.Info("orchestrator started",
		slog.Duration("health_interval", o.opts.HealthInterval),
		slog.Duration("cleanup_interval", o.opts.CleanupInterval))

	o.RunHealthCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator stopping")
			return
		case <-healthTicker.C:
			go o.RunHealthCycle(ctx)
		case <-cleanupTicker.C:
			go o.RunCleanupCycle()
		}
	}
}

// RunHealthCycle fetches the latest snapshot and processes it. Returns false
// when a previous health cycle is still running or the fetch failed.
func (o *Orchestrator) RunHealthCycle(ctx context.Context) bool {
	if !o.healthBusy.CompareAndSwap(false, true) {
		o.logger.Warn("health cycle still running, tick skipped")
		return false
	}
	defer o.healthBusy.Store(false)

	snapshot, err := o.source.FetchLatest(ctx)
	if err != nil {
		o.logger.Error("snapshot fetch failed", slog.Any("error", err))
		return false
	}

	o.history = append(o.history, snapshot)
	if len(o.history) > o.opts.MaxHistory {
		o.history = o.history[len(o.history)-o.opts.MaxHistory:]
	}

	window := make([]models.HealthSnapshot, len(o.history))
	copy(window, o.history)
	o.runner.RunCycle(ctx, snapshot, window)
	return true
}

// RunCleanupCycle prunes expired tickets. Returns false when a previous
// cleanup is still running.
func (o *Orchestrator) RunCleanupCycle() bool {
	if !o.cleanupBusy.CompareAndSwap(false, true) {
		o.logger.Warn("cleanup cycle still running, tick skipped")
		return false
	}
	defer o.cleanupBusy.Store(false)

	if _, err := o.runner.Cleanup(time.Now().UTC()); err != nil {
		o.logger.Error("cleanup failed", slog.Any("error", err))
		return false
	}
	return true
}

// HistoryLen reports the retained window size.
func (o *Orchestrator) HistoryLen() int { return len(o.history) }
