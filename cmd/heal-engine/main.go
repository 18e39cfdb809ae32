package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sentinelstack/sentinel-heal/internal/api"
	"github.com/sentinelstack/sentinel-heal/internal/cache"
	"github.com/sentinelstack/sentinel-heal/internal/classify"
	"github.com/sentinelstack/sentinel-heal/internal/config"
	"github.com/sentinelstack/sentinel-heal/internal/correlate"
	"github.com/sentinelstack/sentinel-heal/internal/dedup"
	"github.com/sentinelstack/sentinel-heal/internal/engine"
	"github.com/sentinelstack/sentinel-heal/internal/enhance"
	"github.com/sentinelstack/sentinel-heal/internal/metrics"
	"github.com/sentinelstack/sentinel-heal/internal/models"
	"github.com/sentinelstack/sentinel-heal/internal/orchestrator"
	"github.com/sentinelstack/sentinel-heal/internal/patterns"
	"github.com/sentinelstack/sentinel-heal/internal/remedy"
	"github.com/sentinelstack/sentinel-heal/internal/repo"
	"github.com/sentinelstack/sentinel-heal/internal/services"
	"github.com/sentinelstack/sentinel-heal/internal/telemetry"
	"github.com/sentinelstack/sentinel-heal/internal/tickets"
	"github.com/sentinelstack/sentinel-heal/internal/utils"
	"github.com/sentinelstack/sentinel-heal/internal/verify"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "heal-engine",
		Short:         "Self-healing control loop for platform health snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newCycleCmd(&configPath))
	return root
}

// app holds the assembled component graph shared by the daemon and the
// one-shot cycle command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	source *repo.HealthSourceClient
	svc    *services.HealService
	closer func()
}

func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	// In-process cache unless Valkey is configured and reachable.
	var cacheProvider cache.Provider = cache.NewMemoryProvider()
	var cacheCloser cache.Provider
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable, using in-process cache", slog.Any("error", err))
		} else {
			cacheProvider = provider
			cacheCloser = provider
		}
	}

	source := repo.NewHealthSourceClient(cfg.HealthSource.BaseURL, cfg.HealthSource.Timeout)
	learnings := repo.NewLearningsClient(cfg.Learnings.BaseURL, cfg.Learnings.Timeout, cacheProvider, cfg.Learnings.SearchTTL)

	prefs, err := verify.LoadPreferences(cfg.Workspace.PreferencesFile)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	wc := verify.WorkingContext{
		Root:          cfg.Workspace.Root,
		FrameworkRepo: cfg.Workspace.FrameworkRepo,
		FrameworkDir:  cfg.Workspace.FrameworkDir,
		History:       verify.ExecGitHistory{Root: cfg.Workspace.Root},
		Prefs:         prefs,
		CheckTimeout:  cfg.Verification.CheckTimeout,
	}

	pipeline := engine.NewPipeline(
		logger,
		classify.New(),
		verify.NewGuard(cfg.Guard.MaxSessions, logger),
		engine.AutoApplyThresholds{
			Framework: cfg.Verification.AutoApplyFramework,
			Project:   cfg.Verification.AutoApplyProject,
			Context:   cfg.Verification.AutoApplyContext,
		},
		verify.NewFrameworkVerifier(logger),
		verify.NewProjectVerifier(logger),
		verify.NewPreferenceVerifier(logger),
	)
	pipeline.SetConcurrency(cfg.Verification.Concurrency)

	remedyEng, err := remedy.NewEngine(logger, cfg.Remediation.DryRun, remedy.BuiltinScenarios())
	if err != nil {
		return nil, fmt.Errorf("remediation engine: %w", err)
	}

	store, err := tickets.NewStore(logger, cfg.Tickets.Dir)
	if err != nil {
		return nil, fmt.Errorf("ticket store: %w", err)
	}

	events, err := telemetry.NewLog(logger, cfg.Telemetry.Dir)
	if err != nil {
		return nil, fmt.Errorf("telemetry log: %w", err)
	}

	correlatorOpts := correlate.DefaultOptions()
	correlatorOpts.MinSnapshots = cfg.Correlate.MinSnapshots
	correlatorOpts.CorrelationThreshold = cfg.Correlate.CorrelationThreshold
	correlatorOpts.CriticalThreshold = cfg.Correlate.CriticalThreshold

	svc := services.NewHealService(
		logger,
		pipeline,
		remedyEng,
		dedup.New(cfg.Tickets.StalenessWindow),
		store,
		patterns.NewMiner(logger, learnings),
		enhance.NewDetector(logger, learnings, enhance.Options{
			MinConfidence:   cfg.Enhancements.MinConfidence,
			MinOccurrences:  cfg.Enhancements.MinOccurrences,
			Tier1Confidence: cfg.Enhancements.Tier1Confidence,
			Tier2Confidence: cfg.Enhancements.Tier2Confidence,
		}),
		correlate.New(logger, correlatorOpts),
		events,
		wc,
		services.Options{
			GroupingEnabled: cfg.Tickets.GroupingEnabled,
			GroupStrategy:   dedup.GroupStrategy(cfg.Tickets.GroupingStrategy),
			MaxGroupSize:    cfg.Tickets.MaxGroupSize,
			TicketRetention: cfg.Tickets.Retention,
		},
	)

	return &app{
		cfg:    cfg,
		logger: logger,
		source: source,
		svc:    svc,
		closer: func() {
			if cacheCloser != nil {
				cacheCloser.Close()
			}
		},
	}, nil
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduled health and cleanup cycles until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer a.closer()

			logger := a.logger
			logger.Info("starting sentinel-heal",
				slog.String("address", a.cfg.Server.Address),
				slog.Duration("health_interval", a.cfg.Scheduler.HealthInterval))

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sched := orchestrator.New(logger, a.source, a.svc, orchestrator.Options{
				HealthInterval:  a.cfg.Scheduler.HealthInterval,
				CleanupInterval: a.cfg.Scheduler.CleanupInterval,
				MaxHistory:      a.cfg.History.MaxSnapshots,
			})
			if history, err := a.source.FetchHistory(ctx, a.cfg.History.MaxSnapshots); err != nil {
				logger.Warn("history preload failed", slog.Any("error", err))
			} else {
				sched.Seed(history)
			}

			server, err := api.NewServer(a.cfg.Server, a.svc, prometheus.DefaultGatherer)
			if err != nil {
				return fmt.Errorf("admin server: %w", err)
			}
			go func() {
				if serveErr := server.Start(); serveErr != nil {
					logger.Error("admin server exited", slog.Any("error", serveErr))
					stop()
				}
			}()

			sched.Run(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.GracefulTimeout)
			defer cancel()
			server.Shutdown(shutdownCtx)

			// Give remaining goroutines time to finish logging.
			time.Sleep(100 * time.Millisecond)
			logger.Info("sentinel-heal stopped")
			return nil
		},
	}
}

func newCycleCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run a single health cycle and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer a.closer()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			snapshot, err := a.source.FetchLatest(ctx)
			if err != nil {
				return fmt.Errorf("fetch snapshot: %w", err)
			}
			history, err := a.source.FetchHistory(ctx, a.cfg.History.MaxSnapshots)
			if err != nil {
				a.logger.Warn("history fetch failed, analyzing single snapshot", slog.Any("error", err))
				history = nil
			}
			history = appendSnapshot(history, snapshot)

			report := a.svc.RunCycle(ctx, snapshot, history)

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

// appendSnapshot ensures the window ends with the snapshot under analysis
// without duplicating it when the history endpoint already includes it.
func appendSnapshot(history []models.HealthSnapshot, snapshot models.HealthSnapshot) []models.HealthSnapshot {
	if n := len(history); n > 0 && snapshot.ID != "" && history[n-1].ID == snapshot.ID {
		return history
	}
	return append(history, snapshot)
}
