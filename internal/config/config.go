// Package config loads the engine's settings from YAML with environment
// overrides. Every knob has a default so the engine boots with no file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the heal engine.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	HealthSource HealthSourceConfig `yaml:"healthSource"`
	Learnings    LearningsConfig    `yaml:"learnings"`
	Verification VerificationConfig `yaml:"verification"`
	Guard        GuardConfig        `yaml:"guard"`
	Tickets      TicketsConfig      `yaml:"tickets"`
	Remediation  RemediationConfig  `yaml:"remediation"`
	Correlate    CorrelateConfig    `yaml:"correlate"`
	Enhancements EnhancementsConfig `yaml:"enhancements"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	History      HistoryConfig      `yaml:"history"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Workspace    WorkspaceConfig    `yaml:"workspace"`
	Logging      LoggingConfig      `yaml:"logging"`
	Cache        CacheConfig        `yaml:"cache"`
}

// ServerConfig controls the admin HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// HealthSourceConfig configures the snapshot collaborator.
type HealthSourceConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
}

// LearningsConfig configures the historical-learnings lookup.
type LearningsConfig struct {
	BaseURL   string        `yaml:"baseURL"`
	Timeout   time.Duration `yaml:"timeout"`
	SearchTTL time.Duration `yaml:"searchTTL"`
}

// VerificationConfig holds the per-layer auto-apply thresholds.
type VerificationConfig struct {
	AutoApplyFramework float64       `yaml:"autoApplyFramework"`
	AutoApplyProject   float64       `yaml:"autoApplyProject"`
	AutoApplyContext   float64       `yaml:"autoApplyContext"`
	CheckTimeout       time.Duration `yaml:"checkTimeout"`
	Concurrency        int           `yaml:"concurrency"`
}

// GuardConfig bounds concurrent pipeline runs.
type GuardConfig struct {
	MaxSessions int `yaml:"maxSessions"`
}

// TicketsConfig controls the ticket store and dedup/grouping policy.
type TicketsConfig struct {
	Dir              string        `yaml:"dir"`
	GroupingEnabled  bool          `yaml:"groupingEnabled"`
	GroupingStrategy string        `yaml:"groupingStrategy"`
	MaxGroupSize     int           `yaml:"maxGroupSize"`
	StalenessWindow  time.Duration `yaml:"stalenessWindow"`
	Retention        time.Duration `yaml:"retention"`
}

// RemediationConfig controls scenario execution.
type RemediationConfig struct {
	DryRun bool `yaml:"dryRun"`
}

// CorrelateConfig tunes statistical analysis.
type CorrelateConfig struct {
	MinSnapshots         int     `yaml:"minSnapshots"`
	CorrelationThreshold float64 `yaml:"correlationThreshold"`
	CriticalThreshold    float64 `yaml:"criticalThreshold"`
}

// EnhancementsConfig gates improvement proposals.
type EnhancementsConfig struct {
	MinConfidence   float64 `yaml:"minConfidence"`
	MinOccurrences  int     `yaml:"minOccurrences"`
	Tier1Confidence float64 `yaml:"tier1Confidence"`
	Tier2Confidence float64 `yaml:"tier2Confidence"`
}

// SchedulerConfig sets the two cycle intervals.
type SchedulerConfig struct {
	HealthInterval  time.Duration `yaml:"healthInterval"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
}

// HistoryConfig bounds the retained snapshot window.
type HistoryConfig struct {
	MaxSnapshots int `yaml:"maxSnapshots"`
}

// TelemetryConfig locates the event log directory.
type TelemetryConfig struct {
	Dir string `yaml:"dir"`
}

// WorkspaceConfig describes the working context verifiers operate in.
type WorkspaceConfig struct {
	Root            string `yaml:"root"`
	FrameworkRepo   bool   `yaml:"frameworkRepo"`
	FrameworkDir    string `yaml:"frameworkDir"`
	PreferencesFile string `yaml:"preferencesFile"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Valkey-backed caching of learnings lookups.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// Load initialises Config from a YAML file and environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SENTINEL_HEAL_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8410",
			GracefulTimeout: 10 * time.Second,
		},
		HealthSource: HealthSourceConfig{Timeout: 10 * time.Second},
		Learnings: LearningsConfig{
			Timeout:   5 * time.Second,
			SearchTTL: 10 * time.Minute,
		},
		Verification: VerificationConfig{
			AutoApplyFramework: 90,
			AutoApplyProject:   90,
			AutoApplyContext:   95,
			CheckTimeout:       10 * time.Second,
			Concurrency:        4,
		},
		Guard: GuardConfig{MaxSessions: 3},
		Tickets: TicketsConfig{
			Dir:              "tickets",
			GroupingEnabled:  true,
			GroupingStrategy: "agent",
			MaxGroupSize:     10,
			StalenessWindow:  24 * time.Hour,
			Retention:        168 * time.Hour,
		},
		Correlate: CorrelateConfig{
			MinSnapshots:         3,
			CorrelationThreshold: 0.7,
			CriticalThreshold:    70,
		},
		Enhancements: EnhancementsConfig{
			MinConfidence:   70,
			MinOccurrences:  3,
			Tier1Confidence: 95,
			Tier2Confidence: 80,
		},
		Scheduler: SchedulerConfig{
			HealthInterval:  30 * time.Minute,
			CleanupInterval: 6 * time.Hour,
		},
		History:   HistoryConfig{MaxSnapshots: 48},
		Telemetry: TelemetryConfig{Dir: "telemetry"},
		Workspace: WorkspaceConfig{Root: "."},
		Logging:   LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	setString("SENTINEL_HEAL_SERVER_ADDRESS", &cfg.Server.Address)
	setString("SENTINEL_HEAL_HEALTH_SOURCE_URL", &cfg.HealthSource.BaseURL)
	setString("SENTINEL_HEAL_LEARNINGS_URL", &cfg.Learnings.BaseURL)
	setString("SENTINEL_HEAL_TICKETS_DIR", &cfg.Tickets.Dir)
	setString("SENTINEL_HEAL_TELEMETRY_DIR", &cfg.Telemetry.Dir)
	setString("SENTINEL_HEAL_WORKSPACE_ROOT", &cfg.Workspace.Root)
	setString("SENTINEL_HEAL_PREFERENCES_FILE", &cfg.Workspace.PreferencesFile)
	setString("SENTINEL_HEAL_GROUPING_STRATEGY", &cfg.Tickets.GroupingStrategy)
	setString("SENTINEL_HEAL_LOG_LEVEL", &cfg.Logging.Level)
	setString("SENTINEL_HEAL_CACHE_ADDR", &cfg.Cache.Addr)
	setString("SENTINEL_HEAL_CACHE_PASSWORD", &cfg.Cache.Password)

	setBool("SENTINEL_HEAL_FRAMEWORK_REPO", &cfg.Workspace.FrameworkRepo)
	setBool("SENTINEL_HEAL_GROUPING_ENABLED", &cfg.Tickets.GroupingEnabled)
	setBool("SENTINEL_HEAL_REMEDIATION_DRY_RUN", &cfg.Remediation.DryRun)
	setBool("SENTINEL_HEAL_CACHE_ENABLED", &cfg.Cache.Enabled)

	setInt("SENTINEL_HEAL_GUARD_MAX_SESSIONS", &cfg.Guard.MaxSessions)
	setInt("SENTINEL_HEAL_MAX_GROUP_SIZE", &cfg.Tickets.MaxGroupSize)
	setInt("SENTINEL_HEAL_MIN_SNAPSHOTS", &cfg.Correlate.MinSnapshots)
	setInt("SENTINEL_HEAL_MIN_OCCURRENCES", &cfg.Enhancements.MinOccurrences)
	setInt("SENTINEL_HEAL_HISTORY_MAX_SNAPSHOTS", &cfg.History.MaxSnapshots)
	setInt("SENTINEL_HEAL_CACHE_DB", &cfg.Cache.DB)

	setFloat("SENTINEL_HEAL_AUTO_APPLY_FRAMEWORK", &cfg.Verification.AutoApplyFramework)
	setFloat("SENTINEL_HEAL_AUTO_APPLY_PROJECT", &cfg.Verification.AutoApplyProject)
	setFloat("SENTINEL_HEAL_AUTO_APPLY_CONTEXT", &cfg.Verification.AutoApplyContext)
	setFloat("SENTINEL_HEAL_CORRELATION_THRESHOLD", &cfg.Correlate.CorrelationThreshold)
	setFloat("SENTINEL_HEAL_CRITICAL_THRESHOLD", &cfg.Correlate.CriticalThreshold)
	setFloat("SENTINEL_HEAL_MIN_CONFIDENCE", &cfg.Enhancements.MinConfidence)
	setFloat("SENTINEL_HEAL_TIER1_CONFIDENCE", &cfg.Enhancements.Tier1Confidence)
	setFloat("SENTINEL_HEAL_TIER2_CONFIDENCE", &cfg.Enhancements.Tier2Confidence)

	setDuration("SENTINEL_HEAL_HEALTH_INTERVAL", &cfg.Scheduler.HealthInterval)
	setDuration("SENTINEL_HEAL_CLEANUP_INTERVAL", &cfg.Scheduler.CleanupInterval)
	setDuration("SENTINEL_HEAL_STALENESS_WINDOW", &cfg.Tickets.StalenessWindow)
	setDuration("SENTINEL_HEAL_TICKET_RETENTION", &cfg.Tickets.Retention)
	setDuration("SENTINEL_HEAL_CHECK_TIMEOUT", &cfg.Verification.CheckTimeout)

	if v := os.Getenv("SENTINEL_HEAL_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}

func setString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func setBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		*target = strings.EqualFold(v, "true") || v == "1"
	}
}

func setInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func setFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

func setDuration(key string, target *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}
