package models

import "time"

// HealthSnapshot is one immutable monitoring cycle produced by the platform's
// health-check collaborator. The core consumes it read-only.
type HealthSnapshot struct {
	ID           string                     `json:"id"`
	OverallScore float64                    `json:"overall_score"`
	Components   map[string]ComponentHealth `json:"components"`
	Issues       []Issue                    `json:"issues"`
	Timestamp    time.Time                  `json:"timestamp"`
}

// ComponentHealth carries the per-component score, status and free-form
// numeric metrics reported for one subsystem.
type ComponentHealth struct {
	Score   float64            `json:"score"`
	Status  ComponentStatus    `json:"status"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// ComponentStatus enumerates reported component states.
type ComponentStatus string

const (
	StatusHealthy  ComponentStatus = "healthy"
	StatusDegraded ComponentStatus = "degraded"
	StatusFailing  ComponentStatus = "failing"
	StatusUnknown  ComponentStatus = "unknown"
)

// Issue is a single detector finding. Issues are created per snapshot and
// never mutated; the next snapshot's issue list supersedes them.
type Issue struct {
	Component        string   `json:"component"`
	Severity         Severity `json:"severity"`
	Description      string   `json:"description"`
	RootCause        string   `json:"root_cause,omitempty"`
	Confidence       float64  `json:"confidence,omitempty"`
	AutoFixAvailable bool     `json:"auto_fix_available"`
	Recommendation   string   `json:"recommendation,omitempty"`
}

// Severity captures impact levels.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for sorting; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Layer identifies the execution context an issue belongs to and therefore
// which verifier and remediation agent handle it.
type Layer string

const (
	// LayerFramework covers the automation platform's own infrastructure.
	LayerFramework Layer = "framework"
	// LayerProject covers the end-user project's application code.
	LayerProject Layer = "project"
	// LayerContext covers user/team/project preference context.
	LayerContext Layer = "context"
)

// Valid reports whether l is one of the three known layers.
func (l Layer) Valid() bool {
	switch l {
	case LayerFramework, LayerProject, LayerContext:
		return true
	}
	return false
}

// MetricPoint is a single (timestamp, value) sample.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MetricSeries is an ordered sample sequence for one named metric, derived
// from a window of snapshots. Transient; recomputed per analysis run.
type MetricSeries struct {
	Component string        `json:"component"`
	Metric    string        `json:"metric"`
	Points    []MetricPoint `json:"points"`
}

// Name returns the canonical series identifier.
func (s MetricSeries) Name() string {
	if s.Component == "" {
		return s.Metric
	}
	return s.Component + "." + s.Metric
}
