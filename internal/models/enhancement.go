package models

import "time"

// RootCausePattern is a recurring failure signature mined from snapshot
// history. Input to the enhancement detector.
type RootCausePattern struct {
	ID                  string    `json:"id"`
	Component           string    `json:"component"`
	Description         string    `json:"description"`
	Severity            Severity  `json:"severity"`
	Occurrences         int       `json:"occurrences"`
	OccurrencesPerWeek  float64   `json:"occurrences_per_week"`
	Confidence          float64   `json:"confidence"`
	ManualFixKnown      bool      `json:"manual_fix_known"`
	ManualFixMinutes    float64   `json:"manual_fix_minutes,omitempty"`
	SecondaryRootCauses []string  `json:"secondary_root_causes,omitempty"`
	FirstSeen           time.Time `json:"first_seen"`
	LastSeen            time.Time `json:"last_seen"`
}

// EnhancementCategory buckets improvement proposals.
type EnhancementCategory string

const (
	CategoryAutoRemediation EnhancementCategory = "auto_remediation"
	CategoryMonitoring      EnhancementCategory = "monitoring"
	CategoryPerformance     EnhancementCategory = "performance"
	CategoryReliability     EnhancementCategory = "reliability"
	CategorySecurity        EnhancementCategory = "security"
)

// ApprovalTier is the human-in-the-loop policy gating an enhancement.
type ApprovalTier int

const (
	// TierAutoApply executes without human confirmation.
	TierAutoApply ApprovalTier = 1
	// TierPrompt asks an operator interactively.
	TierPrompt ApprovalTier = 2
	// TierManualReview files the proposal for offline triage.
	TierManualReview ApprovalTier = 3
)

// ROIEstimate quantifies the expected payoff of an enhancement.
type ROIEstimate struct {
	HoursSavedPerWeek       float64 `json:"hours_saved_per_week"`
	InterventionsEliminated float64 `json:"interventions_eliminated"`
	ReliabilityDelta        float64 `json:"reliability_delta"`
	Ratio                   float64 `json:"ratio"`
}

// EnhancementSuggestion is an improvement proposal derived from a recurring
// root-cause pattern, gated by the three-tier approval policy.
type EnhancementSuggestion struct {
	ID                  string              `json:"id"`
	Title               string              `json:"title"`
	Description         string              `json:"description"`
	Category            EnhancementCategory `json:"category"`
	Priority            int                 `json:"priority"`
	Confidence          float64             `json:"confidence"`
	PatternID           string              `json:"pattern_id"`
	ImplementationSteps []string            `json:"implementation_steps"`
	EffortHours         float64             `json:"effort_hours"`
	AssignedAgent       string              `json:"assigned_agent"`
	ROI                 ROIEstimate         `json:"roi"`
	Evidence            []string            `json:"evidence,omitempty"`
	Tier                ApprovalTier        `json:"tier"`
	ApprovalRequired    bool                `json:"approval_required"`
	ApprovalReason      string              `json:"approval_reason,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
}
