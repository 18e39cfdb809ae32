package models

import "time"

// LayerClassification is the classifier's verdict for one issue. Derived
// deterministically; cached only for the lifetime of one pipeline run.
type LayerClassification struct {
	Layer           Layer    `json:"layer"`
	Confidence      float64  `json:"confidence"`
	MatchedPatterns []string `json:"matched_patterns,omitempty"`
	Reasoning       string   `json:"reasoning"`
}

// EvidenceItem records one falsifiable check a verifier performed.
type EvidenceItem struct {
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// VerificationOutcome is what a ground-truth verifier returns for one issue.
type VerificationOutcome struct {
	Verified       bool           `json:"verified"`
	Confidence     float64        `json:"confidence"`
	Evidence       []EvidenceItem `json:"evidence,omitempty"`
	RecommendedFix string         `json:"recommended_fix,omitempty"`
}

// VerifiedIssue is the pipeline's record for an issue that passed
// chain-of-verification. Immutable once produced.
type VerifiedIssue struct {
	Issue          Issue               `json:"issue"`
	Layer          Layer               `json:"layer"`
	Classification LayerClassification `json:"classification"`
	Verified       bool                `json:"verified"`
	Confidence     float64             `json:"confidence"`
	Evidence       []EvidenceItem      `json:"evidence,omitempty"`
	AssignedAgent  string              `json:"assigned_agent"`
	AutoApply      bool                `json:"auto_apply"`
	Priority       int                 `json:"priority"`
	CreatedAt      time.Time           `json:"created_at"`
}

// LayerStats aggregates verification results for one layer.
type LayerStats struct {
	Issues        int     `json:"issues"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// VerificationReport partitions a batch into verified and unverified issues
// with aggregate statistics.
type VerificationReport struct {
	RunID        string               `json:"run_id"`
	Skipped      bool                 `json:"skipped"`
	SkipReason   string               `json:"skip_reason,omitempty"`
	Verified     []VerifiedIssue      `json:"verified"`
	Unverified   []Issue              `json:"unverified"`
	ByLayer      map[Layer]LayerStats `json:"by_layer,omitempty"`
	AutoApply    int                  `json:"auto_apply"`
	ManualReview int                  `json:"manual_review"`
	StartedAt    time.Time            `json:"started_at"`
	Duration     time.Duration        `json:"duration"`
}
