package models

import "time"

// ScenarioContext scopes a remediation scenario to an execution context.
type ScenarioContext string

const (
	ScenarioFramework ScenarioContext = "framework"
	ScenarioProject   ScenarioContext = "project"
	// ScenarioShared scenarios apply regardless of layer.
	ScenarioShared ScenarioContext = "shared"
)

// RemediationResult is the structured outcome of one remediation attempt.
// Appended to telemetry; never mutated after creation.
type RemediationResult struct {
	Success     bool          `json:"success"`
	IssueID     string        `json:"issue_id"`
	Scenario    string        `json:"scenario,omitempty"`
	ActionTaken string        `json:"action_taken"`
	Confidence  float64       `json:"confidence"`
	Duration    time.Duration `json:"duration"`
	BeforeState string        `json:"before_state,omitempty"`
	AfterState  string        `json:"after_state,omitempty"`
	Learned     bool          `json:"learned"`
	NextSteps   []string      `json:"next_steps,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}
