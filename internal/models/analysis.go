package models

import "time"

// MetricCorrelation reports a statistically significant relationship between
// two metric series. Emitted only when |Coefficient| >= the configured
// threshold (default 0.7).
type MetricCorrelation struct {
	Metric1      string  `json:"metric1"`
	Metric2      string  `json:"metric2"`
	Coefficient  float64 `json:"coefficient"`
	Confidence   float64 `json:"confidence"`
	SampleSize   int     `json:"sample_size"`
	Relationship string  `json:"relationship"` // positive | negative
	Description  string  `json:"description"`
}

// TrendDirection tags the fitted slope sign of a series.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// DegradationTrend is an OLS-fitted directional change in one metric with
// extrapolated future values. Confidence is the regression R².
type DegradationTrend struct {
	Component      string         `json:"component"`
	Metric         string         `json:"metric"`
	Direction      TrendDirection `json:"direction"`
	RatePerHourPct float64        `json:"rate_per_hour_pct"`
	CurrentValue   float64        `json:"current_value"`
	Predicted1h    float64        `json:"predicted_1h"`
	Predicted24h   float64        `json:"predicted_24h"`
	// BreachETAHours is hours until the series crosses the critical
	// threshold; nil when no breach is projected.
	BreachETAHours *float64 `json:"breach_eta_hours,omitempty"`
	Severity       Severity `json:"severity"`
	Confidence     float64  `json:"confidence"`
}

// AlertType enumerates predictive alert categories.
type AlertType string

const (
	AlertThresholdBreach    AlertType = "threshold_breach"
	AlertCorrelationCascade AlertType = "correlation_cascade"
	AlertDegradationPattern AlertType = "degradation_pattern"
)

// PredictiveAlert warns about a projected problem before it happens.
type PredictiveAlert struct {
	ID                string    `json:"id"`
	Type              AlertType `json:"type"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Severity          Severity  `json:"severity"`
	ETAHours          float64   `json:"eta_hours"`
	Confidence        float64   `json:"confidence"`
	Evidence          []string  `json:"evidence,omitempty"`
	RecommendedAction string    `json:"recommended_action,omitempty"`
	AutoRemediable    bool      `json:"auto_remediable"`
	CreatedAt         time.Time `json:"created_at"`
}

// AnalysisResult bundles one correlator run. Callers can always treat the
// return value uniformly: insufficient history yields empty, non-nil slices.
type AnalysisResult struct {
	Correlations         []MetricCorrelation `json:"correlations"`
	DegradationTrends    []DegradationTrend  `json:"degradation_trends"`
	PredictiveAlerts     []PredictiveAlert   `json:"predictive_alerts"`
	HealthChecksAnalyzed int                 `json:"health_checks_analyzed"`
}
