package correlate

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelstack/sentinel-heal/internal/models"
)

func snapshotAt(ts time.Time, overall float64, components map[string]models.ComponentHealth) models.HealthSnapshot {
	return models.HealthSnapshot{
		OverallScore: overall,
		Components:   components,
		Timestamp:    ts,
	}
}

func TestPearsonSymmetry(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 5, 4, 5}
	assert.InDelta(t, pearson(a, b), pearson(b, a), 1e-12)
}

func TestPearsonPerfectCorrelation(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{10, 20, 30, 40}
	assert.InDelta(t, 1.0, pearson(a, b), 1e-9)

	inverted := []float64{40, 30, 20, 10}
	assert.InDelta(t, -1.0, pearson(a, inverted), 1e-9)
}

func TestPearsonNoVariance(t *testing.T) {
	assert.Equal(t, 0.0, pearson([]float64{1, 1, 1}, []float64{1, 2, 3}))
}

func TestFitLinePerfectIncrease(t *testing.T) {
	// Regression sanity: [10,20,30,40] at unit steps is increasing with
	// R² ≈ 1 and positive rate.
	fit := fitLine([]float64{0, 1, 2, 3}, []float64{10, 20, 30, 40})
	assert.InDelta(t, 10.0, fit.slope, 1e-9)
	assert.InDelta(t, 1.0, fit.r2, 1e-9)
}

func TestFitLineFlat(t *testing.T) {
	fit := fitLine([]float64{0, 1, 2}, []float64{5, 5, 5})
	assert.Equal(t, 0.0, fit.slope)
}

func TestAnalyzeInsufficientData(t *testing.T) {
	c := New(nil, DefaultOptions())
	base := time.Now()
	result := c.Analyze([]models.HealthSnapshot{
		snapshotAt(base, 90, nil),
		snapshotAt(base.Add(30*time.Minute), 85, nil),
	})

	assert.Equal(t, 2, result.HealthChecksAnalyzed)
	assert.Empty(t, result.Correlations)
	assert.Empty(t, result.DegradationTrends)
	assert.Empty(t, result.PredictiveAlerts)
	require.NotNil(t, result.Correlations)
	require.NotNil(t, result.DegradationTrends)
	require.NotNil(t, result.PredictiveAlerts)
}

func TestAnalyzeDetectsIncreasingTrend(t *testing.T) {
	c := New(nil, DefaultOptions())
	base := time.Now()
	var snaps []models.HealthSnapshot
	for i, v := range []float64{10, 20, 30, 40} {
		snaps = append(snaps, snapshotAt(base.Add(time.Duration(i)*time.Hour), 90, map[string]models.ComponentHealth{
			"worker": {Score: 90, Metrics: map[string]float64{"queue_depth": v}},
		}))
	}

	result := c.Analyze(snaps)
	var found *models.DegradationTrend
	for i := range result.DegradationTrends {
		tr := result.DegradationTrends[i]
		if tr.Component == "worker" && tr.Metric == "queue_depth" {
			found = &tr
		}
	}
	require.NotNil(t, found, "expected queue_depth trend")
	assert.Equal(t, models.TrendIncreasing, found.Direction)
	assert.InDelta(t, 100, found.Confidence, 1e-6) // R² ≈ 1.0
	assert.Greater(t, found.RatePerHourPct, 0.0)
	assert.InDelta(t, 50, found.Predicted1h, 1e-6)
	assert.Nil(t, found.BreachETAHours, "increasing series cannot breach downward")
}

func TestAnalyzeStableSeriesDropped(t *testing.T) {
	c := New(nil, DefaultOptions())
	base := time.Now()
	var snaps []models.HealthSnapshot
	for i := 0; i < 4; i++ {
		snaps = append(snaps, snapshotAt(base.Add(time.Duration(i)*time.Hour), 90, map[string]models.ComponentHealth{
			"db": {Score: 88},
		}))
	}

	result := c.Analyze(snaps)
	assert.Empty(t, result.DegradationTrends)
}

func TestAnalyzeCorrelationSymmetricAndSorted(t *testing.T) {
	c := New(nil, DefaultOptions())
	base := time.Now()
	var snaps []models.HealthSnapshot
	latency := []float64{100, 150, 200, 250, 300}
	errs := []float64{1, 2, 3, 4, 5}
	noise := []float64{5, 1, 9, 2, 7}
	for i := 0; i < 5; i++ {
		snaps = append(snaps, snapshotAt(base.Add(time.Duration(i)*time.Hour), 90, map[string]models.ComponentHealth{
			"api": {Score: 90, Metrics: map[string]float64{
				"latency_ms": latency[i],
				"error_rate": errs[i],
				"noise":      noise[i],
			}},
		}))
	}

	result := c.Analyze(snaps)
	require.NotEmpty(t, result.Correlations)
	for i := 1; i < len(result.Correlations); i++ {
		assert.GreaterOrEqual(t,
			math.Abs(result.Correlations[i-1].Coefficient),
			math.Abs(result.Correlations[i].Coefficient),
			"correlations must be sorted by descending |r|")
	}
	var pair *models.MetricCorrelation
	for i := range result.Correlations {
		corr := result.Correlations[i]
		if (corr.Metric1 == "api.latency_ms" && corr.Metric2 == "api.error_rate") ||
			(corr.Metric1 == "api.error_rate" && corr.Metric2 == "api.latency_ms") {
			pair = &corr
		}
	}
	require.NotNil(t, pair)
	assert.InDelta(t, 1.0, pair.Coefficient, 1e-9)
}

func TestAnalyzeThresholdBreachAlert(t *testing.T) {
	// overall_health falls from 95 to 79 in 40 minutes with everything else flat:
	// must raise a threshold_breach alert with eta < 24h and severity at
	// least high.
	c := New(nil, DefaultOptions())
	base := time.Now()
	overall := []float64{95, 91, 87, 83, 79}
	var snaps []models.HealthSnapshot
	for i, v := range overall {
		snaps = append(snaps, snapshotAt(base.Add(time.Duration(i)*10*time.Minute), v, map[string]models.ComponentHealth{
			"db": {Score: 90},
		}))
	}

	result := c.Analyze(snaps)

	var breach *models.PredictiveAlert
	for i := range result.PredictiveAlerts {
		alert := result.PredictiveAlerts[i]
		if alert.Type == models.AlertThresholdBreach {
			breach = &alert
			break
		}
	}
	require.NotNil(t, breach, "expected a threshold_breach alert")
	assert.Less(t, breach.ETAHours, 24.0)
	assert.GreaterOrEqual(t, breach.Severity.Rank(), models.SeverityHigh.Rank())
	assert.Greater(t, breach.Confidence, 0.0)
}

func TestCascadeAlertForCorrelatedQuietMetric(t *testing.T) {
	c := New(nil, DefaultOptions())
	eta := 3.0
	trends := []models.DegradationTrend{
		{Component: "db", Metric: "score", Direction: models.TrendDecreasing, Severity: models.SeverityHigh, BreachETAHours: &eta, RatePerHourPct: -8, CurrentValue: 82, Confidence: 95},
	}
	correlations := []models.MetricCorrelation{
		{Metric1: "db.score", Metric2: "api.latency_ms", Coefficient: -0.92, Confidence: 92, Relationship: "negative"},
	}

	alerts := c.alerts(correlations, trends)

	var cascade *models.PredictiveAlert
	for i := range alerts {
		if alerts[i].Type == models.AlertCorrelationCascade {
			cascade = &alerts[i]
		}
	}
	require.NotNil(t, cascade, "expected a correlation_cascade alert")
	assert.Contains(t, cascade.Title, "api.latency_ms")
	assert.InDelta(t, eta+2, cascade.ETAHours, 1e-9)
	assert.Equal(t, models.SeverityMedium, cascade.Severity)
}

func TestNoCascadeWhenBothSidesTrend(t *testing.T) {
	c := New(nil, DefaultOptions())
	trends := []models.DegradationTrend{
		{Component: "db", Metric: "score", Direction: models.TrendDecreasing, Severity: models.SeverityLow, RatePerHourPct: -2, Confidence: 90},
		{Component: "api", Metric: "score", Direction: models.TrendDecreasing, Severity: models.SeverityLow, RatePerHourPct: -2, Confidence: 90},
	}
	correlations := []models.MetricCorrelation{
		{Metric1: "db.score", Metric2: "api.score", Coefficient: 0.99, Confidence: 99, Relationship: "positive"},
	}

	for _, alert := range c.alerts(correlations, trends) {
		assert.NotEqual(t, models.AlertCorrelationCascade, alert.Type)
	}
}

func TestAlertsSortedBySeverityThenETA(t *testing.T) {
	c := New(nil, DefaultOptions())
	eta1, eta2 := 3.0, 1.0
	trends := []models.DegradationTrend{
		{Component: "a", Metric: "score", Direction: models.TrendDecreasing, Severity: models.SeverityHigh, BreachETAHours: &eta1, RatePerHourPct: -6, Confidence: 90},
		{Component: "b", Metric: "score", Direction: models.TrendDecreasing, Severity: models.SeverityCritical, BreachETAHours: &eta2, RatePerHourPct: -20, Confidence: 95},
	}
	alerts := c.alerts(nil, trends)
	require.Len(t, alerts, 2)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, models.SeverityHigh, alerts[1].Severity)
}

func TestFlattenSeriesIncludesOverallHealth(t *testing.T) {
	base := time.Now()
	series := flattenSeries([]models.HealthSnapshot{
		snapshotAt(base, 90, map[string]models.ComponentHealth{"db": {Score: 80}}),
		snapshotAt(base.Add(time.Hour), 85, map[string]models.ComponentHealth{"db": {Score: 78}}),
	})

	names := make([]string, 0, len(series))
	for _, s := range series {
		names = append(names, s.Name())
	}
	assert.Contains(t, names, OverallHealthSeries)
	assert.Contains(t, names, "db.score")
}
