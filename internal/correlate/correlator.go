// Package correlate mines an ordered snapshot history for statistical
// correlations and degradation trends, and raises predictive alerts before a
// threshold is breached.
package correlate

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/sentinelstack/sentinel-heal/internal/models"
	"github.com/sentinelstack/sentinel-heal/internal/utils"
)

// Options tunes the correlator. Zero values fall back to defaults.
type Options struct {
	MinSnapshots         int
	CorrelationThreshold float64
	CriticalThreshold    float64
	SlopeEpsilon         float64
}

// DefaultOptions returns the stock analysis policy.
func DefaultOptions() Options {
	return Options{
		MinSnapshots:         3,
		CorrelationThreshold: 0.7,
		CriticalThreshold:    70,
		SlopeEpsilon:         0.01,
	}
}

func (o Options) normalized() Options {
	if o.MinSnapshots <= 0 {
		o.MinSnapshots = 3
	}
	if o.CorrelationThreshold <= 0 {
		o.CorrelationThreshold = 0.7
	}
	if o.CriticalThreshold <= 0 {
		o.CriticalThreshold = 70
	}
	if o.SlopeEpsilon <= 0 {
		o.SlopeEpsilon = 0.01
	}
	return o
}

// Correlator is a pure, read-only analysis over already-collected history.
type Correlator struct {
	logger *slog.Logger
	opts   Options
}

// New constructs a Correlator.
func New(logger *slog.Logger, opts Options) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{logger: logger, opts: opts.normalized()}
}

// Analyze runs correlation, trend fitting and alert synthesis over an ordered
// snapshot window. Fewer than MinSnapshots yields empty, non-nil result
// sets so callers can always treat the return uniformly.
func (c *Correlator) Analyze(snapshots []models.HealthSnapshot) models.AnalysisResult {
	result := models.AnalysisResult{
		Correlations:         []models.MetricCorrelation{},
		DegradationTrends:    []models.DegradationTrend{},
		PredictiveAlerts:     []models.PredictiveAlert{},
		HealthChecksAnalyzed: len(snapshots),
	}
	if len(snapshots) < c.opts.MinSnapshots {
		c.logger.Debug("insufficient history for analysis",
			slog.Int("snapshots", len(snapshots)),
			slog.Int("required", c.opts.MinSnapshots))
		return result
	}

	series := flattenSeries(snapshots)
	result.Correlations = c.correlations(series)
	result.DegradationTrends = c.trends(series)
	result.PredictiveAlerts = c.alerts(result.Correlations, result.DegradationTrends)

	c.logger.Info("history analysis complete",
		slog.Int("series", len(series)),
		slog.Int("correlations", len(result.Correlations)),
		slog.Int("trends", len(result.DegradationTrends)),
		slog.Int("alerts", len(result.PredictiveAlerts)))
	return result
}

// correlations computes Pearson coefficients for every unordered pair of
// equal-length series and keeps the strong ones, sorted by descending |r|.
func (c *Correlator) correlations(series []models.MetricSeries) []models.MetricCorrelation {
	out := []models.MetricCorrelation{}
	for i := 0; i < len(series); i++ {
		for j := i + 1; j < len(series); j++ {
			a, b := series[i], series[j]
			if len(a.Points) != len(b.Points) || len(a.Points) < c.opts.MinSnapshots {
				continue
			}
			r := pearson(values(a), values(b))
			if math.Abs(r) < c.opts.CorrelationThreshold {
				continue
			}
			relationship := "positive"
			if r < 0 {
				relationship = "negative"
			}
			out = append(out, models.MetricCorrelation{
				Metric1:      a.Name(),
				Metric2:      b.Name(),
				Coefficient:  r,
				Confidence:   math.Abs(r) * 100,
				SampleSize:   len(a.Points),
				Relationship: relationship,
				Description:  fmt.Sprintf("%s and %s move %sly (r=%.2f over %d samples)", a.Name(), b.Name(), relationship, r, len(a.Points)),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Coefficient) > math.Abs(out[j].Coefficient)
	})
	return out
}

// trends fits an OLS line per series and keeps the directional ones. Stable
// series are dropped from the output.
func (c *Correlator) trends(series []models.MetricSeries) []models.DegradationTrend {
	out := []models.DegradationTrend{}
	for _, s := range series {
		if len(s.Points) < c.opts.MinSnapshots {
			continue
		}

		start := s.Points[0].Timestamp
		xs := make([]float64, len(s.Points))
		for i, p := range s.Points {
			xs[i] = utils.HoursBetween(start, p.Timestamp)
		}
		fit := fitLine(xs, values(s))
		if math.Abs(fit.slope) <= c.opts.SlopeEpsilon {
			continue
		}

		direction := models.TrendIncreasing
		if fit.slope < 0 {
			direction = models.TrendDecreasing
		}

		current := s.Points[len(s.Points)-1].Value
		ratePct := fit.slope
		if first := s.Points[0].Value; first != 0 {
			ratePct = fit.slope / math.Abs(first) * 100
		}

		trend := models.DegradationTrend{
			Component:      s.Component,
			Metric:         s.Metric,
			Direction:      direction,
			RatePerHourPct: ratePct,
			CurrentValue:   current,
			Predicted1h:    current + fit.slope,
			Predicted24h:   current + fit.slope*24,
			Confidence:     fit.r2 * 100,
		}

		if isHealthScale(s) && direction == models.TrendDecreasing && current > c.opts.CriticalThreshold {
			eta := (current - c.opts.CriticalThreshold) / math.Abs(fit.slope)
			trend.BreachETAHours = &eta
		}
		trend.Severity = trendSeverity(trend)
		out = append(out, trend)
	}
	return out
}

// trendSeverity grades a trend by breach ETA and rate-of-change magnitude.
func trendSeverity(t models.DegradationTrend) models.Severity {
	severity := models.SeverityLow
	switch rate := math.Abs(t.RatePerHourPct); {
	case rate >= 15:
		severity = models.SeverityHigh
	case rate >= 5:
		severity = models.SeverityMedium
	}
	if t.BreachETAHours == nil {
		return severity
	}
	switch eta := *t.BreachETAHours; {
	case eta <= 2:
		return models.SeverityCritical
	case eta <= 6:
		return maxSeverity(severity, models.SeverityHigh)
	case eta <= 24:
		return maxSeverity(severity, models.SeverityMedium)
	default:
		return severity
	}
}

func maxSeverity(a, b models.Severity) models.Severity {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}
