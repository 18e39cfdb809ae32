package correlate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelstack/sentinel-heal/internal/models"
)

// alerts converts trends and correlations into predictive alerts, sorted by
// severity then ascending ETA.
func (c *Correlator) alerts(correlations []models.MetricCorrelation, trends []models.DegradationTrend) []models.PredictiveAlert {
	out := []models.PredictiveAlert{}
	now := time.Now().UTC()

	trendByName := make(map[string]models.DegradationTrend, len(trends))
	for _, t := range trends {
		trendByName[seriesName(t)] = t
	}

	for _, t := range trends {
		switch {
		case t.BreachETAHours != nil && *t.BreachETAHours < 24:
			description := fmt.Sprintf("%s is %s at %.1f%%/hour; projected to breach the critical threshold in %.1f hours (current %.1f)",
				seriesName(t), t.Direction, t.RatePerHourPct, *t.BreachETAHours, t.CurrentValue)
			out = append(out, models.PredictiveAlert{
				ID:          uuid.NewString(),
				Type:        models.AlertThresholdBreach,
				Title:       fmt.Sprintf("%s approaching critical threshold", seriesName(t)),
				Description: description,
				Severity:    t.Severity,
				ETAHours:    *t.BreachETAHours,
				Confidence:  t.Confidence,
				Evidence: []string{
					fmt.Sprintf("OLS fit R²=%.2f", t.Confidence/100),
					fmt.Sprintf("rate %.2f%%/h", t.RatePerHourPct),
				},
				RecommendedAction: fmt.Sprintf("investigate %s before the threshold is crossed", seriesName(t)),
				AutoRemediable:    false,
				CreatedAt:         now,
			})
		case t.Severity.Rank() >= models.SeverityHigh.Rank():
			description := fmt.Sprintf("%s is %s at %.1f%%/hour with no imminent threshold breach",
				seriesName(t), t.Direction, t.RatePerHourPct)
			out = append(out, models.PredictiveAlert{
				ID:                uuid.NewString(),
				Type:              models.AlertDegradationPattern,
				Title:             fmt.Sprintf("%s degrading rapidly", seriesName(t)),
				Description:       description,
				Severity:          t.Severity,
				ETAHours:          24,
				Confidence:        t.Confidence,
				Evidence:          []string{fmt.Sprintf("predicted 24h value %.1f", t.Predicted24h)},
				RecommendedAction: fmt.Sprintf("review recent changes affecting %s", seriesName(t)),
				CreatedAt:         now,
			})
		}
	}

	// Cascade prediction: a strongly correlated pair where the leading
	// metric is already degrading but the lagging metric's own trend has
	// not yet been detected.
	for _, corr := range correlations {
		leading, lagging, ok := cascadePair(corr, trendByName)
		if !ok {
			continue
		}
		eta := 12.0
		if lead := trendByName[leading]; lead.BreachETAHours != nil {
			eta = *lead.BreachETAHours + 2
		}
		description := fmt.Sprintf("%s historically moves with %s (%s, r=%.2f); %s is degrading and %s is expected to follow",
			lagging, leading, corr.Relationship, corr.Coefficient, leading, lagging)
		out = append(out, models.PredictiveAlert{
			ID:                uuid.NewString(),
			Type:              models.AlertCorrelationCascade,
			Title:             fmt.Sprintf("%s likely to follow %s", lagging, leading),
			Description:       description,
			Severity:          models.SeverityMedium,
			ETAHours:          eta,
			Confidence:        corr.Confidence,
			Evidence:          []string{corr.Description},
			RecommendedAction: fmt.Sprintf("watch %s and address the degradation in %s", lagging, leading),
			CreatedAt:         now,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].ETAHours < out[j].ETAHours
	})
	return out
}

// cascadePair identifies the degrading (leading) and still-quiet (lagging)
// sides of a strong correlation, if the pair is in that state.
func cascadePair(corr models.MetricCorrelation, trendByName map[string]models.DegradationTrend) (leading, lagging string, ok bool) {
	t1, has1 := trendByName[corr.Metric1]
	t2, has2 := trendByName[corr.Metric2]

	degrading1 := has1 && t1.Direction == models.TrendDecreasing
	degrading2 := has2 && t2.Direction == models.TrendDecreasing

	switch {
	case degrading1 && !has2:
		return corr.Metric1, corr.Metric2, true
	case degrading2 && !has1:
		return corr.Metric2, corr.Metric1, true
	default:
		return "", "", false
	}
}

func seriesName(t models.DegradationTrend) string {
	if t.Component == "" {
		return t.Metric
	}
	return strings.Join([]string{t.Component, t.Metric}, ".")
}
