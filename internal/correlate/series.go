package correlate

import (
	"sort"

	"github.com/sentinelstack/sentinel-heal/internal/models"
)

// OverallHealthSeries is the synthetic series always derived from snapshot
// overall scores.
const OverallHealthSeries = "overall_health"

// flattenSeries converts an ordered snapshot window into one MetricSeries
// per (component, metric) pair plus the overall_health series. Only samples
// actually present in a snapshot are emitted, so series lengths can differ
// when components appear mid-window.
func flattenSeries(snapshots []models.HealthSnapshot) []models.MetricSeries {
	type key struct {
		component string
		metric    string
	}
	points := make(map[key][]models.MetricPoint)

	for _, snap := range snapshots {
		points[key{"", OverallHealthSeries}] = append(points[key{"", OverallHealthSeries}], models.MetricPoint{
			Timestamp: snap.Timestamp,
			Value:     snap.OverallScore,
		})
		for name, component := range snap.Components {
			points[key{name, "score"}] = append(points[key{name, "score"}], models.MetricPoint{
				Timestamp: snap.Timestamp,
				Value:     component.Score,
			})
			for metric, value := range component.Metrics {
				points[key{name, metric}] = append(points[key{name, metric}], models.MetricPoint{
					Timestamp: snap.Timestamp,
					Value:     value,
				})
			}
		}
	}

	series := make([]models.MetricSeries, 0, len(points))
	for k, pts := range points {
		sort.Slice(pts, func(i, j int) bool { return pts[i].Timestamp.Before(pts[j].Timestamp) })
		series = append(series, models.MetricSeries{Component: k.component, Metric: k.metric, Points: pts})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Name() < series[j].Name() })
	return series
}

// isHealthScale reports whether a series looks like a 0-100 health/score
// metric, the only kind eligible for threshold-breach projection.
func isHealthScale(s models.MetricSeries) bool {
	if s.Metric != OverallHealthSeries && s.Metric != "score" {
		return false
	}
	for _, p := range s.Points {
		if p.Value < 0 || p.Value > 100 {
			return false
		}
	}
	return true
}

func values(s models.MetricSeries) []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}
