package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed cycles and remediations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed ones.
	OutcomeError = "error"
	// OutcomeSkipped labels cycles rejected by the recursion guard.
	OutcomeSkipped = "skipped"
)

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel_heal",
			Name:      "cycles_total",
			Help:      "Total number of health cycles run, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	cycleDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sentinel_heal",
			Name:      "cycle_seconds",
			Help:      "Health cycle latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	verificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel_heal",
			Name:      "verifications_total",
			Help:      "Issues processed by the verification pipeline, partitioned by layer and result.",
		},
		[]string{"layer", "result"},
	)

	remediationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel_heal",
			Name:      "remediations_total",
			Help:      "Remediation attempts, partitioned by scenario and outcome.",
		},
		[]string{"scenario", "outcome"},
	)

	ticketsSuppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinel_heal",
			Name:      "tickets_suppressed_total",
			Help:      "Duplicate tickets suppressed by fingerprint matching.",
		},
	)

	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel_heal",
			Name:      "predictive_alerts_total",
			Help:      "Predictive alerts emitted, partitioned by type.",
		},
		[]string{"type"},
	)

	guardRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinel_heal",
			Name:      "guard_rejections_total",
			Help:      "Pipeline runs rejected by the recursion guard.",
		},
	)
)

// Register attaches all collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		cyclesTotal,
		cycleDurationSeconds,
		verificationsTotal,
		remediationsTotal,
		ticketsSuppressedTotal,
		alertsTotal,
		guardRejectionsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveCycle records a cycle duration and outcome label.
func ObserveCycle(duration time.Duration, outcome string) {
	cyclesTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	cycleDurationSeconds.Observe(duration.Seconds())
}

// ObserveVerification counts one pipeline verdict for a layer.
func ObserveVerification(layer string, verified bool) {
	result := "unverified"
	if verified {
		result = "verified"
	}
	verificationsTotal.WithLabelValues(layer, result).Inc()
}

// ObserveRemediation counts one remediation attempt.
func ObserveRemediation(scenario string, success bool) {
	outcome := OutcomeError
	if success {
		outcome = OutcomeSuccess
	}
	if scenario == "" {
		scenario = "none"
	}
	remediationsTotal.WithLabelValues(scenario, outcome).Inc()
}

// ObserveSuppressed counts duplicate tickets held back.
func ObserveSuppressed(n int) {
	if n > 0 {
		ticketsSuppressedTotal.Add(float64(n))
	}
}

// ObserveAlert counts one emitted predictive alert.
func ObserveAlert(alertType string) {
	alertsTotal.WithLabelValues(alertType).Inc()
}

// ObserveGuardRejection counts one capacity rejection.
func ObserveGuardRejection() {
	guardRejectionsTotal.Inc()
}
