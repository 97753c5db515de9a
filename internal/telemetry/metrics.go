package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// submissionsTotal counts submission attempts by mode and outcome.
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fmcomp_submissions_total",
			Help: "Total number of submission attempts",
		},
		[]string{"mode", "outcome"},
	)

	// verificationDuration measures solution verification duration.
	verificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fmcomp_verification_duration_seconds",
			Help:    "Solution verification duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// standingsClients tracks open websocket standings subscriptions.
	standingsClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fmcomp_standings_clients",
			Help: "Number of connected standings websocket clients",
		},
	)
)

// RecordSubmission records one submission attempt. outcome is "accepted" or
// the rejection reason.
func RecordSubmission(mode, outcome string) {
	submissionsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordVerification records the duration of one verification run.
func RecordVerification(outcome string, startTime time.Time) {
	verificationDuration.WithLabelValues(outcome).Observe(time.Since(startTime).Seconds())
}

func StandingsClientConnected()    { standingsClients.Inc() }
func StandingsClientDisconnected() { standingsClients.Dec() }
