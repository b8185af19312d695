// Package metrics contains the prometheus metrics exported by tocket.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tocket_active_sessions",
			Help: "A gauge of sessions currently being served. Either 0 or 1.",
		})
	SessionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tocket_sessions_total",
			Help: "Number of sessions served, by the reason they stopped.",
		},
		[]string{"stop_reason"},
	)
	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "tocket_session_duration_seconds",
			Help: "A histogram of session durations.",
			Buckets: []float64{
				.1, .25, .5, 1, 2.5, 5, 7.5, 10, 12.5, 15, 20, 30, 60, 120, 300},
		},
	)
	SessionRate = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "tocket_session_rate_mbps",
			Help: "A histogram of the average sending rate of each session.",
			Buckets: []float64{
				.1, .15, .25, .4, .6,
				1, 1.5, 2.5, 4, 6,
				10, 15, 25, 40, 60,
				100, 150, 250, 400, 600,
				1000, 2500, 10000},
		},
	)
	SentBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tocket_sent_bytes_total",
			Help: "Number of filler bytes written to clients.",
		})
	Snapshots = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tocket_snapshots_total",
			Help: "Number of metric snapshots taken and logged.",
		})
	SampleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tocket_sample_errors_total",
			Help: "Number of failed TCP_INFO queries, by error type.",
		},
		[]string{"error"},
	)
	LogWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tocket_log_write_errors_total",
			Help: "Number of failed writes to session log files.",
		},
		[]string{"kind"},
	)
	AcceptErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tocket_accept_errors_total",
			Help: "Number of failed calls to Accept.",
		})
	AbandonedTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tocket_abandoned_tasks_total",
			Help: "Number of session activities abandoned after the grace period.",
		},
		[]string{"task"},
	)
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tocket_store_errors_total",
			Help: "Number of failed operations against the live snapshot store.",
		},
		[]string{"op"},
	)
)
