package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buspass_alert_sweeps_total",
			Help: "Total number of expiry alert sweeps by result",
		},
		[]string{"result"}, // ok, error
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buspass_alert_notifications_total",
			Help: "Notification dispatch attempts by channel and outcome",
		},
		[]string{"channel", "status"},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "buspass_alert_sweep_duration_seconds",
			Help:    "Histogram of expiry alert sweep duration",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func Register() {
	prometheus.MustRegister(SweepsTotal, NotificationsTotal, SweepDuration)
}
