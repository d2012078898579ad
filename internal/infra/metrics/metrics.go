package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "license_notifier_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "license_notifier_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// EmailsTotal counts reminder dispatch attempts per recipient category and outcome
	EmailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "license_notifier_emails_total",
			Help: "Number of reminder e-mails sent or failed",
		},
		[]string{"category", "status"},
	)

	PassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "license_notifier_passes_total",
			Help: "Number of notification passes by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	PassDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "license_notifier_pass_duration_seconds",
			Help:    "Duration of notification passes",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"trigger"},
	)
)

func Init() {
	prometheus.MustRegister(HTTPRequests, RequestDuration, EmailsTotal, PassesTotal, PassDuration)
}
