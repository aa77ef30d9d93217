package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personas_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "personas_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	AccountsRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "personas_accounts_registered_total",
			Help: "Total accounts registered",
		},
	)

	Logins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "personas_logins_total",
			Help: "Total successful logins",
		},
	)

	MessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personas_messages_posted_total",
			Help: "Total messages posted",
		},
		[]string{"kind"}, // "room" or "dm"
	)

	ThreadsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "personas_dm_threads_started_total",
			Help: "Total DM threads created",
		},
	)

	RoomsEntered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "personas_rooms_entered_total",
			Help: "Total successful room entries",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personas_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
