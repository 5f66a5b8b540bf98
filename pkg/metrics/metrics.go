package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Entity metrics
	UsersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestra_users_total",
			Help: "Total number of registered users",
		},
	)

	MediasTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orchestra_medias_total",
			Help: "Total number of media assets by status",
		},
		[]string{"status"},
	)

	ProfilesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestra_transform_profiles_total",
			Help: "Total number of transformation profiles",
		},
	)

	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orchestra_tasks_total",
			Help: "Total number of tasks by kind and status",
		},
		[]string{"kind", "status"},
	)

	// Capacity metrics
	UnitsPlanned = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orchestra_units_planned",
			Help: "Number of worker units planned by environment and service",
		},
		[]string{"environment", "service"},
	)

	UnitsCurrent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orchestra_units_current",
			Help: "Number of worker units observed by environment, service and state",
		},
		[]string{"environment", "service", "state"},
	)

	UnitsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestra_units_resolved_total",
			Help: "Total number of resolved hints sent to errored units",
		},
		[]string{"environment", "service"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestra_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestra_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Dispatcher metrics
	TasksLaunched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestra_tasks_launched_total",
			Help: "Total number of tasks submitted to worker queues by kind",
		},
		[]string{"kind"},
	)

	TasksFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestra_tasks_failed_total",
			Help: "Total number of tasks reported failed by kind",
		},
		[]string{"kind"},
	)

	CallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestra_callbacks_total",
			Help: "Total number of worker callbacks by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// Control loop metrics
	LoopDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestra_loop_duration_seconds",
			Help:    "Control loop tick duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"loop"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(UsersTotal)
	prometheus.MustRegister(MediasTotal)
	prometheus.MustRegister(ProfilesTotal)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(UnitsPlanned)
	prometheus.MustRegister(UnitsCurrent)
	prometheus.MustRegister(UnitsResolved)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(TasksLaunched)
	prometheus.MustRegister(TasksFailed)
	prometheus.MustRegister(CallbacksTotal)
	prometheus.MustRegister(LoopDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
