package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Graph metrics
	ResourcesDeclared = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "triad_resources_declared",
			Help: "Number of resource nodes declared in the current graph by kind",
		},
		[]string{"kind"},
	)

	// Engine metrics
	ResourcesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triad_resources_created_total",
			Help: "Total number of resources created by kind",
		},
		[]string{"kind"},
	)

	ResourcesFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triad_resources_failed_total",
			Help: "Total number of resource creation failures by kind",
		},
		[]string{"kind"},
	)

	ResourcesDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triad_resources_deleted_total",
			Help: "Total number of resources deleted by kind",
		},
		[]string{"kind"},
	)

	ApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "triad_apply_duration_seconds",
			Help:    "Wall-clock time of a full graph apply in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	DeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triad_deployments_total",
			Help: "Total number of deployments by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(ResourcesDeclared)
	prometheus.MustRegister(ResourcesCreated)
	prometheus.MustRegister(ResourcesFailed)
	prometheus.MustRegister(ResourcesDeleted)
	prometheus.MustRegister(ApplyDuration)
	prometheus.MustRegister(DeploymentsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
