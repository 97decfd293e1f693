package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_api_requests_total",
			Help: "Total number of control plane API requests",
		},
		[]string{"operation", "code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    Namespace + "_api_request_duration_seconds",
			Help:    "Control plane API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	APIReadRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_api_read_retries_total",
			Help: "Total number of transient read failures seen by the retrying client",
		},
		[]string{"operation"},
	)

	ProvisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_provisions_total",
			Help: "Total number of create-or-get runs by auth mode and outcome",
		},
		[]string{"auth_mode", "outcome"},
	)

	ProvisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    Namespace + "_provision_duration_seconds",
			Help:    "Time from lookup to a terminal provisioning state",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"auth_mode"},
	)

	RotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_ca_rotations_total",
			Help: "Total number of trust bundle rotations by outcome",
		},
		[]string{"outcome"},
	)

	PrunesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_ca_prunes_total",
			Help: "Total number of trust bundle prune runs by outcome",
		},
		[]string{"outcome"},
	)

	VersionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_version_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts on namespace updates",
		},
		[]string{"operation"},
	)

	TrustBundleSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: Namespace + "_trust_bundle_certificates",
			Help: "Number of CA certificates in a namespace trust bundle",
		},
		[]string{"namespace"},
	)

	TrustBundleExpiry = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: Namespace + "_trust_bundle_newest_expiry_timestamp_seconds",
			Help: "Expiry of the newest CA in a namespace trust bundle as a unix timestamp",
		},
		[]string{"namespace"},
	)

	IsLeader = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: Namespace + "_leader_is_leader",
			Help: "1 if this instance is the leader, 0 otherwise",
		},
	)
	LeadershipChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: Namespace + "_leader_changes_total",
			Help: "Total number of leadership changes",
		})
)
