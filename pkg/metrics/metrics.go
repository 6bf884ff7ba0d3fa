package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Auth related metrics
	LoginAttempts   *prometheus.CounterVec
	SessionsRevoked prometheus.Counter

	// Patient metrics
	ProfilesCreated   prometheus.Counter
	ProfilesUpdated   prometheus.Counter
	ArtifactsUploaded *prometheus.CounterVec

	// Drug lookup metrics
	DrugLookups       *prometheus.CounterVec
	DrugLookupLatency prometheus.Histogram

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreLatency    *prometheus.HistogramVec
}

// New creates the application metrics and registers them with reg.
// A nil registerer leaves them unregistered, which is what tests want.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts by mode and result",
		}, []string{"mode", "result"}),
		SessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_revoked_total",
			Help:      "Total number of sessions ended by logout or back",
		}),
		ProfilesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profiles_created_total",
			Help:      "Total number of patient profiles created",
		}),
		ProfilesUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profiles_updated_total",
			Help:      "Total number of patient profile edits",
		}),
		ArtifactsUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_uploaded_total",
			Help:      "Total number of uploaded files by kind",
		}, []string{"kind"}),
		DrugLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drug_lookups_total",
			Help:      "Total number of drug information lookups by outcome",
		}, []string{"outcome"}),
		DrugLookupLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "drug_lookup_duration_seconds",
			Help:      "Time spent calling the drug information API",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of record store operations",
		}, []string{"operation", "status"}),
		StoreLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of record store operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.LoginAttempts,
			m.SessionsRevoked,
			m.ProfilesCreated,
			m.ProfilesUpdated,
			m.ArtifactsUploaded,
			m.DrugLookups,
			m.DrugLookupLatency,
			m.StoreOperations,
			m.StoreLatency,
		)
	}

	return m
}

// ObserveStore records one store operation.
func (m *Metrics) ObserveStore(operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StoreOperations.WithLabelValues(operation, status).Inc()
	m.StoreLatency.WithLabelValues(operation).Observe(seconds)
}
