package metrics

import (
	"sync"

	"github.com/arloliu/credshare/types"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use, so constructing
// a PrometheusCollector that is never exercised leaves the registry untouched.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	roleTransitions   *prometheus.CounterVec
	roleDuration      *prometheus.HistogramVec
	leadershipChanges prometheus.Counter
	elections         *prometheus.CounterVec
	electionDuration  prometheus.Histogram
	claimConflicts    prometheus.Counter

	fetches        *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	refreshSkipped prometheus.Counter
	relinquishes   *prometheus.CounterVec

	busMessages      *prometheus.CounterVec
	busDropped       prometheus.Counter
	claimStoreErrors *prometheus.CounterVec

	suspends      prometheus.Counter
	suspendGap    prometheus.Histogram
	revalidations *prometheus.CounterVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "credshare" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "credshare"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (p *PrometheusCollector) counter(subsystem, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: p.namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.roleTransitions = p.counterVec("election", "role_transitions_total",
			"Total role transitions by source and target role.", "from", "to")
		p.roleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "role_duration_seconds",
			Help:      "Time spent in a role before leaving it.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 4, 10), // 50ms .. ~3.6h
		}, []string{"role"})
		p.leadershipChanges = p.counter("election", "leadership_changes_total",
			"Total times this peer adopted a different leader.")
		p.elections = p.counterVec("election", "rounds_total",
			"Election rounds by outcome (leader, follower, failed).", "outcome")
		p.electionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "round_duration_seconds",
			Help:      "Duration of election rounds in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		})
		p.claimConflicts = p.counter("election", "claim_conflicts_total",
			"Detected double leadership resolved by the claim store.")

		p.fetches = p.counterVec("refresh", "fetches_total",
			"Credential source calls by purpose and result.", "purpose", "result")
		p.fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "refresh",
			Name:      "fetch_duration_seconds",
			Help:      "Credential source call latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		}, []string{"purpose"})
		p.refreshSkipped = p.counter("refresh", "skipped_total",
			"Refresh ticks skipped because a fetch was already in flight.")
		p.relinquishes = p.counterVec("refresh", "relinquish_total",
			"Times the leader gave up leadership, by reason.", "reason")

		p.busMessages = p.counterVec("bus", "messages_total",
			"Bus messages by kind and direction.", "kind", "direction")
		p.busDropped = p.counter("bus", "dropped_total",
			"Inbound bus messages dropped because the peer inbox was full.")
		p.claimStoreErrors = p.counterVec("claim_store", "errors_total",
			"Failed claim store operations by operation.", "op")

		p.suspends = p.counter("liveness", "suspends_total",
			"Detected process suspensions.")
		p.suspendGap = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "liveness",
			Name:      "suspend_gap_seconds",
			Help:      "Observed heartbeat gap at suspend detection.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8), // 1s .. ~4.5h
		})
		p.revalidations = p.counterVec("liveness", "revalidations_total",
			"Leadership re-validation passes by reason.", "reason")

		p.reg.MustRegister(
			p.roleTransitions, p.roleDuration, p.leadershipChanges, p.elections,
			p.electionDuration, p.claimConflicts, p.fetches, p.fetchDuration,
			p.refreshSkipped, p.relinquishes, p.busMessages, p.busDropped,
			p.claimStoreErrors, p.suspends, p.suspendGap, p.revalidations,
		)
	})
}

// ElectionMetrics implementation

// RecordRoleTransition counts the transition and observes time spent in from.
func (p *PrometheusCollector) RecordRoleTransition(from, to types.Role, duration float64) {
	p.ensureRegistered()
	p.roleTransitions.WithLabelValues(from.String(), to.String()).Inc()
	p.roleDuration.WithLabelValues(from.String()).Observe(duration)
}

// RecordLeadershipChange increments the leadership change counter.
func (p *PrometheusCollector) RecordLeadershipChange(_ string) {
	p.ensureRegistered()
	p.leadershipChanges.Inc()
}

// RecordElection counts an election outcome and observes its duration.
func (p *PrometheusCollector) RecordElection(outcome string, duration float64) {
	p.ensureRegistered()
	p.elections.WithLabelValues(outcome).Inc()
	p.electionDuration.Observe(duration)
}

// RecordClaimConflict increments the claim conflict counter.
func (p *PrometheusCollector) RecordClaimConflict() {
	p.ensureRegistered()
	p.claimConflicts.Inc()
}

// RefreshMetrics implementation

// RecordCredentialFetch counts a source call and observes its latency.
func (p *PrometheusCollector) RecordCredentialFetch(purpose string, success bool, duration float64) {
	p.ensureRegistered()
	result := "success"
	if !success {
		result = "failure"
	}
	p.fetches.WithLabelValues(purpose, result).Inc()
	p.fetchDuration.WithLabelValues(purpose).Observe(duration)
}

// RecordRefreshSkipped increments the skipped refresh counter.
func (p *PrometheusCollector) RecordRefreshSkipped() {
	p.ensureRegistered()
	p.refreshSkipped.Inc()
}

// RecordRelinquish counts a relinquish by reason.
func (p *PrometheusCollector) RecordRelinquish(reason string) {
	p.ensureRegistered()
	p.relinquishes.WithLabelValues(reason).Inc()
}

// TransportMetrics implementation

// RecordBusMessage counts a bus message by kind and direction.
func (p *PrometheusCollector) RecordBusMessage(kind string, direction string) {
	p.ensureRegistered()
	p.busMessages.WithLabelValues(kind, direction).Inc()
}

// RecordBusMessageDropped increments the dropped message counter.
func (p *PrometheusCollector) RecordBusMessageDropped() {
	p.ensureRegistered()
	p.busDropped.Inc()
}

// RecordClaimStoreError counts a failed claim store operation.
func (p *PrometheusCollector) RecordClaimStoreError(operation string) {
	p.ensureRegistered()
	p.claimStoreErrors.WithLabelValues(operation).Inc()
}

// LivenessMetrics implementation

// RecordSuspendDetected counts a suspension and observes the gap.
func (p *PrometheusCollector) RecordSuspendDetected(gap float64) {
	p.ensureRegistered()
	p.suspends.Inc()
	p.suspendGap.Observe(gap)
}

// RecordRevalidation counts a re-validation pass by reason.
func (p *PrometheusCollector) RecordRevalidation(reason string) {
	p.ensureRegistered()
	p.revalidations.WithLabelValues(reason).Inc()
}
