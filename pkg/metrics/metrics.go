package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Transport metrics
	PacketsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netnode_packets_sent_total",
			Help: "Total number of datagrams sent by header",
		},
		[]string{"header"},
	)

	PacketsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netnode_packets_received_total",
			Help: "Total number of datagrams received by header",
		},
		[]string{"header"},
	)

	PacketsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netnode_packets_dropped_total",
			Help: "Total number of datagrams dropped by reason",
		},
		[]string{"reason"},
	)

	FragmentsReassembledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netnode_fragments_reassembled_total",
			Help: "Total number of fragment sets reassembled into packets",
		},
	)

	FragmentSetsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netnode_fragment_sets_expired_total",
			Help: "Total number of partial fragment sets evicted at timeout",
		},
	)

	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "netnode_requests_in_flight",
			Help: "Number of SSU requests awaiting a response",
		},
	)

	RequestTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netnode_request_timeouts_total",
			Help: "Total number of SSU requests that timed out",
		},
	)

	// Routing metrics
	ChainsBuiltTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netnode_routing_chains_built_total",
			Help: "Total number of onion chains built by strategy",
		},
		[]string{"strategy"},
	)

	ChainBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netnode_routing_chain_build_duration_seconds",
			Help:    "Time taken to build an onion chain in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	LayersUnwrappedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netnode_routing_layers_unwrapped_total",
			Help: "Total number of onion layers unwrapped at this relay",
		},
	)

	IntegrityFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netnode_routing_integrity_failures_total",
			Help: "Total number of onion layers dropped on hash mismatch",
		},
	)

	// Propagation metrics
	PropagationsSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netnode_propagations_sent_total",
			Help: "Total number of propagation envelopes emitted to peers",
		},
	)

	PropagationsSuppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netnode_propagations_suppressed_total",
			Help: "Total number of propagation envelopes dropped by loop suppression",
		},
	)

	// DNS overlay metrics
	DNSRecordsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "netnode_dns_records_total",
			Help: "Total number of overlay DNS records stored",
		},
	)

	DNSRecordsRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netnode_dns_records_rejected_total",
			Help: "Total number of overlay DNS records rejected at the domain bound",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netnode_api_requests_total",
			Help: "Total number of admin API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netnode_api_request_duration_seconds",
			Help:    "Admin API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(PacketsSentTotal)
	prometheus.MustRegister(PacketsReceivedTotal)
	prometheus.MustRegister(PacketsDroppedTotal)
	prometheus.MustRegister(FragmentsReassembledTotal)
	prometheus.MustRegister(FragmentSetsExpiredTotal)
	prometheus.MustRegister(RequestsInFlight)
	prometheus.MustRegister(RequestTimeoutsTotal)
	prometheus.MustRegister(ChainsBuiltTotal)
	prometheus.MustRegister(ChainBuildDuration)
	prometheus.MustRegister(LayersUnwrappedTotal)
	prometheus.MustRegister(IntegrityFailuresTotal)
	prometheus.MustRegister(PropagationsSentTotal)
	prometheus.MustRegister(PropagationsSuppressedTotal)
	prometheus.MustRegister(DNSRecordsTotal)
	prometheus.MustRegister(DNSRecordsRejectedTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
