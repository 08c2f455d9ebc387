// Package metrics holds the prometheus collectors chainfile reports.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "chainfile"

// Outcome labels.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeNotFound  = "not_found"
	OutcomeSkipped   = "skipped"
	OutcomeMoved     = "moved"
	OutcomeDuplicate = "duplicate"

	ResultComplete   = "complete"
	ResultIncomplete = "incomplete"
	ResultMismatch   = "mismatch"
)

// Metrics is the set of collectors for one process.
type Metrics struct {
	Registry *prometheus.Registry

	LedgerRequests *prometheus.CounterVec
	LedgerRetries  *prometheus.CounterVec
	LineageHops    prometheus.Counter
	ChunkFetches   *prometheus.CounterVec
	ChunkBytes     prometheus.Counter
	Canonicalized  *prometheus.CounterVec
	Assemblies     *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
}

// New creates the collectors and registers them, together with the Go
// runtime collector, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		LedgerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_requests_total",
			Help:      "Ledger RPC calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		LedgerRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_retries_total",
			Help:      "Ledger RPC retries after transient failures.",
		}, []string{"endpoint"}),
		LineageHops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lineage_hops_total",
			Help:      "Spent records visited by lineage walks.",
		}),
		ChunkFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_fetches_total",
			Help:      "Chunk fetch attempts by outcome.",
		}, []string{"outcome"}),
		ChunkBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_bytes_total",
			Help:      "Bytes written to the pending chunk store.",
		}),
		Canonicalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_canonicalized_total",
			Help:      "Pending chunks moved into the canonical store.",
		}, []string{"outcome"}),
		Assemblies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assemblies_total",
			Help:      "Reassembly attempts by result.",
		}, []string{"result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_fetch_duration_seconds",
			Help:      "Time to retrieve and persist one chunk.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	m.Registry.MustRegister(collectors.NewGoCollector())
	m.Registry.MustRegister(
		m.LedgerRequests,
		m.LedgerRetries,
		m.LineageHops,
		m.ChunkFetches,
		m.ChunkBytes,
		m.Canonicalized,
		m.Assemblies,
		m.FetchDuration,
	)
	return m
}

// LedgerRequest counts one RPC call.
func (m *Metrics) LedgerRequest(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.LedgerRequests.WithLabelValues(endpoint, outcome).Inc()
}

// LedgerRetry counts one retry.
func (m *Metrics) LedgerRetry(endpoint string) {
	if m == nil {
		return
	}
	m.LedgerRetries.WithLabelValues(endpoint).Inc()
}

// Hop counts one lineage hop.
func (m *Metrics) Hop() {
	if m == nil {
		return
	}
	m.LineageHops.Inc()
}

// ChunkFetch counts a fetch and, on success, its size and duration.
func (m *Metrics) ChunkFetch(outcome string, size int, seconds float64) {
	if m == nil {
		return
	}
	m.ChunkFetches.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.ChunkBytes.Add(float64(size))
		m.FetchDuration.Observe(seconds)
	}
}

// Canonical counts one canonicalized chunk.
func (m *Metrics) Canonical(outcome string) {
	if m == nil {
		return
	}
	m.Canonicalized.WithLabelValues(outcome).Inc()
}

// Assembly counts one reassembly attempt.
func (m *Metrics) Assembly(result string) {
	if m == nil {
		return
	}
	m.Assemblies.WithLabelValues(result).Inc()
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
