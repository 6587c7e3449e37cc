package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rickgao/binance-collector/internal/router"
	"github.com/rickgao/binance-collector/internal/writer"
)

const namespace = "collector"

// Metrics holds the collector's Prometheus collectors. It implements
// router.Observer and writer.ChunkObserver.
type Metrics struct {
	registry *prometheus.Registry

	events        *prometheus.CounterVec
	decodeErrors  prometheus.Counter
	chunks        prometheus.Counter
	rowsWritten   prometheus.Counter
	chunkRows     prometheus.Histogram
	chunkDuration prometheus.Histogram
}

// New creates Metrics on a private registry that also carries the Go and
// process collectors.
func New(symbol string) *Metrics {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"symbol": symbol}

	m := &Metrics{
		registry: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "events_total",
			Help:        "Frames classified, by event kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "decode_errors_total",
			Help:        "Frames discarded because the body could not be decoded.",
			ConstLabels: labels,
		}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "chunks_total",
			Help:        "Chunks written to the sink.",
			ConstLabels: labels,
		}),
		rowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rows_written_total",
			Help:        "Rows written to the sink.",
			ConstLabels: labels,
		}),
		chunkRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "chunk_rows",
			Help:        "Rows per written chunk.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 12),
		}),
		chunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "chunk_write_seconds",
			Help:        "Time to build and write one chunk.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.events,
		m.decodeErrors,
		m.chunks,
		m.rowsWritten,
		m.chunkRows,
		m.chunkDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Expose every kind from the first scrape
	for _, k := range []router.Kind{router.KindTrade, router.KindDepth, router.KindUnknown} {
		m.events.WithLabelValues(k.String())
	}

	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveEvent counts a classified frame.
func (m *Metrics) ObserveEvent(kind router.Kind) {
	m.events.WithLabelValues(kind.String()).Inc()
}

// ObserveDecodeError counts a discarded frame.
func (m *Metrics) ObserveDecodeError() {
	m.decodeErrors.Inc()
}

// ObserveChunk records a written chunk.
func (m *Metrics) ObserveChunk(info writer.ChunkInfo) {
	m.chunks.Inc()
	m.rowsWritten.Add(float64(info.Rows))
	m.chunkRows.Observe(float64(info.Rows))
	m.chunkDuration.Observe(info.Duration.Seconds())
}
