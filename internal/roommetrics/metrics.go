// Package roommetrics exposes Prometheus metrics for the room server:
// connection counts, sync/persist flush throughput, ingest backpressure,
// and container resource usage.
package roommetrics

import (
	"net/http"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomsync_connections_total",
		Help: "Total number of gateway connections established",
	})

	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roomsync_connections_active",
		Help: "Current number of active gateway connections",
	})

	ConnectionsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roomsync_connections_rejected_total",
		Help: "Total connection rejections by reason",
	}, []string{"reason"})

	RoomsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roomsync_rooms_active",
		Help: "Current number of attached rooms",
	})

	SyncFlushesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomsync_sync_flushes_total",
		Help: "Total number of onSync batch flushes",
	})

	PersistFlushesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomsync_persist_flushes_total",
		Help: "Total number of onPersist batch flushes",
	})

	SyncBatchEntries = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "roomsync_sync_batch_entries",
		Help:    "Distribution of entry counts per onSync batch",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
	})

	IngestMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomsync_ingest_messages_total",
		Help: "Total number of ingest messages consumed and applied via Load",
	})

	IngestDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roomsync_ingest_dropped_total",
		Help: "Total ingest messages dropped, by reason",
	}, []string{"reason"})

	IngestPaused = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roomsync_ingest_paused",
		Help: "Whether ingest consumption is currently paused for backpressure (1=paused)",
	})

	GatewayMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomsync_gateway_messages_sent_total",
		Help: "Total number of sync messages sent to gateway clients",
	})

	GatewayBytesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomsync_gateway_bytes_sent_total",
		Help: "Total number of bytes sent to gateway clients",
	})

	GatewaySlowClientsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomsync_gateway_slow_clients_dropped_total",
		Help: "Total number of slow gateway clients disconnected",
	})

	CPUUsagePercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roomsync_cpu_usage_percent",
		Help: "Current CPU usage percentage, relative to container allocation",
	})

	MemoryUsageBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roomsync_memory_bytes",
		Help: "Current process memory usage in bytes",
	})

	GoroutinesActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roomsync_goroutines_active",
		Help: "Current number of active goroutines",
	})

	ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roomsync_errors_total",
		Help: "Total errors by component and severity",
	}, []string{"component", "severity"})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		ConnectionsActive,
		ConnectionsRejected,
		RoomsActive,
		SyncFlushesTotal,
		PersistFlushesTotal,
		SyncBatchEntries,
		IngestMessagesTotal,
		IngestDroppedTotal,
		IngestPaused,
		GatewayMessagesSent,
		GatewayBytesSent,
		GatewaySlowClientsDropped,
		CPUUsagePercent,
		MemoryUsageBytes,
		GoroutinesActive,
		ErrorsTotal,
	)
}

// Handler returns the promhttp handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SampleRuntime records goroutine count and process memory at their
// current values. cmd/room does not call it: roomguard.Guard's
// UpdateResources sets the same two gauges on each monitoring tick.
func SampleRuntime() {
	GoroutinesActive.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsageBytes.Set(float64(m.Alloc))
}
