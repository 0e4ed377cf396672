// ABOUTME: Prometheus collector over pool statistics and buffer load counters
// ABOUTME: Reads engine state at scrape time and serves it on /metrics
package metrics

import (
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Resonate-Protocol/buzz-go/pkg/buzz"
)

// PoolSource reports streaming pool occupancy
type PoolSource interface {
	Stats() []buzz.PoolStats
}

// CounterSource reports buffer loader activity
type CounterSource interface {
	Counters() buzz.LoadCounters
}

// EngineMetrics collects engine state for Prometheus
type EngineMetrics struct {
	registry *prometheus.Registry
	pool     PoolSource
	loads    CounterSource

	poolHandles *prometheus.Desc
	poolGroups  *prometheus.Desc
	bufferLoads *prometheus.Desc
	bufferFails *prometheus.Desc
	bufferHits  *prometheus.Desc
}

// NewEngineMetrics creates the collector and registers it. loads may be nil
// when the engine uses a buffer cache without counters.
func NewEngineMetrics(registry *prometheus.Registry, pool PoolSource, loads CounterSource) (*EngineMetrics, error) {
	m := &EngineMetrics{
		registry: registry,
		pool:     pool,
		loads:    loads,
		poolHandles: prometheus.NewDesc(
			"buzz_pool_handles",
			"Streaming handles per resource by allocation state",
			[]string{"resource", "state"}, nil,
		),
		poolGroups: prometheus.NewDesc(
			"buzz_pool_groups",
			"Groups holding streaming handles per resource",
			[]string{"resource"}, nil,
		),
		bufferLoads: prometheus.NewDesc(
			"buzz_buffer_loads_total",
			"Total number of buffer decodes",
			nil, nil,
		),
		bufferFails: prometheus.NewDesc(
			"buzz_buffer_load_failures_total",
			"Total number of failed buffer decodes",
			nil, nil,
		),
		bufferHits: prometheus.NewDesc(
			"buzz_buffer_cache_hits_total",
			"Total number of buffer loads served from the cache",
			nil, nil,
		),
	}

	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.poolHandles
	ch <- m.poolGroups
	ch <- m.bufferLoads
	ch <- m.bufferFails
	ch <- m.bufferHits
}

// Collect implements prometheus.Collector
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, st := range m.pool.Stats() {
		ch <- prometheus.MustNewConstMetric(m.poolHandles, prometheus.GaugeValue, float64(st.Unallocated), st.Resource, "unallocated")
		ch <- prometheus.MustNewConstMetric(m.poolHandles, prometheus.GaugeValue, float64(st.Allocated-st.Bound), st.Resource, "reserved")
		ch <- prometheus.MustNewConstMetric(m.poolHandles, prometheus.GaugeValue, float64(st.Bound), st.Resource, "bound")
		ch <- prometheus.MustNewConstMetric(m.poolGroups, prometheus.GaugeValue, float64(st.Groups), st.Resource)
	}

	if m.loads == nil {
		return
	}
	c := m.loads.Counters()
	ch <- prometheus.MustNewConstMetric(m.bufferLoads, prometheus.CounterValue, float64(c.Loads))
	ch <- prometheus.MustNewConstMetric(m.bufferFails, prometheus.CounterValue, float64(c.Failures))
	ch <- prometheus.MustNewConstMetric(m.bufferHits, prometheus.CounterValue, float64(c.Hits))
}

// RegisterHandlers registers the metrics endpoint with mux
func (m *EngineMetrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
}
