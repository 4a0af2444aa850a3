package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter serves this package's Registry through the
// github.com/prometheus/client_golang exposition machinery, by implementing
// prometheus.Collector itself and registering into a dedicated
// *prometheus.Registry on construction.

// PrometheusConfig configures the Prometheus exporter.
type PrometheusConfig struct {
	// Namespace is an optional prefix prepended to all metric names
	// (e.g. "chainweb" produces "chainweb_headerstore_height").
	Namespace string
	// EnableRuntime controls whether Go runtime/process collectors
	// (goroutines, memory, GC, process stats) are registered alongside
	// this package's own metrics.
	EnableRuntime bool
	// Path is the HTTP path to serve metrics on (default "/metrics").
	Path string
}

// DefaultPrometheusConfig returns a config with sensible defaults.
func DefaultPrometheusConfig() PrometheusConfig {
	return PrometheusConfig{
		Namespace:     "chainweb",
		EnableRuntime: true,
		Path:          "/metrics",
	}
}

// PrometheusExporter adapts a Registry into a prometheus.Collector and
// serves it over HTTP via promhttp.
type PrometheusExporter struct {
	config   PrometheusConfig
	registry *Registry
	promReg  *prometheus.Registry
}

// NewPrometheusExporter creates an exporter that reads from the given
// Registry and registers it (plus, if enabled, the standard Go runtime
// collectors) into a fresh prometheus.Registry.
func NewPrometheusExporter(registry *Registry, config PrometheusConfig) *PrometheusExporter {
	if config.Path == "" {
		config.Path = "/metrics"
	}
	pe := &PrometheusExporter{
		config:   config,
		registry: registry,
		promReg:  prometheus.NewRegistry(),
	}
	pe.promReg.MustRegister(pe)
	if config.EnableRuntime {
		pe.promReg.MustRegister(prometheus.NewGoCollector())
		pe.promReg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	}
	return pe
}

// Handler returns an http.Handler that serves the configured path in
// Prometheus text exposition format.
func (pe *PrometheusExporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(pe.config.Path, promhttp.HandlerFor(pe.promReg, promhttp.HandlerOpts{}))
	return mux
}

// Describe implements prometheus.Collector. The registry's metric set is
// dynamic (get-or-create), so descriptors are unchecked; Collect still
// reports every metric present at scrape time.
func (pe *PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector, snapshotting the Registry's
// counters, gauges and histograms (the latter reported as summaries, since
// this package tracks count/sum/min/max/mean rather than fixed buckets).
func (pe *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	pe.registry.mu.RLock()
	counters := make(map[string]*Counter, len(pe.registry.counters))
	for k, v := range pe.registry.counters {
		counters[k] = v
	}
	gauges := make(map[string]*Gauge, len(pe.registry.gauges))
	for k, v := range pe.registry.gauges {
		gauges[k] = v
	}
	histograms := make(map[string]*Histogram, len(pe.registry.histograms))
	for k, v := range pe.registry.histograms {
		histograms[k] = v
	}
	pe.registry.mu.RUnlock()

	for name, c := range counters {
		desc := pe.desc(name, prometheus.CounterValue)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(c.Value()))
	}
	for name, g := range gauges {
		desc := pe.desc(name, prometheus.GaugeValue)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(g.Value()))
	}
	for name, h := range histograms {
		desc := prometheus.NewDesc(pe.promName(name), name, nil, nil)
		quantiles := map[float64]float64{
			0: h.Min(),
			1: h.Max(),
		}
		ch <- prometheus.MustNewConstSummary(desc, uint64(h.Count()), h.Sum(), quantiles)
	}
}

// promName converts a dot-separated metric name to Prometheus format: dots
// and dashes become underscores, and the namespace prefix is prepended.
func (pe *PrometheusExporter) promName(name string) string {
	sanitized := strings.ReplaceAll(name, ".", "_")
	sanitized = strings.ReplaceAll(sanitized, "-", "_")
	if pe.config.Namespace != "" {
		return pe.config.Namespace + "_" + sanitized
	}
	return sanitized
}

func (pe *PrometheusExporter) desc(name string, _ prometheus.ValueType) *prometheus.Desc {
	return prometheus.NewDesc(pe.promName(name), name, nil, nil)
}
