package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/chainweb-go/chainweb/log"
	"github.com/chainweb-go/chainweb/metrics"
	"github.com/chainweb-go/chainweb/multichain"
)

// collectorBackend adapts a metrics.MetricsCollector into a
// metrics.ReportBackend, so MetricsReporter's periodic push lands in the
// collector's append-only log for later percentile queries.
type collectorBackend struct {
	collector *metrics.MetricsCollector
}

func (b collectorBackend) Report(vals map[string]float64) error {
	for name, v := range vals {
		b.collector.Record(name, v, nil)
	}
	return nil
}

// monitor bundles the background metrics plumbing started alongside the
// long-lived server: a MetricsReporter pushing DefaultRegistry snapshots to
// a MetricsCollector (so /metrics/history can answer percentile queries),
// and a SystemMetrics sampler feeding /status.
type monitor struct {
	collector *metrics.MetricsCollector
	reporter  *metrics.MetricsReporter
	sys       *metrics.SystemMetrics
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// startMonitoring wires the process-wide metrics registry into a
// MetricsReporter/MetricsCollector pair and a SystemMetrics sampler, polled
// on a fixed interval for the lifetime of the daemon.
func startMonitoring(registry *multichain.Registry, l *log.Logger) *monitor {
	m := &monitor{
		collector: metrics.NewMetricsCollector(metrics.CollectorConfig{
			FlushInterval:    60,
			MaxMetrics:       50000,
			EnableHistograms: true,
		}),
		reporter: metrics.NewMetricsReporter(15 * time.Second),
		sys:      metrics.NewSystemMetrics(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	m.reporter.RegisterBackend("collector", collectorBackend{m.collector})
	m.reporter.Start()

	m.sys.SetChainCountFunc(func() int { return len(registry.ChainIDs()) })
	m.sys.SetTotalHeadersFunc(func() uint64 { return uint64(metrics.HeadersInserted.Value()) })

	go func() {
		defer close(m.doneCh)
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.sys.Collect()
				m.pushRegistrySnapshot()
			}
		}
	}()

	l.Info("metrics monitor started", "reporter_interval", "15s", "sample_interval", "10s")
	return m
}

// pushRegistrySnapshot copies every counter/gauge value, and every
// histogram's mean, from the process-wide metrics.DefaultRegistry into the
// reporter (so its next tick forwards them to backends) and directly into
// the collector's histogram series (so recent means can be queried by
// percentile without waiting for a reporter tick).
func (m *monitor) pushRegistrySnapshot() {
	for name, v := range metrics.DefaultRegistry.Snapshot() {
		switch val := v.(type) {
		case int64:
			m.reporter.RecordMetric(name, float64(val))
		case map[string]interface{}:
			mean, _ := val["mean"].(float64)
			m.reporter.RecordMetric(name+".mean", mean)
			m.collector.RecordHistogram(name+".mean", mean)
		}
	}
}

// stop halts the sampling goroutine and the reporter, blocking until both
// have exited.
func (m *monitor) stop() {
	close(m.stopCh)
	<-m.doneCh
	m.reporter.Stop()
}

// historyHandler serves percentile queries over the collector's recorded
// histogram-mean series, e.g.
// /metrics/history?metric=headerstore.insert_ms.mean&p=95
func (m *monitor) historyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("metric")
		if name == "" {
			name = "headerstore.insert_ms.mean"
		}
		p := 50.0
		if raw := r.URL.Query().Get("p"); raw != "" {
			if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
				p = parsed
			}
		}
		resp := struct {
			Metric     string  `json:"metric"`
			Percentile float64 `json:"percentile"`
			Value      float64 `json:"value"`
			Samples    int     `json:"samples"`
		}{
			Metric:     name,
			Percentile: p,
			Value:      m.collector.HistogramPercentile(name, p),
			Samples:    m.collector.MetricCount(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
