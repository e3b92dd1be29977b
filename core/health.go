package core

import (
	"net/http"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthMetrics exports node liveness gauges on a private prometheus
// registry, so a node embedded in a larger process never collides with
// the host's default registry.
type HealthMetrics struct {
	node *Node

	registry        *prometheus.Registry
	heightGauge     prometheus.Gauge
	mempoolGauge    prometheus.Gauge
	tpsGauge        prometheus.Gauge
	goroutinesGauge prometheus.Gauge
	tickCounter     prometheus.Counter
}

func NewHealthMetrics(node *Node) *HealthMetrics {
	reg := prometheus.NewRegistry()
	h := &HealthMetrics{node: node, registry: reg}

	h.heightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dytallix_block_height",
		Help: "Current committed chain height",
	})
	h.mempoolGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dytallix_mempool_size",
		Help: "Number of pending transactions in the mempool",
	})
	h.tpsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dytallix_rolling_tps",
		Help: "Transactions per second over the recent block window",
	})
	h.goroutinesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dytallix_goroutines",
		Help: "Number of live goroutines in the node process",
	})
	h.tickCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dytallix_metric_scrapes_total",
		Help: "Number of metric collection passes served",
	})

	reg.MustRegister(h.heightGauge, h.mempoolGauge, h.tpsGauge, h.goroutinesGauge, h.tickCounter)
	return h
}

// collect refreshes every gauge from the live node. Failures to read the
// tip leave the previous sample in place rather than zeroing it.
func (h *HealthMetrics) collect() {
	h.tickCounter.Inc()
	if height, err := h.node.Storage.GetHeight(); err == nil {
		h.heightGauge.Set(float64(height))
	}
	h.mempoolGauge.Set(float64(h.node.Mempool.Size()))
	if h.node.Producer != nil {
		h.tpsGauge.Set(h.node.Producer.RollingTPS())
	}
	h.goroutinesGauge.Set(float64(runtime.NumGoroutine()))
}

// Handler returns the /metrics endpoint, refreshing the gauges on every
// scrape.
func (h *HealthMetrics) Handler() http.Handler {
	inner := promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.collect()
		inner.ServeHTTP(w, r)
	})
}
