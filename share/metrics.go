package gwshare

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsSource is a broker whose statistics can be exported
type StatsSource interface {
	Stats() *ConnStats
	State() BrokerState
}

// StatsCollector is a prometheus.Collector that reads a broker's ConnStats and
// state at scrape time
type StatsCollector struct {
	source     StatsSource
	jobsOpen   *prometheus.Desc
	jobsTotal  *prometheus.Desc
	bytesTotal *prometheus.Desc
	running    *prometheus.Desc
}

// NewStatsCollector creates a collector whose metrics carry a constant "role" label
func NewStatsCollector(role string, source StatsSource) *StatsCollector {
	labels := prometheus.Labels{"role": role}
	return &StatsCollector{
		source: source,
		jobsOpen: prometheus.NewDesc("gwtunnel_jobs_open",
			"Logical connections currently open.", nil, labels),
		jobsTotal: prometheus.NewDesc("gwtunnel_jobs_total",
			"Logical connections opened since start.", nil, labels),
		bytesTotal: prometheus.NewDesc("gwtunnel_relayed_bytes_total",
			"Payload bytes relayed, by direction relative to the control channel.", []string{"direction"}, labels),
		running: prometheus.NewDesc("gwtunnel_broker_running",
			"1 while the control connection is up.", nil, labels),
	}
}

// Describe implements prometheus.Collector
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobsOpen
	ch <- c.jobsTotal
	ch <- c.bytesTotal
	ch <- c.running
}

// Collect implements prometheus.Collector
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	running := 0.0
	if c.source.State() == StateRunning {
		running = 1
	}
	ch <- prometheus.MustNewConstMetric(c.jobsOpen, prometheus.GaugeValue, float64(stats.NumOpen()))
	ch <- prometheus.MustNewConstMetric(c.jobsTotal, prometheus.CounterValue, float64(stats.NumTotal()))
	ch <- prometheus.MustNewConstMetric(c.bytesTotal, prometheus.CounterValue, float64(stats.Upstream()), "upstream")
	ch <- prometheus.MustNewConstMetric(c.bytesTotal, prometheus.CounterValue, float64(stats.Downstream()), "downstream")
	ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, running)
}

// ServeMetrics serves the registry's metrics at /metrics on addr until ctx is done.
// It returns the bound address.
func ServeMetrics(ctx context.Context, logger Logger, addr string, registry *prometheus.Registry) (net.Addr, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s: Metrics listen failed for '%s': %s", logger.Prefix(), addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	h := NewHTTPServer(logger.Fork("metrics"), mux)
	h.Start(l)
	go func() {
		<-ctx.Done()
		h.Close()
	}()
	h.ILogf("Serving metrics on http://%s/metrics", l.Addr())
	return l.Addr(), nil
}
