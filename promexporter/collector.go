package promexporter

import (
	"github.com/pior/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// StatsSource provides the statistics exported by a Collector.
// *redis.Client implements it.
type StatsSource interface {
	Stats() redis.ClientStats
	AllPoolStats() []redis.ServerPoolStats
}

// Collector is a prometheus.Collector reading client and pool statistics
// at scrape time.
type Collector struct {
	source StatsSource

	operations *prometheus.Desc
	getHits    *prometheus.Desc
	errors     *prometheus.Desc

	connections  *prometheus.Desc
	created      *prometheus.Desc
	destroyed    *prometheus.Desc
	expired      *prometheus.Desc
	acquires     *prometheus.Desc
	acquireErrs  *prometheus.Desc
	addresses    *prometheus.Desc
	circuitState *prometheus.Desc
	circuitFails *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector for source.
func NewCollector(source StatsSource) *Collector {
	server := []string{"server"}
	return &Collector{
		source: source,

		operations: prometheus.NewDesc("redis_client_operations_total",
			"Total number of client operations.", []string{"op"}, nil),
		getHits: prometheus.NewDesc("redis_client_get_hits_total",
			"Get operations that found the key.", nil, nil),
		errors: prometheus.NewDesc("redis_client_errors_total",
			"Total errors across all operations.", nil, nil),

		connections: prometheus.NewDesc("redis_pool_connections",
			"Connection pool statistics.", []string{"server", "state"}, nil), // live, total, active, idle
		created: prometheus.NewDesc("redis_pool_connections_created_total",
			"Total connections created.", server, nil),
		destroyed: prometheus.NewDesc("redis_pool_connections_destroyed_total",
			"Total connections destroyed.", server, nil),
		expired: prometheus.NewDesc("redis_pool_connections_expired_total",
			"Connections discarded for age or a stream closed by the server.", server, nil),
		acquires: prometheus.NewDesc("redis_pool_acquires_total",
			"Total connection acquire attempts.", server, nil),
		acquireErrs: prometheus.NewDesc("redis_pool_acquire_errors_total",
			"Total connection acquire errors.", server, nil),
		addresses: prometheus.NewDesc("redis_pool_resolved_addresses",
			"Number of addresses the server hostname currently resolves to.", server, nil),
		circuitState: prometheus.NewDesc("redis_circuit_breaker_state",
			"Circuit breaker state (0=closed, 1=half-open, 2=open).", server, nil),
		circuitFails: prometheus.NewDesc("redis_circuit_breaker_failures",
			"Circuit breaker failure counts.", []string{"server", "type"}, nil), // total, consecutive
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.operations
	ch <- c.getHits
	ch <- c.errors
	ch <- c.connections
	ch <- c.created
	ch <- c.destroyed
	ch <- c.expired
	ch <- c.acquires
	ch <- c.acquireErrs
	ch <- c.addresses
	ch <- c.circuitState
	ch <- c.circuitFails
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	cs := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.operations, prometheus.CounterValue, float64(cs.Gets), "get")
	ch <- prometheus.MustNewConstMetric(c.operations, prometheus.CounterValue, float64(cs.Sets), "set")
	ch <- prometheus.MustNewConstMetric(c.operations, prometheus.CounterValue, float64(cs.Commands), "command")
	ch <- prometheus.MustNewConstMetric(c.getHits, prometheus.CounterValue, float64(cs.GetHits))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(cs.Errors))

	for _, sp := range c.source.AllPoolStats() {
		ps := sp.PoolStats
		ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(ps.LiveConns), sp.Addr, "live")
		ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(ps.TotalConns), sp.Addr, "total")
		ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(ps.ActiveConns), sp.Addr, "active")
		ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(ps.IdleConns), sp.Addr, "idle")
		ch <- prometheus.MustNewConstMetric(c.created, prometheus.CounterValue, float64(ps.CreatedConns), sp.Addr)
		ch <- prometheus.MustNewConstMetric(c.destroyed, prometheus.CounterValue, float64(ps.DestroyedConns), sp.Addr)
		ch <- prometheus.MustNewConstMetric(c.expired, prometheus.CounterValue, float64(ps.ExpiredConns), sp.Addr)
		ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(ps.AcquireCount), sp.Addr)
		ch <- prometheus.MustNewConstMetric(c.acquireErrs, prometheus.CounterValue, float64(ps.AcquireErrors), sp.Addr)
		ch <- prometheus.MustNewConstMetric(c.addresses, prometheus.GaugeValue, float64(len(sp.Addresses)), sp.Addr)
		ch <- prometheus.MustNewConstMetric(c.circuitState, prometheus.GaugeValue, circuitStateValue(sp.CircuitBreakerState), sp.Addr)
		ch <- prometheus.MustNewConstMetric(c.circuitFails, prometheus.GaugeValue, float64(sp.CircuitBreakerCounts.TotalFailures), sp.Addr, "total")
		ch <- prometheus.MustNewConstMetric(c.circuitFails, prometheus.GaugeValue, float64(sp.CircuitBreakerCounts.ConsecutiveFailures), sp.Addr, "consecutive")
	}
}

func circuitStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
