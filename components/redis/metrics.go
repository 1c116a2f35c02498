package redis

import (
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	prom "github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/prometheus"
)

// registryMetrics is nil when the prometheus component is not running; all
// methods accept a nil receiver.
type registryMetrics struct {
	component *prom.Component
	builds    *prometheus.CounterVec
	failures  *prometheus.CounterVec
	pool      *poolCollector
}

func newRegistryMetrics(r *Registry) *registryMetrics {
	c := prom.C()
	if c == nil {
		return nil
	}
	m := &registryMetrics{
		component: c,
		builds:    c.NewCounter("redis_client_builds_total", "Redis clients constructed per identifier.", []string{"id", "kind"}),
		failures:  c.NewCounter("redis_client_build_failures_total", "Redis client constructions that failed.", []string{"id"}),
		pool:      newPoolCollector(c, r),
	}
	if _, err := c.Register(m.pool); err != nil {
		m.pool = nil
	}
	return m
}

func (m *registryMetrics) built(id ID, f Factory) {
	if m == nil {
		return
	}
	kind := "custom"
	if _, ok := f.(*PooledFactory); ok {
		kind = "pooled"
	}
	m.builds.WithLabelValues(string(id), kind).Inc()
}

func (m *registryMetrics) failed(id ID) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(string(id)).Inc()
}

func (m *registryMetrics) unregister() {
	if m == nil || m.pool == nil {
		return
	}
	m.component.Registry().Unregister(m.pool)
}

type poolStatser interface {
	PoolStats() *goredis.PoolStats
}

// poolCollector reads go-redis pool counters of every built pooled client at
// scrape time.
type poolCollector struct {
	registry *Registry

	hits       *prometheus.Desc
	misses     *prometheus.Desc
	timeouts   *prometheus.Desc
	totalConns *prometheus.Desc
	idleConns  *prometheus.Desc
	staleConns *prometheus.Desc
}

func newPoolCollector(c *prom.Component, r *Registry) *poolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(c.FQName("redis_pool_"+name), help, []string{"id"}, nil)
	}
	return &poolCollector{
		registry:   r,
		hits:       desc("hits_total", "Free connections found in the pool."),
		misses:     desc("misses_total", "Free connections not found in the pool."),
		timeouts:   desc("timeouts_total", "Waits for a connection that timed out."),
		totalConns: desc("total_connections", "Connections currently in the pool."),
		idleConns:  desc("idle_connections", "Idle connections in the pool."),
		staleConns: desc("stale_connections_total", "Stale connections removed from the pool."),
	}
}

func (p *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.hits
	ch <- p.misses
	ch <- p.timeouts
	ch <- p.totalConns
	ch <- p.idleConns
	ch <- p.staleConns
}

func (p *poolCollector) Collect(ch chan<- prometheus.Metric) {
	for id, c := range p.registry.built() {
		s, ok := c.(poolStatser)
		if !ok {
			continue
		}
		st := s.PoolStats()
		if st == nil {
			continue
		}
		label := string(id)
		ch <- prometheus.MustNewConstMetric(p.hits, prometheus.CounterValue, float64(st.Hits), label)
		ch <- prometheus.MustNewConstMetric(p.misses, prometheus.CounterValue, float64(st.Misses), label)
		ch <- prometheus.MustNewConstMetric(p.timeouts, prometheus.CounterValue, float64(st.Timeouts), label)
		ch <- prometheus.MustNewConstMetric(p.totalConns, prometheus.GaugeValue, float64(st.TotalConns), label)
		ch <- prometheus.MustNewConstMetric(p.idleConns, prometheus.GaugeValue, float64(st.IdleConns), label)
		ch <- prometheus.MustNewConstMetric(p.staleConns, prometheus.CounterValue, float64(st.StaleConns), label)
	}
}
