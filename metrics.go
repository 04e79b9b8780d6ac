package metacache

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "metacache"

type cacheStatsCollector struct {
	cache *Cache

	entries       *prometheus.Desc
	capacity      *prometheus.Desc
	hits          *prometheus.Desc
	misses        *prometheus.Desc
	inserts       *prometheus.Desc
	updates       *prometheus.Desc
	evictions     *prometheus.Desc
	expirations   *prometheus.Desc
	removals      *prometheus.Desc
	probeFailures *prometheus.Desc
}

// NewStatsCollector creates a Prometheus collector reporting the statistics
// of c. name is attached to every metric as the "cache" label so several
// caches can share a registry.
func NewStatsCollector(c *Cache, name string) prometheus.Collector {
	labels := prometheus.Labels{"cache": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", metric),
			help, nil, labels,
		)
	}

	return &cacheStatsCollector{
		cache:         c,
		entries:       desc("entries", "Number of live entries."),
		capacity:      desc("capacity", "Maximum number of live entries."),
		hits:          desc("hits_total", "Lookups answered from the cache."),
		misses:        desc("misses_total", "Lookups that found no usable entry."),
		inserts:       desc("inserts_total", "Entries created from a probe."),
		updates:       desc("updates_total", "Entries refreshed from a probe."),
		evictions:     desc("evictions_total", "Entries evicted to make room."),
		expirations:   desc("expirations_total", "Entries removed for exceeding the TTL."),
		removals:      desc("removals_total", "Entries removed explicitly."),
		probeFailures: desc("probe_failures_total", "Metadata probes that failed."),
	}
}

func (m *cacheStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.entries
	ch <- m.capacity
	ch <- m.hits
	ch <- m.misses
	ch <- m.inserts
	ch <- m.updates
	ch <- m.evictions
	ch <- m.expirations
	ch <- m.removals
	ch <- m.probeFailures
}

func (m *cacheStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := m.cache.Stats()
	ch <- prometheus.MustNewConstMetric(m.entries, prometheus.GaugeValue, float64(stats.Size))
	ch <- prometheus.MustNewConstMetric(m.capacity, prometheus.GaugeValue, float64(stats.MaxSize))
	ch <- prometheus.MustNewConstMetric(m.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(m.misses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(m.inserts, prometheus.CounterValue, float64(stats.Inserts))
	ch <- prometheus.MustNewConstMetric(m.updates, prometheus.CounterValue, float64(stats.Updates))
	ch <- prometheus.MustNewConstMetric(m.evictions, prometheus.CounterValue, float64(stats.Evictions))
	ch <- prometheus.MustNewConstMetric(m.expirations, prometheus.CounterValue, float64(stats.Expirations))
	ch <- prometheus.MustNewConstMetric(m.removals, prometheus.CounterValue, float64(stats.Removals))
	ch <- prometheus.MustNewConstMetric(m.probeFailures, prometheus.CounterValue, float64(stats.ProbeFailures))
}

var _ prometheus.Collector = new(cacheStatsCollector)
