package memalloc

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "memalloc"

// StatsProvider is anything that reports allocator stats.
type StatsProvider interface {
	Stats() Stats
}

// Collector exports the stats of one allocator as prometheus metrics.
// Stats are read on every scrape, so an allocator shared between goroutines
// must be wrapped with NewLocked before it is collected.
type Collector struct {
	a StatsProvider

	allocs     *prometheus.Desc
	frees      *prometheus.Desc
	capacity   *prometheus.Desc
	used       *prometheus.Desc
	free       *prometheus.Desc
	freeBlocks *prometheus.Desc
}

// NewCollector creates a collector labelling every metric with allocator=name.
func NewCollector(name string, a StatsProvider) *Collector {
	labels := prometheus.Labels{"allocator": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", metric), help, nil, labels)
	}
	return &Collector{
		a:          a,
		allocs:     desc("allocs_total", "Successful allocations since the allocator was initialized."),
		frees:      desc("frees_total", "Releases since the allocator was initialized."),
		capacity:   desc("capacity_bytes", "Payload bytes available when nothing is allocated."),
		used:       desc("used_bytes", "Payload bytes held by allocated blocks."),
		free:       desc("free_bytes", "Payload bytes held by free blocks."),
		freeBlocks: desc("free_blocks", "Number of free blocks."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.allocs
	ch <- c.frees
	ch <- c.capacity
	ch <- c.used
	ch <- c.free
	ch <- c.freeBlocks
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.a.Stats()
	ch <- prometheus.MustNewConstMetric(c.allocs, prometheus.CounterValue, float64(s.Allocs))
	ch <- prometheus.MustNewConstMetric(c.frees, prometheus.CounterValue, float64(s.Frees))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity))
	ch <- prometheus.MustNewConstMetric(c.used, prometheus.GaugeValue, float64(s.UsedBytes))
	ch <- prometheus.MustNewConstMetric(c.free, prometheus.GaugeValue, float64(s.FreeBytes))
	ch <- prometheus.MustNewConstMetric(c.freeBlocks, prometheus.GaugeValue, float64(s.FreeBlocks))
}
