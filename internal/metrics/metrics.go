// Package metrics provides Prometheus instrumentation for the buffer pool.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the buffer-pool counters. A nil *Metrics is valid and all
// methods become no-ops, so instrumentation stays optional.
type Metrics struct {
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	Evictions    prometheus.Counter
	DiskReads    prometheus.Counter
	DiskWrites   prometheus.Counter
	PinnedFrames prometheus.Gauge
}

// New registers the buffer-pool metrics against reg. Pass a fresh
// prometheus.NewRegistry() per pool in tests to avoid duplicate
// registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "ridx_bufferpool_cache_hits_total",
			Help: "Page fetches served from a resident frame",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "ridx_bufferpool_cache_misses_total",
			Help: "Page fetches that required a disk read",
		}),
		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ridx_bufferpool_evictions_total",
			Help: "Frames reclaimed from the replacer",
		}),
		DiskReads: factory.NewCounter(prometheus.CounterOpts{
			Name: "ridx_bufferpool_disk_reads_total",
			Help: "Pages read from the page file",
		}),
		DiskWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "ridx_bufferpool_disk_writes_total",
			Help: "Pages written to the page file",
		}),
		PinnedFrames: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ridx_bufferpool_pinned_frames",
			Help: "Frames currently pinned by guards",
		}),
	}
}

func (m *Metrics) IncHits() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) IncMisses() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) IncEvictions() {
	if m != nil {
		m.Evictions.Inc()
	}
}

func (m *Metrics) IncDiskReads() {
	if m != nil {
		m.DiskReads.Inc()
	}
}

func (m *Metrics) IncDiskWrites() {
	if m != nil {
		m.DiskWrites.Inc()
	}
}

func (m *Metrics) AddPinned(delta float64) {
	if m != nil {
		m.PinnedFrames.Add(delta)
	}
}
