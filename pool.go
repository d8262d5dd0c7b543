package ridx

import (
	"github.com/prometheus/client_golang/prometheus"

	"ridx/internal/bufferpool"
	"ridx/internal/metrics"
	"ridx/internal/storage"
)

// BufferPool caches page frames over the index file and hands out latched,
// pinned page access. One pool may back several trees.
type BufferPool = bufferpool.Manager

// PoolOption configures a BufferPool.
type PoolOption = bufferpool.Option

// Metrics holds the pool's Prometheus counters.
type Metrics = metrics.Metrics

// NewBufferPool opens (or creates) the page file at path with a pool of
// poolSize frames.
func NewBufferPool(path string, poolSize int, opts ...PoolOption) (*BufferPool, error) {
	dm, err := storage.NewDiskManager(path)
	if err != nil {
		return nil, err
	}
	return bufferpool.NewManager(poolSize, dm, opts...), nil
}

// WithPoolLogger routes buffer-pool diagnostics to log.
func WithPoolLogger(log Logger) PoolOption {
	return bufferpool.WithLogger(log)
}

// WithPoolMetrics attaches Prometheus counters to the pool.
func WithPoolMetrics(stats *Metrics) PoolOption {
	return bufferpool.WithMetrics(stats)
}

// NewMetrics registers the pool metrics against reg. Use a fresh registry
// per pool when several pools live in one process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return metrics.New(reg)
}
