package metrics

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// LatencyDigest accumulates per-frame end-to-end latencies and reports
// quantile summaries on demand, supplementing the Prometheus histograms
// above with the exact p50/p90/p99 the Supervisor prints at shutdown
// (spec §6 run summary).
type LatencyDigest struct {
	mu sync.Mutex
	td *tdigest.TDigest
}

// NewLatencyDigest creates an empty digest.
func NewLatencyDigest() *LatencyDigest {
	return &LatencyDigest{td: tdigest.New()}
}

// Observe records one frame's end-to-end latency.
func (d *LatencyDigest) Observe(latency time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.td.Add(latency.Seconds(), 1)
}

// Quantile returns the q-th quantile (0..1) in seconds.
func (d *LatencyDigest) Quantile(q float64) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.td.Quantile(q)
}

// Summary is a snapshot of common quantiles, used for the end-of-run
// report.
type Summary struct {
	P50, P90, P99 float64
}

// Snapshot returns the current p50/p90/p99 in seconds.
func (d *LatencyDigest) Snapshot() Summary {
	return Summary{
		P50: d.Quantile(0.5),
		P90: d.Quantile(0.9),
		P99: d.Quantile(0.99),
	}
}
