package blockfs

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    ops   *prometheus.HistogramVec
//	    bytes *prometheus.CounterVec
//	}
//
//	func (p *PrometheusCollector) RecordOp(op string, d time.Duration, err error) {
//	    p.ops.WithLabelValues(op).Observe(d.Seconds())
//	}
type MetricsCollector interface {
	// RecordOp is called after every operation ("format", "mount", "create",
	// "open", "read", ...). err is nil if successful.
	RecordOp(op string, duration time.Duration, err error)

	// RecordIO is called after each read or write with the number of bytes
	// actually transferred.
	RecordIO(op string, bytes int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOp(string, time.Duration, error) {}
func (NoopMetricsCollector) RecordIO(string, int)                  {}

type opCounters struct {
	count  atomic.Int64
	errors atomic.Int64
	nanos  atomic.Int64
}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ops sync.Map // op name -> *opCounters

	BytesRead    atomic.Int64
	BytesWritten atomic.Int64
}

// RecordOp implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOp(op string, duration time.Duration, err error) {
	v, _ := b.ops.LoadOrStore(op, &opCounters{})
	c := v.(*opCounters)
	c.count.Add(1)
	c.nanos.Add(duration.Nanoseconds())
	if err != nil {
		c.errors.Add(1)
	}
}

// RecordIO implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIO(op string, bytes int) {
	switch op {
	case "read":
		b.BytesRead.Add(int64(bytes))
	case "write":
		b.BytesWritten.Add(int64(bytes))
	}
}

// OpStats summarises one operation type.
type OpStats struct {
	Op       string
	Count    int64
	Errors   int64
	AvgNanos int64
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	Ops          []OpStats // sorted by Op
	BytesRead    int64
	BytesWritten int64
}

// Op returns the stats of a single operation type.
func (s BasicMetricsStats) Op(op string) OpStats {
	for _, o := range s.Ops {
		if o.Op == op {
			return o
		}
	}
	return OpStats{Op: op}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	stats := BasicMetricsStats{
		BytesRead:    b.BytesRead.Load(),
		BytesWritten: b.BytesWritten.Load(),
	}
	b.ops.Range(func(k, v any) bool {
		c := v.(*opCounters)
		s := OpStats{Op: k.(string), Count: c.count.Load(), Errors: c.errors.Load()}
		if s.Count > 0 {
			s.AvgNanos = c.nanos.Load() / s.Count
		}
		stats.Ops = append(stats.Ops, s)
		return true
	})
	sort.Slice(stats.Ops, func(i, j int) bool { return stats.Ops[i].Op < stats.Ops[j].Op })
	return stats
}
