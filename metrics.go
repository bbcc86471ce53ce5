package xdev

import (
	"sync/atomic"
	"time"

	"github.com/go-xdev/xdev/internal/interfaces"
)

// LatencyBuckets defines the scan-duration histogram buckets in
// nanoseconds, covering from 100us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 6

// Metrics tracks the operational statistics an integrator would plug into
// its own monitoring: scan counts and durations, event throughput and
// drops, and monitor queue depth over time.
type Metrics struct {
	ScanCount    atomic.Uint64
	ScanErrors   atomic.Uint64
	ScanDeviceTotal atomic.Uint64

	EventsReceived atomic.Uint64
	EventsDropped  atomic.Uint64

	QueueDepthTotal atomic.Uint64
	QueueDepthCount atomic.Uint64
	MaxQueueDepth   atomic.Uint32

	TotalScanLatencyNs atomic.Uint64
	ScanLatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
}

// NewMetrics creates a new metrics instance with its start time stamped
// now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) recordScan(devicesFound int, durationNs uint64, err error) {
	m.ScanCount.Add(1)
	if err != nil {
		m.ScanErrors.Add(1)
		return
	}
	m.ScanDeviceTotal.Add(uint64(devicesFound))
	m.TotalScanLatencyNs.Add(durationNs)
	for i, bucket := range LatencyBuckets {
		if durationNs <= bucket {
			m.ScanLatencyBuckets[i].Add(1)
		}
	}
}

func (m *Metrics) recordEventReceived() {
	m.EventsReceived.Add(1)
}

func (m *Metrics) recordEventDropped(string) {
	m.EventsDropped.Add(1)
}

func (m *Metrics) recordQueueDepth(depth int) {
	m.QueueDepthTotal.Add(uint64(depth))
	m.QueueDepthCount.Add(1)
	d := uint32(depth)
	for {
		current := m.MaxQueueDepth.Load()
		if d <= current {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(current, d) {
			break
		}
	}
}

// MetricsSnapshot is a point-in-time, non-atomic copy of Metrics suitable
// for logging or export.
type MetricsSnapshot struct {
	ScanCount       uint64
	ScanErrors      uint64
	ScanDeviceTotal uint64

	EventsReceived uint64
	EventsDropped  uint64

	AvgQueueDepth float64
	MaxQueueDepth uint32

	AvgScanLatencyNs uint64
	UptimeNs         uint64

	ScanLatencyHistogram [numLatencyBuckets]uint64
}

// Snapshot copies the current counters into a MetricsSnapshot and computes
// derived statistics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		ScanCount:       m.ScanCount.Load(),
		ScanErrors:      m.ScanErrors.Load(),
		ScanDeviceTotal: m.ScanDeviceTotal.Load(),
		EventsReceived:  m.EventsReceived.Load(),
		EventsDropped:   m.EventsDropped.Load(),
		MaxQueueDepth:   m.MaxQueueDepth.Load(),
	}

	queueDepthCount := m.QueueDepthCount.Load()
	if queueDepthCount > 0 {
		snap.AvgQueueDepth = float64(m.QueueDepthTotal.Load()) / float64(queueDepthCount)
	}

	if snap.ScanCount > snap.ScanErrors {
		snap.AvgScanLatencyNs = m.TotalScanLatencyNs.Load() / (snap.ScanCount - snap.ScanErrors)
	}

	snap.UptimeNs = uint64(time.Now().UnixNano() - m.StartTime.Load())

	for i := 0; i < numLatencyBuckets; i++ {
		snap.ScanLatencyHistogram[i] = m.ScanLatencyBuckets[i].Load()
	}
	return snap
}

// Reset zeroes all counters, useful between test cases.
func (m *Metrics) Reset() {
	m.ScanCount.Store(0)
	m.ScanErrors.Store(0)
	m.ScanDeviceTotal.Store(0)
	m.EventsReceived.Store(0)
	m.EventsDropped.Store(0)
	m.QueueDepthTotal.Store(0)
	m.QueueDepthCount.Store(0)
	m.MaxQueueDepth.Store(0)
	m.TotalScanLatencyNs.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.ScanLatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
}

// NoOpObserver discards every observation. It is the default for a Monitor
// or Enumerator that was never given an explicit observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveScan(int, uint64, error) {}
func (NoOpObserver) ObserveEventReceived()          {}
func (NoOpObserver) ObserveEventDropped(string)     {}
func (NoOpObserver) ObserveQueueDepth(int)          {}

// MetricsObserver implements interfaces.Observer by recording into a
// Metrics instance.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver wraps m as an interfaces.Observer.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveScan(devicesFound int, durationNs uint64, err error) {
	o.metrics.recordScan(devicesFound, durationNs, err)
}

func (o *MetricsObserver) ObserveEventReceived() {
	o.metrics.recordEventReceived()
}

func (o *MetricsObserver) ObserveEventDropped(reason string) {
	o.metrics.recordEventDropped(reason)
}

func (o *MetricsObserver) ObserveQueueDepth(depth int) {
	o.metrics.recordQueueDepth(depth)
}

var (
	_ interfaces.Observer = (*MetricsObserver)(nil)
	_ interfaces.Observer = NoOpObserver{}
)
