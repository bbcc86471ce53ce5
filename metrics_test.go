package xdev

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordScanSuccess(t *testing.T) {
	m := NewMetrics()
	m.recordScan(5, 50_000, nil)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.ScanCount)
	assert.Equal(t, uint64(0), snap.ScanErrors)
	assert.Equal(t, uint64(5), snap.ScanDeviceTotal)
	assert.Equal(t, uint64(50_000), snap.AvgScanLatencyNs)
	assert.Equal(t, uint64(1), snap.ScanLatencyHistogram[0]) // 50us falls in the 100us bucket
}

func TestMetricsRecordScanFailureDoesNotCountDevicesOrLatency(t *testing.T) {
	m := NewMetrics()
	m.recordScan(0, 999, errors.New("boom"))

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.ScanCount)
	assert.Equal(t, uint64(1), snap.ScanErrors)
	assert.Equal(t, uint64(0), snap.ScanDeviceTotal)
	assert.Equal(t, uint64(0), snap.AvgScanLatencyNs)
}

func TestMetricsRecordEventReceivedAndDropped(t *testing.T) {
	m := NewMetrics()
	m.recordEventReceived()
	m.recordEventReceived()
	m.recordEventDropped("decode error")

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.EventsReceived)
	assert.Equal(t, uint64(1), snap.EventsDropped)
}

func TestMetricsQueueDepthTracksMaxAndAverage(t *testing.T) {
	m := NewMetrics()
	m.recordQueueDepth(1)
	m.recordQueueDepth(5)
	m.recordQueueDepth(3)

	snap := m.Snapshot()
	assert.Equal(t, uint32(5), snap.MaxQueueDepth)
	assert.InDelta(t, 3.0, snap.AvgQueueDepth, 0.01)
}

func TestMetricsResetZeroesCounters(t *testing.T) {
	m := NewMetrics()
	m.recordScan(3, 100, nil)
	m.recordEventReceived()
	m.recordQueueDepth(4)

	m.Reset()
	snap := m.Snapshot()
	assert.Equal(t, uint64(0), snap.ScanCount)
	assert.Equal(t, uint64(0), snap.EventsReceived)
	assert.Equal(t, uint32(0), snap.MaxQueueDepth)
}

func TestNoOpObserverDiscardsEverything(t *testing.T) {
	obs := NoOpObserver{}
	assert.NotPanics(t, func() {
		obs.ObserveScan(1, 2, nil)
		obs.ObserveEventReceived()
		obs.ObserveEventDropped("reason")
		obs.ObserveQueueDepth(3)
	})
}

func TestMetricsObserverForwardsToMetrics(t *testing.T) {
	m := NewMetrics()
	obs := NewMetricsObserver(m)

	obs.ObserveScan(2, 1000, nil)
	obs.ObserveEventReceived()
	obs.ObserveEventDropped("x")
	obs.ObserveQueueDepth(7)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.ScanCount)
	assert.Equal(t, uint64(1), snap.EventsReceived)
	assert.Equal(t, uint64(1), snap.EventsDropped)
	assert.Equal(t, uint32(7), snap.MaxQueueDepth)
}
