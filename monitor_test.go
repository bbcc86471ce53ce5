package xdev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-xdev/xdev/internal/interfaces"
)

func TestNewMonitorRejectsInvalidContext(t *testing.T) {
	var ctx *Context
	_, err := NewMonitor(ctx)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidHandle))
}

func TestMonitorGetFdValidBeforeEnableReceiving(t *testing.T) {
	ctx, _ := newTestContext(t)
	mon, err := NewMonitor(ctx)
	require.NoError(t, err)
	defer mon.Unref()

	assert.GreaterOrEqual(t, mon.GetFd(), 0)
}

func TestMonitorEnableReceivingTwiceFails(t *testing.T) {
	ctx, _ := newTestContext(t)
	mon, err := NewMonitor(ctx)
	require.NoError(t, err)
	defer mon.Unref()

	require.NoError(t, mon.EnableReceiving())
	err = mon.EnableReceiving()
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidHandle))
}

func TestMonitorReceiveDeviceEndToEnd(t *testing.T) {
	ctx, ch := newTestContext(t)
	mon, err := NewMonitor(ctx)
	require.NoError(t, err)
	defer mon.Unref()

	require.NoError(t, mon.EnableReceiving())

	ch.QueueEvent(interfaces.EventDict{
		"event":  EventAttach,
		"device": "wd0",
		"parent": "pciide0",
	})

	dev, err := mon.ReceiveDevice()
	require.NoError(t, err)
	defer dev.Unref()

	assert.Equal(t, "wd0", dev.Devname())
	assert.Equal(t, "pciide0", dev.Parent())
	assert.Equal(t, EventAttach, dev.Event())
	assert.Equal(t, UnknownClass, dev.Driver())
	assert.Equal(t, UnknownClass, dev.DevClass())
	assert.Equal(t, UnknownUnit, dev.Unit())
}

func TestMonitorFilterDropsRejectedEvents(t *testing.T) {
	ctx, ch := newTestContext(t)
	mon, err := NewMonitor(ctx)
	require.NoError(t, err)
	defer mon.Unref()

	mon.Filter(PredicateFunc(func(d *Device) bool { return d.Devname() != "rejected0" }), "cookie")
	assert.Equal(t, "cookie", mon.Cookie())

	require.NoError(t, mon.EnableReceiving())

	ch.QueueEvent(interfaces.EventDict{"event": EventAttach, "device": "rejected0", "parent": ""})
	ch.QueueEvent(interfaces.EventDict{"event": EventAttach, "device": "kept0", "parent": ""})

	dev, err := mon.ReceiveDevice()
	require.NoError(t, err)
	defer dev.Unref()
	assert.Equal(t, "kept0", dev.Devname())
}

func TestMonitorDecodeErrorEventIsDroppedAndObserved(t *testing.T) {
	ctx, ch := newTestContext(t)
	mon, err := NewMonitor(ctx)
	require.NoError(t, err)
	defer mon.Unref()

	metrics := NewMetrics()
	mon.SetObserver(NewMetricsObserver(metrics))
	require.NoError(t, mon.EnableReceiving())

	ch.QueueEvent(interfaces.EventDict{"event": EventAttach}) // missing device/parent
	ch.QueueEvent(interfaces.EventDict{"event": EventAttach, "device": "wd0", "parent": ""})

	dev, err := mon.ReceiveDevice()
	require.NoError(t, err)
	defer dev.Unref()
	assert.Equal(t, "wd0", dev.Devname())

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.EventsDropped)
	assert.Equal(t, uint64(1), snap.EventsReceived)
}

func TestMonitorUnrefTearsDownRunningProducer(t *testing.T) {
	ctx, ch := newTestContext(t)
	mon, err := NewMonitor(ctx)
	require.NoError(t, err)

	require.NoError(t, mon.EnableReceiving())
	mon.Unref()

	ctx.Unref() // the test's own context ref is still outstanding
	assert.True(t, ch.IsClosed())
}

func TestMonitorUnrefWithoutEnableReceivingIsSafe(t *testing.T) {
	ctx, ch := newTestContext(t)
	mon, err := NewMonitor(ctx)
	require.NoError(t, err)

	assert.NotPanics(t, mon.Unref)
	ctx.Unref() // the test's own context ref is still outstanding
	assert.True(t, ch.IsClosed())
}

func TestMonitorRefKeepsContextAliveAcrossEarlyUnref(t *testing.T) {
	ctx, ch := newTestContext(t)
	mon, err := NewMonitor(ctx)
	require.NoError(t, err)

	mon.Ref()
	mon.Unref()
	assert.False(t, ch.IsClosed(), "one remaining ref should keep the monitor (and context) alive")

	mon.Unref()
	ctx.Unref() // the test's own context ref is still outstanding
	assert.True(t, ch.IsClosed())
}
