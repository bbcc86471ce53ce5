package xdev

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-xdev/xdev/internal/interfaces"
)

func setDevice(ch *MockChannel, name string) {
	ch.SetProperties(name, interfaces.PropertyDict{
		"device-driver": name,
		"device-unit":   uint32(0),
	})
}

func TestNewEnumeratorRejectsInvalidContext(t *testing.T) {
	var ctx *Context
	_, err := NewEnumerator(ctx)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidHandle))
}

// TestScanUnlimitedDepthPostOrder mirrors a two-level tree (root -> a, b;
// a -> a0) scanned with no depth limit: children must be visited and
// appended before their parent, giving the order a0, a, b.
func TestScanUnlimitedDepthPostOrder(t *testing.T) {
	ctx, ch := newTestContext(t)
	ch.SetChildren("", []string{"a", "b"})
	ch.SetChildren("a", []string{"a0"})
	setDevice(ch, "a")
	setDevice(ch, "b")
	setDevice(ch, "a0")

	enum, err := NewEnumerator(ctx)
	require.NoError(t, err)
	defer enum.Unref()

	count, err := enum.Scan("", InfiniteDepth)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	var order []string
	for e := enum.GetListEntry(); e != nil; e = e.Next() {
		dev := e.GetDevice()
		order = append(order, dev.Devname())
		dev.Unref()
	}
	assert.Equal(t, []string{"a0", "a", "b"}, order)
}

// TestScanDepthLimitExcludesDeeperNodes scans the same tree with max_depth
// 1, which should stop before descending into a's children.
func TestScanDepthLimitExcludesDeeperNodes(t *testing.T) {
	ctx, ch := newTestContext(t)
	ch.SetChildren("", []string{"a", "b"})
	ch.SetChildren("a", []string{"a0"})
	setDevice(ch, "a")
	setDevice(ch, "b")
	setDevice(ch, "a0")

	enum, err := NewEnumerator(ctx)
	require.NoError(t, err)
	defer enum.Unref()

	count, err := enum.Scan("", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var order []string
	for e := enum.GetListEntry(); e != nil; e = e.Next() {
		dev := e.GetDevice()
		order = append(order, dev.Devname())
		dev.Unref()
	}
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestScanSkipsRacilyDetachedChildren(t *testing.T) {
	ctx, ch := newTestContext(t)
	ch.SetChildren("", []string{"a", "gone"})
	setDevice(ch, "a")
	ch.SetPropertiesError("gone", errors.New("enoent"))

	enum, err := NewEnumerator(ctx)
	require.NoError(t, err)
	defer enum.Unref()

	count, err := enum.Scan("", InfiniteDepth)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "a", enum.GetListEntry().GetDevice().Devname())
}

func TestScanAppliesFilter(t *testing.T) {
	ctx, ch := newTestContext(t)
	ch.SetChildren("", []string{"a", "b"})
	setDevice(ch, "a")
	setDevice(ch, "b")

	enum, err := NewEnumerator(ctx)
	require.NoError(t, err)
	defer enum.Unref()

	enum.Filter(PredicateFunc(func(d *Device) bool { return d.Devname() == "a" }), "cookie")
	assert.Equal(t, "cookie", enum.Cookie())

	count, err := enum.Scan("", InfiniteDepth)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "a", enum.GetListEntry().GetDevice().Devname())
}

func TestScanClearsPreviousResultsOnRescan(t *testing.T) {
	ctx, ch := newTestContext(t)
	ch.SetChildren("", []string{"a"})
	setDevice(ch, "a")

	enum, err := NewEnumerator(ctx)
	require.NoError(t, err)
	defer enum.Unref()

	count, err := enum.Scan("", InfiniteDepth)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	ch.SetChildren("", nil)
	count, err = enum.Scan("", InfiniteDepth)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Nil(t, enum.GetListEntry())
}

func TestEnumeratorObserverReceivesScanOutcome(t *testing.T) {
	ctx, ch := newTestContext(t)
	ch.SetChildren("", []string{"a"})
	setDevice(ch, "a")

	enum, err := NewEnumerator(ctx)
	require.NoError(t, err)
	defer enum.Unref()

	metrics := NewMetrics()
	enum.SetObserver(NewMetricsObserver(metrics))

	_, err = enum.Scan("", InfiniteDepth)
	require.NoError(t, err)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.ScanCount)
	assert.Equal(t, uint64(1), snap.ScanDeviceTotal)
	assert.Equal(t, uint64(0), snap.ScanErrors)
}

func TestEnumeratorUnrefFreesListAndReleasesContext(t *testing.T) {
	ctx, ch := newTestContext(t)
	ch.SetChildren("", []string{"a"})
	setDevice(ch, "a")

	enum, err := NewEnumerator(ctx)
	require.NoError(t, err)

	_, err = enum.Scan("", InfiniteDepth)
	require.NoError(t, err)

	ctx.Unref() // enumerator still holds its own ref
	assert.False(t, ch.IsClosed())

	enum.Unref()
	assert.True(t, ch.IsClosed())
}
