package xdev

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/go-xdev/xdev/internal/constants"
	"github.com/go-xdev/xdev/internal/driverctl"
	"github.com/go-xdev/xdev/internal/interfaces"
	"github.com/go-xdev/xdev/internal/logging"
	"github.com/go-xdev/xdev/internal/sysio"
)

func externalizeEvent(ev interfaces.EventDict) string {
	return driverctl.Externalize(ev)
}

// monitorState tracks Monitor's IDLE/RUNNING/TORN lifecycle (§4.6).
type monitorState int32

const (
	monitorIdle monitorState = iota
	monitorRunning
	monitorTorn
)

// Monitor is the background event pump: a producer goroutine blocks on
// the driver-control channel's event stream, decodes and normalizes each
// event, buffers it in a mutex-guarded queue, and signals a
// consumer-owned file descriptor so an arbitrary event loop can integrate
// with it. Teardown is cooperative via a private shutdown pipe, so it
// completes in bounded time independent of the kernel channel's behavior.
type Monitor struct {
	ctx *Context

	mu    sync.Mutex // guards queue only; never held across blocking I/O
	queue *deviceList

	predicate Predicate
	cookie    any
	observer  interfaces.Observer

	eventR, eventW       int
	shutdownR, shutdownW int

	producerDone chan struct{}
	state        monitorState

	refcount int32
}

// NewMonitor creates a monitor against ctx in the IDLE state, with
// refcount 1. It allocates the event pipe and shutdown pipe up front so
// GetFd is valid even before EnableReceiving is called.
func NewMonitor(ctx *Context) (*Monitor, error) {
	if !ctx.valid() {
		return nil, NewError("NewMonitor", CodeInvalidHandle, "nil or destroyed context")
	}

	eventR, eventW, err := newPipe()
	if err != nil {
		return nil, WrapError("NewMonitor", err)
	}
	shutdownR, shutdownW, err := newPipe()
	if err != nil {
		_ = sysio.Xclose(eventR)
		_ = sysio.Xclose(eventW)
		return nil, WrapError("NewMonitor", err)
	}

	return &Monitor{
		ctx:       ctx.Ref(),
		queue:     &deviceList{},
		observer:  NoOpObserver{},
		eventR:    eventR,
		eventW:    eventW,
		shutdownR: shutdownR,
		shutdownW: shutdownW,
		refcount:  1,
		state:     monitorIdle,
	}, nil
}

// newPipe creates an anonymous pipe, both ends non-blocking and
// close-on-exec, matching the event/shutdown pipe attributes (§3).
func newPipe() (r, w int, err error) {
	var fds [2]int
	if perr := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); perr != nil {
		return -1, -1, perr
	}
	return fds[0], fds[1], nil
}

// SetObserver installs an instrumentation sink; NoOpObserver is used until
// one is set.
func (m *Monitor) SetObserver(o interfaces.Observer) {
	if m == nil || o == nil {
		return
	}
	m.observer = o
}

// Filter installs a predicate (and opaque cookie) applied to each event
// the producer decodes. A predicate rejecting an event drops it from the
// queue and from any readiness signal (§8 property 9).
func (m *Monitor) Filter(p Predicate, cookie any) {
	if m == nil {
		return
	}
	m.predicate = p
	m.cookie = cookie
}

// Cookie returns the opaque value last passed to Filter.
func (m *Monitor) Cookie() any {
	if m == nil {
		return nil
	}
	return m.cookie
}

// Ref increments m's refcount and returns it.
func (m *Monitor) Ref() *Monitor {
	if m == nil {
		return nil
	}
	m.refcount++
	return m
}

// Unref decrements m's refcount. On the last release it tears down: if a
// producer is running, it signals the shutdown pipe and joins the
// producer before closing any descriptor, then drains the queue and
// drops the context reference. Errors during teardown are unobservable.
func (m *Monitor) Unref() {
	if m == nil || m.state == monitorTorn {
		return
	}
	m.refcount--
	if m.refcount > 0 {
		return
	}

	if m.state == monitorRunning {
		if _, err := sysio.Xwrite(m.shutdownW, []byte{1}); err != nil {
			logging.Default().WithError(err).Warn("monitor: shutdown signal write failed")
		}
		<-m.producerDone
	}

	_ = sysio.Xclose(m.eventR)
	_ = sysio.Xclose(m.eventW)
	_ = sysio.Xclose(m.shutdownR)
	_ = sysio.Xclose(m.shutdownW)

	m.mu.Lock()
	m.queue.free()
	m.mu.Unlock()

	m.state = monitorTorn
	m.ctx.Unref()
}

// GetFd returns the read end of the event pipe: a level-triggered
// readable descriptor whose readiness means at least one device is
// pending in the queue. Valid from construction, not just after
// EnableReceiving.
func (m *Monitor) GetFd() int {
	if m == nil {
		return -1
	}
	return m.eventR
}

// EnableReceiving spawns the producer goroutine, transitioning IDLE to
// RUNNING. Legal exactly once per monitor.
func (m *Monitor) EnableReceiving() error {
	if m == nil {
		return NewError("EnableReceiving", CodeInvalidHandle, "nil monitor")
	}
	if m.state != monitorIdle {
		return NewError("EnableReceiving", CodeInvalidHandle, "monitor is not idle")
	}

	m.state = monitorRunning
	m.producerDone = make(chan struct{})
	go m.run()
	return nil
}

// run is the producer loop (§4.6): poll the channel fd and the shutdown
// pipe together, decode events as they arrive, and append survivors to
// the queue, signalling one byte per accepted event.
func (m *Monitor) run() {
	defer close(m.producerDone)

	fds := []unix.PollFd{
		{Fd: int32(m.ctx.channel.Fd()), Events: unix.POLLIN},
		{Fd: int32(m.shutdownR), Events: unix.POLLIN},
	}

	for {
		fds[0].Revents = 0
		fds[1].Revents = 0

		if _, err := sysio.XpollForever(fds); err != nil {
			logging.Default().WithError(err).Error("monitor: poll failed, terminating producer")
			return
		}

		if fds[1].Revents&unix.POLLIN != 0 {
			logging.Default().Debug("monitor: shutdown signaled, producer exiting")
			return
		}

		if fds[0].Revents&(unix.POLLERR|unix.POLLNVAL|unix.POLLHUP) != 0 {
			logging.Default().Warn("monitor: channel stream dead, producer exiting")
			return
		}

		if fds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		if !m.handleEvent() {
			return
		}
	}
}

// handleEvent reads and queues one event. It returns false when NextEvent
// failed, which ends the producer loop.
func (m *Monitor) handleEvent() bool {
	event, err := m.ctx.channel.NextEvent()
	if err != nil {
		logging.Default().WithError(err).Error("monitor: next-event failed, terminating producer")
		return false
	}

	dev, ok := m.decodeEvent(event)
	if !ok {
		m.observer.ObserveEventDropped("decode error")
		return true
	}

	if m.predicate != nil && !m.predicate.ShouldInclude(dev) {
		logging.Default().WithDevice(dev.Devname()).WithEvent(dev.Event()).Debug("monitor: event rejected by filter")
		dev.Unref()
		return true
	}

	entry := newListEntry(dev)
	m.mu.Lock()
	m.queue.append(entry)
	depth := m.queue.count
	m.mu.Unlock()
	m.observer.ObserveQueueDepth(depth)

	if _, err := sysio.Xwrite(m.eventW, []byte{1}); err != nil {
		m.mu.Lock()
		m.queue.removeLast(entry)
		m.mu.Unlock()
		dev.Unref()
		m.observer.ObserveEventDropped("event pipe write failed")
		return true
	}

	m.observer.ObserveEventReceived()
	return true
}

// decodeEvent extracts event/device/parent from a raw event dictionary
// and builds a device record for it. devclass/devsubclass/driver are the
// "???" placeholder and unit is UnknownUnit: the event stream this client
// speaks to does not surface a richer taxonomy (§9 design notes).
func (m *Monitor) decodeEvent(ev interfaces.EventDict) (*Device, bool) {
	eventTag, ok := ev["event"].(string)
	if !ok {
		return nil, false
	}
	deviceName, ok := ev["device"].(string)
	if !ok {
		return nil, false
	}
	parent, ok := ev["parent"].(string)
	if !ok {
		return nil, false
	}

	return &Device{
		ctx:         m.ctx.Ref(),
		devname:     deviceName,
		driver:      constants.UnknownClass,
		devclass:    constants.UnknownClass,
		devsubclass: constants.UnknownClass,
		event:       eventTag,
		parent:      parent,
		unit:        constants.UnknownUnit,
		xml:         externalizeEvent(ev),
		refcount:    1,
	}, true
}

// ReceiveDevice blocks until the event pipe is readable, consumes its
// one-byte signal, and returns the head of the queue with ownership
// transferred to the caller. Returns an error (CodeOutOfBuffers) in the
// defensive case where the pipe signaled but the queue was empty, which
// must not occur under a correct producer.
func (m *Monitor) ReceiveDevice() (*Device, error) {
	if m == nil {
		return nil, NewError("ReceiveDevice", CodeInvalidHandle, "nil monitor")
	}

	waitFds := []unix.PollFd{{Fd: int32(m.eventR), Events: unix.POLLIN}}
	if _, err := sysio.XpollForever(waitFds); err != nil {
		return nil, WrapError("ReceiveDevice", err)
	}

	var b [1]byte
	if _, err := sysio.Xread(m.eventR, b[:]); err != nil {
		return nil, WrapError("ReceiveDevice", err)
	}

	m.mu.Lock()
	entry := m.queue.popFront()
	m.mu.Unlock()

	if entry == nil {
		return nil, NewError("ReceiveDevice", CodeOutOfBuffers, "event signaled but queue was empty")
	}
	return entry.device, nil
}
