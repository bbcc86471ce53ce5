package xdev

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/go-xdev/xdev/internal/interfaces"
)

// MockChannel is a test double for interfaces.Channel: a fixed device tree
// plus a scripted event queue, with no real kernel device behind it. It
// lets downstream consumers of this package unit test their own code
// (and lets this package's own tests exercise Enumerator and Monitor)
// without a drvctl device. Its Fd is backed by a real anonymous pipe so
// a Monitor's producer goroutine can poll(2) it exactly as it would poll
// a real driver-control channel.
type MockChannel struct {
	mu sync.Mutex

	children   map[string][]string
	properties map[string]interfaces.PropertyDict
	propErrs   map[string]error

	events   []interfaces.EventDict
	eventErr error
	eventIdx int

	readyR, readyW int
	closed         bool

	listChildrenCalls  int
	getPropertiesCalls int
	nextEventCalls     int
}

// NewMockChannel creates an empty mock with no children, properties or
// events configured.
func NewMockChannel() *MockChannel {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		// A pipe2 failure here means the process is out of file
		// descriptors; nothing a test can sensibly recover from.
		panic("xdev: mock channel pipe: " + err.Error())
	}
	return &MockChannel{
		children:   make(map[string][]string),
		properties: make(map[string]interfaces.PropertyDict),
		propErrs:   make(map[string]error),
		readyR:     fds[0],
		readyW:     fds[1],
	}
}

// SetChildren configures name's immediate children for ListChildren.
func (m *MockChannel) SetChildren(name string, children []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.children[name] = children
}

// SetProperties configures the property dictionary GetProperties(name)
// returns. The dictionary should carry at least device-driver and
// device-unit to construct a valid Device.
func (m *MockChannel) SetProperties(name string, props interfaces.PropertyDict) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.properties[name] = props
}

// SetPropertiesError makes GetProperties(name) fail, simulating a racy
// detach between list_children and get_properties.
func (m *MockChannel) SetPropertiesError(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.propErrs[name] = err
}

// QueueEvent appends an event dictionary to the scripted sequence
// NextEvent replays in order, and wakes a single poll(2) on Fd the way a
// real kernel event would.
func (m *MockChannel) QueueEvent(ev interfaces.EventDict) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	_, _ = unix.Write(m.readyW, []byte{1})
}

// SetEventError makes a direct NextEvent call fail (after the scripted
// queue is exhausted) with err. It has no effect on Fd's readiness, since
// nothing was queued to wake a poll for it; callers driving a Monitor
// end-to-end should close the channel instead to simulate a dead stream.
func (m *MockChannel) SetEventError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventErr = err
}

// ListChildren implements interfaces.Channel.
func (m *MockChannel) ListChildren(name string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listChildrenCalls++
	return append([]string(nil), m.children[name]...), nil
}

// GetProperties implements interfaces.Channel.
func (m *MockChannel) GetProperties(name string) (interfaces.PropertyDict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getPropertiesCalls++

	if err, ok := m.propErrs[name]; ok {
		return nil, err
	}
	props, ok := m.properties[name]
	if !ok {
		return nil, NewError("MockChannel.GetProperties", CodeRacyDetach, "no properties configured for "+name)
	}
	return props, nil
}

// NextEvent implements interfaces.Channel: it drains the one readiness
// byte QueueEvent wrote and returns the next scripted event, keeping Fd's
// pending byte count equal to the number of events not yet delivered.
func (m *MockChannel) NextEvent() (interfaces.EventDict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEventCalls++

	if m.eventIdx < len(m.events) {
		var b [1]byte
		_, _ = unix.Read(m.readyR, b[:])
		ev := m.events[m.eventIdx]
		m.eventIdx++
		return ev, nil
	}
	if m.eventErr != nil {
		return nil, m.eventErr
	}
	return nil, NewError("MockChannel.NextEvent", CodeChannelError, "event queue exhausted")
}

// Fd implements interfaces.Channel: the read end of an internal pipe that
// becomes readable once per QueueEvent call and goes to POLLHUP once
// Close is called, so a Monitor's producer terminates the same way it
// would against a real closed driver-control channel.
func (m *MockChannel) Fd() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readyR
}

// Close implements interfaces.Channel.
func (m *MockChannel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	_ = unix.Close(m.readyW)
	return nil
}

// IsClosed reports whether Close has been called.
func (m *MockChannel) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// CallCounts returns how many times each operation has been invoked, for
// assertions about retry behavior.
func (m *MockChannel) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"list_children":  m.listChildrenCalls,
		"get_properties": m.getPropertiesCalls,
		"next_event":     m.nextEventCalls,
	}
}

var _ interfaces.Channel = (*MockChannel)(nil)
