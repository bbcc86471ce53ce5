// Package interfaces provides internal interface definitions for goxdev.
// These are separate from the public API to avoid circular imports between
// the root package and the packages under internal/.
package interfaces

// PropertyDict is a decoded kernel property or event dictionary. Keys are
// the drvctl-protocol field names ("device-driver", "event", ...); values
// are whatever the wire decoder produced (string, uint32, int8, nested
// dict). Callers that need the opaque textual form use
// driverctl.Externalize instead of walking this map.
type PropertyDict map[string]any

// EventDict is the dictionary shape NextEvent returns: a PropertyDict
// expected to carry "event", "device" and "parent" string entries. The
// channel implementations do not check this; the monitor drops any event
// that lacks one of them.
type EventDict = PropertyDict

// Channel defines the three operations the core consumes from the driver
// control device (spec §4.4). A concrete implementation owns one
// read/write file descriptor to the kernel control device; a test double
// (see the root package's MockChannel) replays canned responses instead.
type Channel interface {
	// ListChildren returns the immediate children of name ("" means the
	// root of the tree). Implementations must retry the racy
	// count-then-list kernel protocol internally (spec §4.4); callers never
	// see a torn read.
	ListChildren(name string) ([]string, error)

	// GetProperties returns the kernel-side property dictionary for name,
	// or an error if the device was not found, was detached, or access was
	// denied.
	GetProperties(name string) (PropertyDict, error)

	// NextEvent blocks until the next hotplug event is available and
	// returns its dictionary. It returns an error when the channel itself
	// has gone bad (closed, HUP, I/O error) — the caller (the monitor's
	// producer) treats that as a fatal, non-retryable condition.
	NextEvent() (EventDict, error)

	// Fd returns the channel's underlying file descriptor, so the monitor
	// producer can multiplex it into a poll(2) call alongside its shutdown
	// pipe (spec §4.6 step 1).
	Fd() int

	// Close releases the channel's file descriptor.
	Close() error
}

// Logger is the minimal logging surface consumed by the core. Satisfied by
// *internal/logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Observer receives instrumentation events from the enumerator and the
// monitor. Implementations must be safe for concurrent use: the monitor
// calls these from its producer goroutine while the consumer calls
// ReceiveDevice from another.
type Observer interface {
	ObserveScan(devicesFound int, durationNs uint64, err error)
	ObserveEventReceived()
	ObserveEventDropped(reason string)
	ObserveQueueDepth(depth int)
}
