// Package constants holds the small set of tunables the rest of the module
// refers to by name instead of inline literals.
package constants

const (
	// InfiniteDepth is the sentinel max_depth value meaning "no depth limit".
	InfiniteDepth = -1

	// UnknownUnit is the placeholder device-unit value for events where the
	// kernel does not supply one (the monitor's producer path).
	UnknownUnit = ^uint32(0)

	// UnknownClass is the placeholder devclass/devsubclass value. The drvctl
	// protocol this client speaks to never surfaces a richer class taxonomy;
	// callers should treat this as "not available", not as a real class.
	UnknownClass = "???"

	// EventAttach / EventDetach are the two event tags the kernel hotplug
	// stream is documented to emit. Enumerated (rather than monitored)
	// devices are always reported with EventAttach.
	EventAttach = "device-attach"
	EventDetach = "device-detach"
)

const (
	// MaxEINTRRetries bounds the EINTR retry loop in internal/sysio. A
	// syscall that keeps returning EINTR this many times in a row indicates
	// something is wrong with the process's signal disposition, not a
	// transient interruption.
	MaxEINTRRetries = 64

	// MaxListChildrenRetries bounds the racy "count then list" retry loop
	// in internal/driverctl.ListChildren. The kernel interface requires
	// retrying if the child count changes between the sizing call and the
	// fetch call; this caps how many times we'll chase a moving target.
	MaxListChildrenRetries = 16
)

const (
	// MonitorQueueSoftLimit is a capacity hint for a monitor's
	// pending-device queue. Nothing in this module reads it: the queue has
	// no enforced limit, and the event pipe's kernel buffer is the only
	// backpressure signal.
	MonitorQueueSoftLimit = 256
)
