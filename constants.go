package xdev

import "github.com/go-xdev/xdev/internal/constants"

// Re-export the small set of tunables as public constants.
const (
	// InfiniteDepth is the max_depth sentinel meaning "no depth limit".
	InfiniteDepth = constants.InfiniteDepth

	// UnknownUnit is the placeholder device-unit value for events that
	// carry no unit of their own.
	UnknownUnit = constants.UnknownUnit

	// UnknownClass is the placeholder devclass/devsubclass value.
	UnknownClass = constants.UnknownClass

	// EventAttach / EventDetach are the two event tags the driver control
	// channel is documented to emit.
	EventAttach = constants.EventAttach
	EventDetach = constants.EventDetach
)
