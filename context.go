// Package xdev is a userland client for a BSD-family kernel's device tree:
// one-shot enumeration with property extraction, and a continuous monitor
// delivering device-attach/device-detach events through a pollable file
// descriptor. The kernel's driver-control channel protocol is hidden behind
// the handle-based API in this package; internal/driverctl is the only
// piece that speaks ioctl.
package xdev

import (
	"github.com/go-xdev/xdev/internal/driverctl"
	"github.com/go-xdev/xdev/internal/interfaces"
	"github.com/go-xdev/xdev/internal/logging"
)

// Context is the root handle: it owns the driver-control channel and is
// shared, refcounted, by every device record, enumerator and monitor built
// against it. Refcounts are not atomic (§5 of the design this package
// follows): a Context must be ref'd/unref'd from a single logical owner at
// a time, or the caller must supply its own synchronization.
type Context struct {
	channel  interfaces.Channel
	userdata any
	refcount int32
	closed   bool
}

// Open opens the driver-control device at path (the platform default if
// path is empty) and wraps it in a new Context with refcount 1.
func Open(path string) (*Context, error) {
	channel, err := driverctl.Open(path)
	if err != nil {
		return nil, WrapError("Open", err)
	}
	return NewContext(channel)
}

// NewContext wraps an already-open channel in a Context with refcount 1.
// Exposed separately from Open so tests can supply a MockChannel.
func NewContext(channel interfaces.Channel) (*Context, error) {
	if channel == nil {
		return nil, NewError("NewContext", CodeInvalidHandle, "nil channel")
	}
	return &Context{channel: channel, refcount: 1}, nil
}

// Ref increments the context's refcount and returns it.
func (x *Context) Ref() *Context {
	if x == nil {
		return nil
	}
	x.refcount++
	return x
}

// Unref decrements the context's refcount. On the last release it closes
// the driver-control channel. Errors during destruction are unobservable,
// matching the "destructors never fail" contract.
func (x *Context) Unref() {
	if x == nil || x.closed {
		return
	}
	x.refcount--
	if x.refcount <= 0 {
		x.closed = true
		if err := x.channel.Close(); err != nil {
			logging.Default().WithError(err).Warn("context: channel close failed")
		}
	}
}

// GetUserdata returns the caller-attached opaque value, or nil if none was
// set or the handle is invalid.
func (x *Context) GetUserdata() any {
	if x == nil {
		return nil
	}
	return x.userdata
}

// SetUserdata attaches an opaque caller value to the context.
func (x *Context) SetUserdata(v any) {
	if x == nil {
		return
	}
	x.userdata = v
}

func (x *Context) valid() bool {
	return x != nil && !x.closed
}
