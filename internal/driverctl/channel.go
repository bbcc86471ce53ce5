// Package driverctl adapts the kernel's driver-control device into the
// three operations the core consumes (spec §4.4): ListChildren,
// GetProperties and NextEvent. It is the thin external-collaborator layer
// the spec explicitly scopes out of the core — the core only ever talks to
// the interfaces.Channel interface this package implements.
package driverctl

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/go-xdev/xdev/internal/constants"
	"github.com/go-xdev/xdev/internal/interfaces"
	"github.com/go-xdev/xdev/internal/logging"
	"github.com/go-xdev/xdev/internal/sysio"
)

// DefaultDevicePath is the conventional path of the driver-control device.
const DefaultDevicePath = "/dev/drvctl"

// Channel is the concrete, file-descriptor-backed implementation of
// interfaces.Channel. It owns one read/write fd to the control device,
// opened close-on-exec, matching the teacher's control-fd ownership model
// in internal/ctrl/control.go.
type Channel struct {
	fd      int
	logger  *logging.Logger
	ioctlFn func(fd int, request uint32, arg unsafe.Pointer) error
}

var _ interfaces.Channel = (*Channel)(nil)

// Open opens path (DefaultDevicePath if empty) read/write, close-on-exec.
func Open(path string) (*Channel, error) {
	if path == "" {
		path = DefaultDevicePath
	}
	fd, err := sysio.Xopen(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("driverctl: open %s: %w", path, err)
	}
	return &Channel{fd: fd, logger: logging.Default(), ioctlFn: rawIoctl}, nil
}

// Fd implements interfaces.Channel.
func (c *Channel) Fd() int { return c.fd }

// Close implements interfaces.Channel.
func (c *Channel) Close() error {
	return sysio.Xclose(c.fd)
}

// ListChildren implements interfaces.Channel. It tolerates the racy
// "list length then list contents" kernel interface: request the count,
// size a buffer, request again, and retry from the beginning if the count
// changed in between (spec §4.4).
func (c *Channel) ListChildren(name string) ([]string, error) {
	args := devListArgs{devname: cString(name)}

	for attempt := 0; attempt < constants.MaxListChildrenRetries; attempt++ {
		args.children = 0
		args.childname = 0
		if err := c.ioctl(drvListDevRequest, unsafe.Pointer(&args)); err != nil {
			return nil, fmt.Errorf("driverctl: DRVLISTDEV(count) %s: %w", name, err)
		}

		wanted := args.children
		if wanted == 0 {
			return nil, nil
		}

		buf := make([][devNameMax]byte, wanted)
		args.children = wanted
		args.childname = uintptr(unsafe.Pointer(&buf[0]))

		if err := c.ioctl(drvListDevRequest, unsafe.Pointer(&args)); err != nil {
			return nil, fmt.Errorf("driverctl: DRVLISTDEV(fetch) %s: %w", name, err)
		}

		if args.children != wanted {
			c.logger.WithDevice(name).Debug("child count changed mid-list, retrying",
				"was", wanted, "now", args.children)
			continue
		}

		children := make([]string, 0, wanted)
		for _, raw := range buf {
			n := goString(raw[:])
			if n == "" {
				continue
			}
			children = append(children, n)
		}
		return children, nil
	}

	return nil, fmt.Errorf("driverctl: DRVLISTDEV %s: child count kept changing", name)
}

// GetProperties implements interfaces.Channel.
func (c *Channel) GetProperties(name string) (interfaces.PropertyDict, error) {
	cmd := interfaces.PropertyDict{
		"drvctl-command": "get-properties",
		"drvctl-arguments": interfaces.PropertyDict{
			"device-name": name,
		},
	}

	reply, err := c.sendrecv(drvCtlCommandRequest, cmd)
	if err != nil {
		return nil, fmt.Errorf("driverctl: get-properties %s: %w", name, err)
	}

	if errc, ok := reply["drvctl-error"].(int8); !ok || errc != 0 {
		return nil, fmt.Errorf("driverctl: get-properties %s: device not available", name)
	}

	result, ok := reply["drvctl-result-data"].(interfaces.PropertyDict)
	if !ok {
		return nil, fmt.Errorf("driverctl: get-properties %s: missing result data", name)
	}
	return result, nil
}

// NextEvent implements interfaces.Channel. It blocks until the next
// hotplug event is available on the channel.
func (c *Channel) NextEvent() (interfaces.EventDict, error) {
	// The kernel fills the caller's 4096-byte buffer and sets len to the
	// reply length in a single ioctl for this operation, unlike the
	// two-phase DRVLISTDEV (spec §4.4: next_event is a single blocking
	// call, not a submission queue).
	buf := make([]byte, 4096)
	args := dictIOArgs{addr: uintptr(unsafe.Pointer(&buf[0])), len: uint32(len(buf))}

	if err := c.ioctl(drvGetEventRequest, unsafe.Pointer(&args)); err != nil {
		return nil, fmt.Errorf("driverctl: DRVGETEVENT: %w", err)
	}

	event, err := decodeDict(buf[:args.len])
	if err != nil {
		return nil, fmt.Errorf("driverctl: DRVGETEVENT decode: %w", err)
	}
	return event, nil
}

func (c *Channel) sendrecv(request uint32, cmd interfaces.PropertyDict) (interfaces.PropertyDict, error) {
	// The kernel overwrites the request buffer with its reply in place, so
	// the buffer is allocated with headroom beyond the encoded command.
	encoded := encodeDict(cmd)
	buf := make([]byte, len(encoded), len(encoded)+4096)
	copy(buf, encoded)
	buf = buf[:cap(buf)]

	args := dictIOArgs{addr: uintptr(unsafe.Pointer(&buf[0])), len: uint32(len(encoded))}
	if err := c.ioctl(request, unsafe.Pointer(&args)); err != nil {
		return nil, err
	}
	return decodeDict(buf[:args.len])
}

func (c *Channel) ioctl(request uint32, arg unsafe.Pointer) error {
	return c.ioctlFn(c.fd, request, arg)
}

// rawIoctl is the real implementation of Channel.ioctlFn; tests substitute
// a fake to exercise the racy list-children retry protocol without a real
// kernel device.
func rawIoctl(fd int, request uint32, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(request), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
