// Package sysio provides EINTR-safe wrappers around the handful of raw
// syscalls the driver-control channel and the monitor's pipes need:
// open, close, read, write and poll. None of them use partial-byte
// semantics — every pipe operation in this module moves exactly one byte.
package sysio

import (
	"golang.org/x/sys/unix"

	"github.com/go-xdev/xdev/internal/constants"
)

// Xopen opens path, retrying the call if it is interrupted by a signal.
func Xopen(path string, flags int, mode uint32) (int, error) {
	for i := 0; i < constants.MaxEINTRRetries; i++ {
		fd, err := unix.Open(path, flags, mode)
		if err == unix.EINTR {
			continue
		}
		return fd, err
	}
	return -1, unix.EINTR
}

// Xclose closes fd, retrying on EINTR. Per POSIX, a second close after an
// EINTR-interrupted close is technically unsafe on some platforms, but the
// retry loop here mirrors the C original's xclose and is bounded.
func Xclose(fd int) error {
	for i := 0; i < constants.MaxEINTRRetries; i++ {
		err := unix.Close(fd)
		if err == unix.EINTR {
			continue
		}
		return err
	}
	return unix.EINTR
}

// Xread reads up to len(p) bytes from fd, retrying on EINTR. It does not loop to
// fill a short read — every caller in this module reads exactly one byte.
func Xread(fd int, p []byte) (int, error) {
	for i := 0; i < constants.MaxEINTRRetries; i++ {
		n, err := unix.Read(fd, p)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
	return 0, unix.EINTR
}

// Xwrite writes p to fd, retrying on EINTR.
func Xwrite(fd int, p []byte) (int, error) {
	for i := 0; i < constants.MaxEINTRRetries; i++ {
		n, err := unix.Write(fd, p)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
	return 0, unix.EINTR
}

// Xpoll polls fds with the given timeout (milliseconds; -1 blocks
// indefinitely), retrying on EINTR.
func Xpoll(fds []unix.PollFd, timeoutMs int) (int, error) {
	for i := 0; i < constants.MaxEINTRRetries; i++ {
		n, err := unix.Poll(fds, timeoutMs)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
	return 0, unix.EINTR
}

// XpollForever polls fds with no timeout, retrying EINTR without limit.
// The monitor's producer loop uses this: the only two ways out are the
// shutdown pipe becoming readable or the channel fd reporting an error
// condition, and a bounded EINTR retry count would fail blocking waits
// that simply outlive MaxEINTRRetries unrelated signal deliveries.
func XpollForever(fds []unix.PollFd) (int, error) {
	for {
		n, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}
