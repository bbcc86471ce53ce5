package driverctl

import "unsafe"

// drvctlio.h-style ioctl request numbers (group 'D'). The real NetBSD
// header computes these with the BSD _IOC family of macros; we reproduce
// that derivation here rather than hardcoding magic numbers, since the
// exact encoding (direction bits + size + group + command) is part of the
// protocol, not an implementation detail.
const (
	iocVoid  = 0x20000000
	iocOut   = 0x40000000
	iocIn    = 0x80000000
	iocInOut = iocIn | iocOut

	iocParamMask = 0x1fff

	drvctlGroup = 'D'
)

func iocRequest(dir uint32, num uint8, size uintptr) uint32 {
	return dir | (uint32(size&iocParamMask) << 16) | (uint32(drvctlGroup) << 8) | uint32(num)
}

// devListArgs mirrors struct devlistargs from <sys/drvctlio.h>: a
// fixed-size device name in, a child count in/out, and a pointer to a
// caller-allocated array of fixed-size child names out. The kernel fills
// l_children with the true count on every call; when it disagrees with
// the size the caller requested, the caller must retry (spec §4.4).
type devListArgs struct {
	devname   [16]byte
	children  uint32
	_         uint32 // padding to keep childname 8-byte aligned
	childname uintptr
}

const devNameMax = 16

var (
	drvListDevRequest     = iocRequest(iocInOut, 1, unsafe.Sizeof(devListArgs{}))
	drvCtlCommandRequest  = iocRequest(iocInOut, 2, unsafe.Sizeof(dictIOArgs{}))
	drvGetEventRequest    = iocRequest(iocOut, 3, unsafe.Sizeof(dictIOArgs{}))
)

// dictIOArgs carries a property dictionary across the ioctl boundary: a
// buffer address and a length in (the encoded request's length for a
// command, the buffer's capacity for an event receive), the kernel's
// actual reply length out. This stands in for prop_dictionary_{send,recv}_ioctl's
// internal buffer negotiation (spec §4.4's get_properties/next_event).
type dictIOArgs struct {
	addr uintptr
	len  uint32
	_    uint32
}

func cString(s string) [16]byte {
	var out [16]byte
	copy(out[:], s)
	return out
}

func goString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
