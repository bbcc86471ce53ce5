package xdev

import (
	"strconv"

	"github.com/go-xdev/xdev/internal/constants"
	"github.com/go-xdev/xdev/internal/driverctl"
)

// NodeType distinguishes the two device-node flavors the host driver table
// indexes separately: a single major-number space does not exist, so
// FromNode and Major must be told which one a caller means.
type NodeType int

const (
	NodeChar NodeType = iota
	NodeBlock
)

// DriverTableEntry is one row of the host-supplied driver table: a driver
// name and the major numbers it owns in the character and block node
// spaces. The table itself is an external collaborator (spec's "host
// helper") — this package only consumes it through DriverTable.
type DriverTableEntry struct {
	Driver     string
	CharMajor  int32
	BlockMajor int32
}

// DriverTable resolves between driver names and major numbers. A real
// implementation reads the host's device-major table (e.g. /etc/devices
// on NetBSD); tests supply a fixed slice.
type DriverTable interface {
	Entries() ([]DriverTableEntry, error)
}

// Device is an immutable snapshot of one device tree node's attributes,
// shared and refcounted, holding a strong reference to its owning Context.
// Once constructed, no field changes.
type Device struct {
	ctx         *Context
	devname     string
	driver      string
	devclass    string
	devsubclass string
	event       string
	parent      string
	unit        uint32
	xml         string
	refcount    int32
}

// FromDevname fetches name's properties over ctx's channel and constructs
// a Device from the result. device-driver and device-unit are required;
// a missing device-parent means name is a top-level entry, not a failure
// (the one field the protocol treats as genuinely optional).
func FromDevname(ctx *Context, name string) (*Device, error) {
	return newDeviceFromDevname(ctx, name)
}

func newDeviceFromDevname(ctx *Context, name string) (*Device, error) {
	if !ctx.valid() {
		return nil, NewError("FromDevname", CodeInvalidHandle, "nil or destroyed context")
	}

	result, err := ctx.channel.GetProperties(name)
	if err != nil {
		return nil, &Error{Op: "FromDevname", Code: CodeRacyDetach,
			Msg: "get-properties " + name + ": " + err.Error(), Inner: err}
	}

	driver, ok := result["device-driver"].(string)
	if !ok || driver == "" {
		return nil, NewError("FromDevname", CodeDecodeError, "missing device-driver for "+name)
	}
	unit, ok := result["device-unit"].(uint32)
	if !ok {
		return nil, NewError("FromDevname", CodeDecodeError, "missing device-unit for "+name)
	}

	// device-parent is the one optional field: absent means top-level.
	parent, _ := result["device-parent"].(string)

	return &Device{
		ctx:         ctx.Ref(),
		devname:     name,
		driver:      driver,
		devclass:    constants.UnknownClass,
		devsubclass: constants.UnknownClass,
		event:       constants.EventAttach,
		parent:      parent,
		unit:        unit,
		xml:         driverctl.Externalize(result),
		refcount:    1,
	}, nil
}

// FromNode resolves major to a driver name in table (matching the
// character or block major field per nodeType), then delegates to
// FromDevname with devname = driver + decimal(unit).
func FromNode(ctx *Context, major int32, unit uint32, nodeType NodeType, table DriverTable) (*Device, error) {
	if !ctx.valid() {
		return nil, NewError("FromNode", CodeInvalidHandle, "nil or destroyed context")
	}
	if table == nil {
		return nil, NewError("FromNode", CodeInvalidHandle, "nil driver table")
	}

	entries, err := table.Entries()
	if err != nil {
		return nil, WrapError("FromNode", err)
	}

	driver, err := lookupDriver(entries, major, nodeType)
	if err != nil {
		return nil, err
	}

	return newDeviceFromDevname(ctx, driver+strconv.FormatUint(uint64(unit), 10))
}

func lookupDriver(entries []DriverTableEntry, major int32, nodeType NodeType) (string, error) {
	for _, e := range entries {
		if nodeType == NodeChar && e.CharMajor == major {
			return e.Driver, nil
		}
		if nodeType == NodeBlock && e.BlockMajor == major {
			return e.Driver, nil
		}
	}
	return "", NewError("FromNode", CodeDecodeError, "no driver owns the requested major number")
}

// Major re-resolves d's major number for nodeType from table. This is a
// live lookup, not a cached field: the driver table can change between a
// device's construction and this call, and the result is not memoized to
// avoid silently going stale.
func (d *Device) Major(nodeType NodeType, table DriverTable) (int32, error) {
	if d == nil {
		return 0, NewError("Major", CodeInvalidHandle, "nil device")
	}
	if table == nil {
		return 0, NewError("Major", CodeInvalidHandle, "nil driver table")
	}

	entries, err := table.Entries()
	if err != nil {
		return 0, WrapError("Major", err)
	}

	for _, e := range entries {
		if e.Driver != d.driver {
			continue
		}
		if nodeType == NodeChar {
			return e.CharMajor, nil
		}
		return e.BlockMajor, nil
	}
	return 0, NewError("Major", CodeDecodeError, "driver "+d.driver+" not found in driver table")
}

// Ref increments d's refcount and returns it.
func (d *Device) Ref() *Device {
	if d == nil {
		return nil
	}
	d.refcount++
	return d
}

// Unref decrements d's refcount; on the last release it drops the strong
// reference to d's context.
func (d *Device) Unref() {
	if d == nil {
		return
	}
	d.refcount--
	if d.refcount <= 0 {
		d.ctx.Unref()
	}
}

func (d *Device) Devname() string {
	if d == nil {
		return ""
	}
	return d.devname
}

func (d *Device) Driver() string {
	if d == nil {
		return ""
	}
	return d.driver
}

func (d *Device) DevClass() string {
	if d == nil {
		return ""
	}
	return d.devclass
}

func (d *Device) DevSubclass() string {
	if d == nil {
		return ""
	}
	return d.devsubclass
}

func (d *Device) Event() string {
	if d == nil {
		return ""
	}
	return d.event
}

func (d *Device) Parent() string {
	if d == nil {
		return ""
	}
	return d.parent
}

func (d *Device) Unit() uint32 {
	if d == nil {
		return constants.UnknownUnit
	}
	return d.unit
}

// Externalize returns the opaque, unparsed externalized property blob
// backing this device record.
func (d *Device) Externalize() string {
	if d == nil {
		return ""
	}
	return d.xml
}
