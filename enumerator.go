package xdev

import (
	"time"

	"github.com/go-xdev/xdev/internal/constants"
	"github.com/go-xdev/xdev/internal/interfaces"
	"github.com/go-xdev/xdev/internal/logging"
)

// Predicate decides whether a device record should be kept. A return of
// false means exclude the device from results, matching the "non-zero
// return means exclude" convention of the C callback this replaces.
type Predicate interface {
	ShouldInclude(d *Device) bool
}

// PredicateFunc adapts a plain function to Predicate.
type PredicateFunc func(d *Device) bool

func (f PredicateFunc) ShouldInclude(d *Device) bool { return f(d) }

// Enumerator performs depth-limited recursive scans of the device tree,
// resolving each child's properties and collecting survivors in
// post-order. Each child is decoded through the same path as FromDevname;
// the racy list-then-fetch retry is handled inside the channel's
// ListChildren, not here.
type Enumerator struct {
	ctx       *Context
	list      *deviceList
	predicate Predicate
	cookie    any
	observer  interfaces.Observer
	refcount  int32
	closed    bool
}

// NewEnumerator creates an enumerator against ctx with refcount 1.
func NewEnumerator(ctx *Context) (*Enumerator, error) {
	if !ctx.valid() {
		return nil, NewError("NewEnumerator", CodeInvalidHandle, "nil or destroyed context")
	}
	return &Enumerator{ctx: ctx.Ref(), list: &deviceList{}, refcount: 1, observer: NoOpObserver{}}, nil
}

// SetObserver installs an instrumentation sink; NoOpObserver is used until
// one is set.
func (e *Enumerator) SetObserver(o interfaces.Observer) {
	if e == nil || o == nil {
		return
	}
	e.observer = o
}

// Ref increments e's refcount and returns it.
func (e *Enumerator) Ref() *Enumerator {
	if e == nil {
		return nil
	}
	e.refcount++
	return e
}

// Unref decrements e's refcount; on the last release it frees the
// collected list and drops the context reference.
func (e *Enumerator) Unref() {
	if e == nil || e.closed {
		return
	}
	e.refcount--
	if e.refcount <= 0 {
		e.closed = true
		e.list.free()
		e.ctx.Unref()
	}
}

// Filter installs a predicate (and opaque cookie) applied to each
// candidate device during Scan. A nil predicate includes everything.
func (e *Enumerator) Filter(p Predicate, cookie any) {
	if e == nil {
		return
	}
	e.predicate = p
	e.cookie = cookie
}

// Cookie returns the opaque value last passed to Filter.
func (e *Enumerator) Cookie() any {
	if e == nil {
		return nil
	}
	return e.cookie
}

// GetListEntry returns the head of the most recent scan's result list, or
// nil if empty.
func (e *Enumerator) GetListEntry() *ListEntry {
	if e == nil {
		return nil
	}
	return e.list.first()
}

// Scan clears the enumerator's list and walks the tree rooted at
// rootDevname to maxDepth (constants.InfiniteDepth for unlimited),
// returning the count of devices accepted into the list, or -1 on
// failure. Children are visited before their parent is added
// (post-order); a rejecting predicate drops a device from the list
// without pruning its already-visited subtree.
func (e *Enumerator) Scan(rootDevname string, maxDepth int) (int, error) {
	if e == nil || e.closed {
		return -1, NewError("Scan", CodeInvalidHandle, "nil or destroyed enumerator")
	}

	e.list.free()
	e.list = &deviceList{}

	started := time.Now()
	err := e.scanChildren(rootDevname, 0, maxDepth)
	elapsed := uint64(time.Since(started).Nanoseconds())

	if err != nil {
		e.list.free()
		e.list = &deviceList{}
		wrapped := WrapError("Scan", err)
		e.observer.ObserveScan(0, elapsed, wrapped)
		return -1, wrapped
	}
	e.observer.ObserveScan(e.list.count, elapsed, nil)
	return e.list.count, nil
}

func (e *Enumerator) scanChildren(parent string, parentDepth, maxDepth int) error {
	children, err := e.ctx.channel.ListChildren(parent)
	if err != nil {
		return err
	}

	childDepth := parentDepth + 1
	for _, child := range children {
		if child == "" {
			continue
		}

		if maxDepth == constants.InfiniteDepth || childDepth < maxDepth {
			if err := e.scanChildren(child, childDepth, maxDepth); err != nil {
				return err
			}
		}

		dev, err := newDeviceFromDevname(e.ctx, child)
		if err != nil {
			logging.Default().WithDevice(child).WithError(err).Debug("enumerator: racy detach, skipping child")
			continue
		}

		if e.predicate != nil && !e.predicate.ShouldInclude(dev) {
			dev.Unref()
			continue
		}

		e.list.append(newListEntry(dev))
	}
	return nil
}
