package xdev

// ListEntry is an intrusive FIFO node holding one strong reference to a
// device record. Iteration is externally driven: Next walks to the
// successor, GetDevice returns a new strong reference so callers may
// outlive the entry.
type ListEntry struct {
	device *Device
	next   *ListEntry
}

func newListEntry(d *Device) *ListEntry {
	return &ListEntry{device: d}
}

// Next returns the successor entry, or nil at the tail.
func (e *ListEntry) Next() *ListEntry {
	if e == nil {
		return nil
	}
	return e.next
}

// GetDevice returns a new strong reference to the entry's device record.
// The caller owns the returned reference and must Unref it.
func (e *ListEntry) GetDevice() *Device {
	if e == nil {
		return nil
	}
	return e.device.Ref()
}

// deviceList is a head-plus-tail FIFO allowing O(1) append and head-pop.
type deviceList struct {
	head, tail *ListEntry
	count      int
}

func (l *deviceList) append(e *ListEntry) {
	if l.tail == nil {
		l.head, l.tail = e, e
	} else {
		l.tail.next = e
		l.tail = e
	}
	l.count++
}

func (l *deviceList) first() *ListEntry {
	return l.head
}

// popFront removes and returns the head entry, or nil if the list is
// empty.
func (l *deviceList) popFront() *ListEntry {
	e := l.head
	if e == nil {
		return nil
	}
	l.head = e.next
	if l.head == nil {
		l.tail = nil
	}
	e.next = nil
	l.count--
	return e
}

// removeLast removes e, which must be the current tail (the producer
// calls this immediately after an append that it needs to roll back, so
// no other entry can have been appended after it yet).
func (l *deviceList) removeLast(e *ListEntry) {
	if l.tail != e {
		return
	}
	if l.head == e {
		l.head, l.tail = nil, nil
		l.count--
		return
	}
	cur := l.head
	for cur != nil && cur.next != e {
		cur = cur.next
	}
	if cur == nil {
		return
	}
	cur.next = nil
	l.tail = cur
	l.count--
}

// free drains entries from head to tail, dropping each entry's device
// reference.
func (l *deviceList) free() {
	for e := l.head; e != nil; {
		next := e.next
		e.device.Unref()
		e = next
	}
	l.head, l.tail = nil, nil
	l.count = 0
}
