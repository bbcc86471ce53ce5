package driverctl

import (
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"sort"

	"github.com/go-xdev/xdev/internal/interfaces"
)

// Property dictionaries cross the ioctl boundary as a small self-describing
// tag-length-value stream: manual binary.LittleEndian packing in the style
// of internal/uapi/marshal.go in the teacher repo, rather than a generic
// encoding/gob or encoding/json payload — the kernel side of this protocol
// is a C struct-and-ioctl interface with no room for a general-purpose Go
// serializer, so the wire encoder has to build its own bytes by hand the
// same way the teacher's control-command marshaling does.
const (
	tagString uint8 = iota
	tagUint32
	tagInt8
	tagDict
)

// encodeDict serializes a property dictionary to bytes for the ioctl
// request buffer. Keys are written in sorted order so encoding is
// deterministic (useful for tests and for a stable externalized blob).
func encodeDict(d interfaces.PropertyDict) []byte {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(len(keys)))

	for _, k := range keys {
		buf = appendLPString(buf, k)
		buf = appendValue(buf, d[k])
	}
	return buf
}

func appendLPString(buf []byte, s string) []byte {
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(s)))
	buf = append(buf, lenBuf...)
	buf = append(buf, s...)
	return buf
}

func appendValue(buf []byte, v any) []byte {
	switch val := v.(type) {
	case string:
		buf = append(buf, tagString)
		buf = appendLPString(buf, val)
	case uint32:
		buf = append(buf, tagUint32)
		tmp := make([]byte, 4)
		binary.LittleEndian.PutUint32(tmp, val)
		buf = append(buf, tmp...)
	case int8:
		buf = append(buf, tagInt8)
		buf = append(buf, byte(val))
	case interfaces.PropertyDict:
		buf = append(buf, tagDict)
		nested := encodeDict(val)
		tmp := make([]byte, 4)
		binary.LittleEndian.PutUint32(tmp, uint32(len(nested)))
		buf = append(buf, tmp...)
		buf = append(buf, nested...)
	default:
		// Unknown value types are encoded as their %v string rather than
		// failing the whole dictionary: they cannot appear in practice from
		// decodeDict's own output, but a hand-built test dictionary might
		// include one.
		buf = append(buf, tagString)
		buf = appendLPString(buf, fmt.Sprintf("%v", val))
	}
	return buf
}

// decodeDict is the inverse of encodeDict.
func decodeDict(buf []byte) (interfaces.PropertyDict, error) {
	d, _, err := decodeDictAt(buf, 0)
	return d, err
}

func decodeDictAt(buf []byte, off int) (interfaces.PropertyDict, int, error) {
	if off+4 > len(buf) {
		return nil, off, errShortBuffer
	}
	count := binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4

	d := make(interfaces.PropertyDict, count)
	for i := uint32(0); i < count; i++ {
		key, next, err := readLPString(buf, off)
		if err != nil {
			return nil, off, err
		}
		off = next

		if off >= len(buf) {
			return nil, off, errShortBuffer
		}
		tag := buf[off]
		off++

		var val any
		switch tag {
		case tagString:
			s, next, err := readLPString(buf, off)
			if err != nil {
				return nil, off, err
			}
			val = s
			off = next
		case tagUint32:
			if off+4 > len(buf) {
				return nil, off, errShortBuffer
			}
			val = binary.LittleEndian.Uint32(buf[off : off+4])
			off += 4
		case tagInt8:
			if off+1 > len(buf) {
				return nil, off, errShortBuffer
			}
			val = int8(buf[off])
			off++
		case tagDict:
			if off+4 > len(buf) {
				return nil, off, errShortBuffer
			}
			nestedLen := binary.LittleEndian.Uint32(buf[off : off+4])
			off += 4
			nested, _, err := decodeDictAt(buf[:off+int(nestedLen)], off)
			if err != nil {
				return nil, off, err
			}
			val = nested
			off += int(nestedLen)
		default:
			return nil, off, errShortBuffer
		}
		d[key] = val
	}
	return d, off, nil
}

func readLPString(buf []byte, off int) (string, int, error) {
	if off+4 > len(buf) {
		return "", off, errShortBuffer
	}
	n := binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	if off+int(n) > len(buf) {
		return "", off, errShortBuffer
	}
	s := string(buf[off : off+int(n)])
	off += int(n)
	return s, off, nil
}

var errShortBuffer = fmt.Errorf("driverctl: short property buffer")

// xmlDict and xmlEntry give encoding/xml a shape to marshal a property
// dictionary into. Entries are written in sorted key order so Externalize
// is deterministic.
type xmlDict struct {
	XMLName xml.Name   `xml:"dict"`
	Entries []xmlEntry `xml:"entry"`
}

type xmlEntry struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// Externalize renders a decoded property dictionary back to the opaque
// textual form the core stores verbatim as a device record's xml field
// (spec §1, §4.2: "stored and passed through unparsed"). NetBSD's proplib
// externalizes to an XML plist; nothing in the retrieval pack implements
// that format, and the spec does not require bit-for-bit fidelity to it
// (the core never parses this blob back), so stdlib encoding/xml produces
// a deterministic textual encoding instead of a hand-rolled format.
func Externalize(d interfaces.PropertyDict) string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dict := xmlDict{Entries: make([]xmlEntry, 0, len(keys))}
	for _, k := range keys {
		dict.Entries = append(dict.Entries, xmlEntry{Key: k, Value: fmt.Sprintf("%v", d[k])})
	}

	out, err := xml.Marshal(dict)
	if err != nil {
		// xml.Marshal only fails on unsupported types, and xmlDict holds
		// only strings; fall back defensively.
		return "<dict/>"
	}
	return string(out)
}
