// Package event implements Sky's in-memory event record and its
// packed on-disk form (spec §3, §4.B): a fixed header of timestamp,
// action id and data length, followed by a property-encoded data
// blob. Packing and unpacking are the building blocks the path block
// (package path) and the cursor (package cursor) are built from.
package event

import (
	"bytes"
	"sort"

	"github.com/skydb/sky/codec"
	"github.com/skydb/sky/skyerr"
)

// HeaderLength is the fixed size, in bytes, of an event record header:
// timestamp (8) + action id (4) + data length (4).
const HeaderLength = 8 + 4 + 4

// Property is one (property-id, typed-value) pair inside an event's
// data blob. Value is the pair's already-encoded bytes; this package
// does not interpret the typed-value schema beyond knowing its byte
// length, which is all the path/cursor layer needs.
type Property struct {
	ID    uint16
	Value []byte
}

// size is the encoded length of one property: a 2-byte id, a 4-byte
// value length, and the value bytes.
func (p Property) size() int { return 2 + 4 + len(p.Value) }

// Event is one action event belonging to a single object.
type Event struct {
	Timestamp codec.Timestamp
	ObjectID  codec.ObjectId
	ActionID  codec.ActionId
	Data      []Property
}

// HasData reports whether this event carries any property data. Per
// spec §4.C this participates in the path sort tie-break: data-
// carrying events precede pure action events at equal timestamps.
func (e *Event) HasData() bool { return len(e.Data) > 0 }

// dataBytes returns the packed data blob (concatenated properties).
func (e *Event) dataBytes() []byte {
	total := 0
	for _, p := range e.Data {
		total += p.size()
	}
	buf := make([]byte, total)
	enc := codec.NewEncoder(buf)
	for _, p := range e.Data {
		enc.PutUint16(p.ID)                   //nolint:errcheck // buf is exactly sized
		enc.PutUint32(uint32(len(p.Value)))    //nolint:errcheck
		enc.WriteFrom(p.Value)                 //nolint:errcheck
	}
	return buf
}

// DataLength returns the byte length of the packed data blob.
func (e *Event) DataLength() int {
	total := 0
	for _, p := range e.Data {
		total += p.size()
	}
	return total
}

// Size returns the full packed size of e: header plus data length,
// per spec §4.B size(event).
func Size(e *Event) int {
	return HeaderLength + e.DataLength()
}

// Pack writes e's header then its payload into dst, which must be at
// least Size(e) bytes, and returns the number of bytes written.
func Pack(e *Event, dst []byte) (int, error) {
	if dst == nil {
		return 0, skyerr.Invalid("pack: nil destination")
	}
	dataLen := e.DataLength()
	want := HeaderLength + dataLen
	if len(dst) < want {
		return 0, skyerr.IoShort(want, len(dst))
	}

	enc := codec.NewEncoder(dst)
	if err := enc.PutInt64(e.Timestamp); err != nil {
		return 0, err
	}
	if err := enc.PutUint32(e.ActionID); err != nil {
		return 0, err
	}
	if err := enc.PutUint32(uint32(dataLen)); err != nil {
		return 0, err
	}
	if dataLen > 0 {
		if err := enc.WriteFrom(e.dataBytes()); err != nil {
			return 0, err
		}
	}
	return enc.Written(), nil
}

// Unpack reads one event record out of src into e and returns the
// number of bytes consumed. e.ObjectID is left untouched — the event
// record on disk carries no object id of its own; the enclosing path
// block supplies it.
func Unpack(e *Event, src []byte) (int, error) {
	dec := codec.NewDecoder(src)
	ts, err := dec.Int64()
	if err != nil {
		return 0, err
	}
	actionID, err := dec.Uint32()
	if err != nil {
		return 0, err
	}
	dataLen, err := dec.Uint32()
	if err != nil {
		return 0, err
	}
	var props []Property
	if dataLen > 0 {
		raw, err := dec.RawBytes(int(dataLen))
		if err != nil {
			return 0, err
		}
		props, err = decodeProperties(raw)
		if err != nil {
			return 0, err
		}
	}

	e.Timestamp = ts
	e.ActionID = actionID
	e.Data = props
	return HeaderLength + int(dataLen), nil
}

func decodeProperties(raw []byte) ([]Property, error) {
	var props []Property
	dec := codec.NewDecoder(raw)
	for dec.Remaining() > 0 {
		id, err := dec.Uint16()
		if err != nil {
			return nil, skyerr.Corrupt("event: truncated property id")
		}
		vlen32, err := dec.Uint32()
		if err != nil {
			return nil, skyerr.Corrupt("event: truncated property length")
		}
		val, err := dec.RawBytes(int(vlen32))
		if err != nil {
			return nil, skyerr.Corrupt("event: property %d declares %d bytes beyond blob end", id, vlen32)
		}
		props = append(props, Property{ID: id, Value: append([]byte(nil), val...)})
	}
	return props, nil
}

// Header is the cheap metadata a header-only read recovers, used by
// the cursor and by splice-stats to avoid decoding payloads.
type Header struct {
	Timestamp  codec.Timestamp
	ActionID   codec.ActionId
	DataLength codec.EventDataLength
	HeaderSize int
}

// UnpackHeader reads only timestamp, action id and data length from
// src, per spec §4.B unpack_header.
func UnpackHeader(src []byte) (Header, error) {
	dec := codec.NewDecoder(src)
	ts, err := dec.Int64()
	if err != nil {
		return Header{}, err
	}
	actionID, err := dec.Uint32()
	if err != nil {
		return Header{}, err
	}
	dataLen, err := dec.Uint32()
	if err != nil {
		return Header{}, err
	}
	return Header{Timestamp: ts, ActionID: actionID, DataLength: dataLen, HeaderSize: HeaderLength}, nil
}

// SizeRaw computes one event's full on-disk length from its header
// alone, without touching the payload (spec §4.B size_raw).
func SizeRaw(src []byte) (int, error) {
	h, err := UnpackHeader(src)
	if err != nil {
		return 0, err
	}
	return HeaderLength + int(h.DataLength), nil
}

// Equal reports whether two events are identical in content: same
// timestamp, action id, object id, and byte-equal data. This is the value-based
// identity spec §9's open question asks for (see DESIGN.md), used by
// path.AddEvent/RemoveEvent to detect duplicates.
func Equal(a, b *Event) bool {
	if a.Timestamp != b.Timestamp || a.ActionID != b.ActionID || a.ObjectID != b.ObjectID {
		return false
	}
	if len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Data {
		if a.Data[i].ID != b.Data[i].ID || !bytes.Equal(a.Data[i].Value, b.Data[i].Value) {
			return false
		}
	}
	return true
}

// Less implements the path sort order from spec §4.C: ascending
// timestamp, with data-carrying events preceding pure action events at
// equal timestamps.
func Less(a, b *Event) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.HasData() && !b.HasData()
}

// SortEvents sorts events in place per the path sort order.
func SortEvents(events []*Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return Less(events[i], events[j])
	})
}
