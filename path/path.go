// Package path implements Sky's path block (spec §3, §4.C): the
// packed, self-delimiting binary block holding every event belonging
// to one object, plus the insertion algebra (add/remove/splice-stats)
// that keeps that block in sort order without decoding it in full.
package path

import (
	"github.com/skydb/sky/codec"
	"github.com/skydb/sky/event"
	"github.com/skydb/sky/skyerr"
)

// HeaderLength is PATH_HEADER_LENGTH from spec §3: object_id (8) +
// event_data_length (4).
const HeaderLength = 8 + 4

// Path is a single-object, time-ordered sequence of events, held
// sorted at all times by AddEvent/RemoveEvent.
type Path struct {
	ObjectID codec.ObjectId
	Events   []*event.Event
}

// New returns an empty path for objectID.
func New(objectID codec.ObjectId) *Path {
	return &Path{ObjectID: objectID}
}

// eventDataLength returns the summed packed size of every event, i.e.
// the header's event_data_length field.
func (p *Path) eventDataLength() int {
	total := 0
	for _, e := range p.Events {
		total += event.Size(e)
	}
	return total
}

// Size returns the full packed size of p: header plus its events,
// per spec §4.C size(path).
func Size(p *Path) int {
	return HeaderLength + p.eventDataLength()
}

// SizeRaw computes a raw on-disk path block's total length from its
// header alone (spec §4.C size_raw / §8 property 3): HeaderLength +
// the declared event_data_length.
func SizeRaw(raw []byte) (int, error) {
	dec := codec.NewDecoder(raw)
	if _, err := dec.Uint64(); err != nil {
		return 0, err
	}
	evLen, err := dec.Uint32()
	if err != nil {
		return 0, err
	}
	return HeaderLength + int(evLen), nil
}

// Pack writes p's header then every event, in sort order, into dst.
func Pack(p *Path, dst []byte) (int, error) {
	if dst == nil {
		return 0, skyerr.Invalid("pack: nil destination")
	}
	want := Size(p)
	if len(dst) < want {
		return 0, skyerr.IoShort(want, len(dst))
	}

	enc := codec.NewEncoder(dst)
	if err := enc.PutUint64(p.ObjectID); err != nil {
		return 0, err
	}
	if err := enc.PutUint32(uint32(p.eventDataLength())); err != nil {
		return 0, err
	}
	for _, e := range p.Events {
		n, err := event.Pack(e, dst[enc.Written():])
		if err != nil {
			return 0, err
		}
		if err := enc.Skip(n); err != nil {
			return 0, err
		}
	}
	return enc.Written(), nil
}

// Unpack reads a path block out of raw into p, growing p.Events by one
// per event record until event_data_length bytes have been consumed
// (spec §4.C). Per spec §9's open question, a declared
// event_data_length of zero is accepted on read as a valid, empty
// path.
func Unpack(p *Path, raw []byte) (int, error) {
	dec := codec.NewDecoder(raw)
	objectID, err := dec.Uint64()
	if err != nil {
		return 0, err
	}
	evLen, err := dec.Uint32()
	if err != nil {
		return 0, err
	}
	if int(evLen) > dec.Remaining() {
		return 0, skyerr.Corrupt("path: declared event_data_length %d exceeds available %d bytes", evLen, dec.Remaining())
	}

	body, err := dec.RawBytes(int(evLen))
	if err != nil {
		return 0, err
	}

	p.ObjectID = objectID
	p.Events = p.Events[:0]
	consumed := 0
	for consumed < len(body) {
		var e event.Event
		n, err := event.Unpack(&e, body[consumed:])
		if err != nil {
			return 0, skyerr.Corrupt("path: event decode failed at offset %d: %v", HeaderLength+consumed, err)
		}
		e.ObjectID = objectID
		p.Events = append(p.Events, &e)
		consumed += n
	}
	return HeaderLength + consumed, nil
}

// AddEvent inserts e into p, preserving sort order (spec §4.C). It
// rejects a mismatched object id with Invalid and a duplicate of the
// same event identity with AlreadyMember. Identity is by value — see
// DESIGN.md's resolution of spec §9's open question — not by pointer.
func (p *Path) AddEvent(e *event.Event) error {
	if e.ObjectID != p.ObjectID {
		return skyerr.Invalid("add_event: event object id %d does not match path object id %d", e.ObjectID, p.ObjectID)
	}
	for _, existing := range p.Events {
		if event.Equal(existing, e) {
			return skyerr.AlreadyMember("add_event: event at timestamp %d is already a member of path %d", e.Timestamp, p.ObjectID)
		}
	}
	p.Events = append(p.Events, e)
	event.SortEvents(p.Events)
	return nil
}

// RemoveEvent removes the event in p matching e by identity,
// preserving the order of the remaining events. It is a no-op if no
// matching event is found.
func (p *Path) RemoveEvent(e *event.Event) {
	for i, existing := range p.Events {
		if event.Equal(existing, e) {
			p.Events = append(p.Events[:i], p.Events[i+1:]...)
			return
		}
	}
}

// Stat describes where one event begins and ends in the rewritten
// block a hypothetical splice would produce (spec §4.C, glossary).
type Stat struct {
	Timestamp codec.Timestamp
	StartPos  int
	EndPos    int
	Sz        int
}

// SpliceStats computes, for the raw on-disk block raw, one Stat per
// existing event in resulting order, plus — if incoming is non-nil —
// one additional Stat marking where incoming would be spliced in.
// The inserted event's Stat has StartPos == EndPos (a zero-width
// marker: the storage layer must insert Sz new bytes there, not
// overwrite existing ones). This is the contract the storage layer
// uses to plan an in-place splice without rewriting events that don't
// move (spec §4.C, §8 splice determinism).
func SpliceStats(raw []byte, incoming *event.Event) ([]Stat, error) {
	dec := codec.NewDecoder(raw)
	if _, err := dec.Uint64(); err != nil {
		return nil, err
	}
	evLen, err := dec.Uint32()
	if err != nil {
		return nil, err
	}
	if int(evLen) > dec.Remaining() {
		return nil, skyerr.Corrupt("path: declared event_data_length %d exceeds available %d bytes", evLen, dec.Remaining())
	}
	body, err := dec.RawBytes(int(evLen))
	if err != nil {
		return nil, err
	}

	var stats []Stat
	offset := HeaderLength
	inserted := incoming == nil // if there's nothing to insert, treat as already placed
	var incomingHasData bool
	if incoming != nil {
		incomingHasData = incoming.HasData()
	}

	consumed := 0
	for consumed < len(body) {
		hdr, err := event.UnpackHeader(body[consumed:])
		if err != nil {
			return nil, skyerr.Corrupt("path: splice_stats: header decode failed at offset %d: %v", HeaderLength+consumed, err)
		}
		sz := event.HeaderLength + int(hdr.DataLength)

		if !inserted && precedes(incoming.Timestamp, incomingHasData, hdr.Timestamp, hdr.DataLength > 0) {
			insSz, err := incomingSize(incoming)
			if err != nil {
				return nil, err
			}
			stats = append(stats, Stat{Timestamp: incoming.Timestamp, StartPos: offset, EndPos: offset, Sz: insSz})
			offset += insSz
			inserted = true
		}

		stats = append(stats, Stat{Timestamp: hdr.Timestamp, StartPos: offset, EndPos: offset + sz, Sz: sz})
		offset += sz
		consumed += sz
	}

	if !inserted {
		insSz, err := incomingSize(incoming)
		if err != nil {
			return nil, err
		}
		stats = append(stats, Stat{Timestamp: incoming.Timestamp, StartPos: offset, EndPos: offset, Sz: insSz})
	}

	return stats, nil
}

// precedes reports whether an incoming event at (ts, hasData) must be
// spliced in strictly before an existing event at (exTs, exHasData),
// per spec §4.C's splice placement rule and sort tie-break.
func precedes(ts codec.Timestamp, hasData bool, exTs codec.Timestamp, exHasData bool) bool {
	if ts != exTs {
		return ts < exTs
	}
	return hasData && !exHasData
}

func incomingSize(e *event.Event) (int, error) {
	if e == nil {
		return 0, skyerr.Invalid("splice_stats: nil incoming event")
	}
	return event.Size(e), nil
}
