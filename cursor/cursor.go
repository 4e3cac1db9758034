// Package cursor implements Sky's zero-copy forward iterator over one
// or more path blocks (spec §3, §4.D): a read-only view that walks
// event records across installed paths, exposing raw pointers and
// lengths to event payloads without copying them.
//
// Per the "raw-pointer cursor" design note in spec §9, the backing
// storage is modeled as a bounded slice (pointer + length) rather than
// an unsafe void*; DataPtrAndLength still hands back an
// unsafe.Pointer for a caller that needs a real address to load from
// directly. The qip/codegen interpreter does not call it (it reads
// events only through Eof, Next, Timestamp and ActionID); ordinary
// callers should use EventData.
package cursor

import (
	"unsafe"

	"github.com/skydb/sky/codec"
	"github.com/skydb/sky/event"
	"github.com/skydb/sky/path"
	"github.com/skydb/sky/skyerr"
)

// state is the cursor's position in the Empty → Active → Eof state
// machine from spec §4.D.
type state int

const (
	stateEmpty state = iota
	stateActive
	stateEof
)

// Cursor walks events across one or more installed path blocks in
// installation order; within a path, events are visited in their
// on-disk (sorted) order. A Cursor does not own the path bytes it is
// given — the caller's mapping must outlive it.
type Cursor struct {
	paths   [][]byte // each entry is one path block's raw bytes
	pathIdx int
	ptr     int // offset of the current event's header within paths[pathIdx]
	endptr  int // offset just past the last event in paths[pathIdx]
	st      state
}

// New returns an empty cursor.
func New() *Cursor {
	return &Cursor{st: stateEmpty}
}

// SetPath installs a single path block, resetting position to its
// first event. If the path is empty (event_data_length == 0), the
// cursor transitions immediately to Eof.
func (c *Cursor) SetPath(raw []byte) error {
	return c.SetPaths([][]byte{raw})
}

// SetPaths installs an ordered list of path blocks, resetting position
// to the first event of the first path.
func (c *Cursor) SetPaths(raws [][]byte) error {
	c.paths = raws
	c.pathIdx = 0
	if len(raws) == 0 {
		c.st = stateEof
		return nil
	}
	return c.enterPath(0)
}

// enterPath positions the cursor at the first event of paths[idx],
// skipping forward through any empty paths, and sets Eof once every
// installed path has been exhausted.
func (c *Cursor) enterPath(idx int) error {
	for idx < len(c.paths) {
		raw := c.paths[idx]
		if len(raw) < path.HeaderLength {
			return skyerr.Corrupt("cursor: path block shorter than header at index %d", idx)
		}
		dec := codec.NewDecoder(raw[8:path.HeaderLength])
		evLen, err := dec.Uint32()
		if err != nil {
			return err
		}
		if int(evLen) == 0 {
			idx++
			continue
		}
		if path.HeaderLength+int(evLen) > len(raw) {
			return skyerr.Corrupt("cursor: path at index %d declares %d event bytes beyond block end", idx, evLen)
		}
		c.pathIdx = idx
		c.ptr = path.HeaderLength
		c.endptr = path.HeaderLength + int(evLen)
		c.st = stateActive
		return nil
	}
	c.st = stateEof
	return nil
}

// Eof reports whether every installed path has been fully visited.
func (c *Cursor) Eof() bool { return c.st == stateEof }

// Next advances the cursor by the current event's raw, on-disk size.
// When it reaches the end of the current path, it moves to the first
// event of the next non-empty path; when every path is exhausted, it
// sets Eof. Calling Next once already at Eof returns an Eof error.
func (c *Cursor) Next() error {
	if c.st != stateActive {
		return skyerr.Eof("cursor: next called past end of iteration")
	}
	hdr, err := event.UnpackHeader(c.paths[c.pathIdx][c.ptr:])
	if err != nil {
		return err
	}
	sz := event.HeaderLength + int(hdr.DataLength)
	c.ptr += sz
	if c.ptr >= c.endptr {
		return c.enterPath(c.pathIdx + 1)
	}
	return nil
}

func (c *Cursor) currentHeader() (event.Header, error) {
	if c.st != stateActive {
		return event.Header{}, skyerr.Eof("cursor: accessor called at eof")
	}
	return event.UnpackHeader(c.paths[c.pathIdx][c.ptr:])
}

// Timestamp returns the current event's timestamp.
func (c *Cursor) Timestamp() (codec.Timestamp, error) {
	h, err := c.currentHeader()
	if err != nil {
		return 0, err
	}
	return h.Timestamp, nil
}

// ActionID returns the current event's action id.
func (c *Cursor) ActionID() (codec.ActionId, error) {
	h, err := c.currentHeader()
	if err != nil {
		return 0, err
	}
	return h.ActionID, nil
}

// DataPtrAndLength returns a raw pointer to the current event's data
// payload and its length, without copying, for a caller that loads
// from the address directly. It fails with Eof at the terminal state.
func (c *Cursor) DataPtrAndLength() (unsafe.Pointer, int, error) {
	h, err := c.currentHeader()
	if err != nil {
		return nil, 0, err
	}
	if h.DataLength == 0 {
		return nil, 0, nil
	}
	off := c.ptr + event.HeaderLength
	buf := c.paths[c.pathIdx]
	return unsafe.Pointer(&buf[off]), int(h.DataLength), nil
}

// EventData returns the current event's data payload as a slice —
// still zero-copy (it aliases the installed path's backing array),
// but safe for ordinary Go callers that don't need a raw pointer.
func (c *Cursor) EventData() ([]byte, error) {
	ptr, n, err := c.DataPtrAndLength()
	if err != nil {
		return nil, err
	}
	if ptr == nil {
		return nil, nil
	}
	return unsafe.Slice((*byte)(ptr), n), nil
}

// PathIndex returns the installation index of the path the cursor is
// currently positioned in. It is meaningful only while Active.
func (c *Cursor) PathIndex() int { return c.pathIdx }
