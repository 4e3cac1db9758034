// Package codec implements fixed-width little-endian reads and writes
// of Sky's scalar types (spec §4.A): Timestamp, ObjectId, ActionId,
// EventDataLength and PathEventDataLength. It is the base every other
// package in this module decodes path blocks and event records with.
//
// The moving-slice decoder/encoder pair mirrors the bufDecoder idiom
// used to parse perf.data records: a slice that shrinks as fields are
// consumed, so callers never juggle an explicit offset.
package codec

import (
	"encoding/binary"

	"github.com/skydb/sky/skyerr"
)

// Scalar type aliases. These exist so the rest of the module spells
// out the semantic type instead of a bare numeric width.
type (
	Timestamp           = int64
	ObjectId             = uint64
	ActionId             = uint32
	EventDataLength      = uint32
	PathEventDataLength  = uint32
)

// Decoder reads fixed-width fields from a byte span in order,
// shrinking the span as it goes. It never copies the backing array.
type Decoder struct {
	buf []byte
}

// NewDecoder wraps buf for sequential scalar reads.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.buf) }

// Bytes returns the remaining unread span without consuming it.
func (d *Decoder) Bytes() []byte { return d.buf }

func (d *Decoder) require(n int) error {
	if len(d.buf) < n {
		return skyerr.IoShort(n, len(d.buf))
	}
	return nil
}

// Skip advances past n bytes without interpreting them.
func (d *Decoder) Skip(n int) error {
	if err := d.require(n); err != nil {
		return err
	}
	d.buf = d.buf[n:]
	return nil
}

// ReadInto copies n bytes into dst, per the read_into(src, dst, n)
// contract in spec §4.A.
func (d *Decoder) ReadInto(dst []byte) error {
	n := len(dst)
	if err := d.require(n); err != nil {
		return err
	}
	copy(dst, d.buf[:n])
	d.buf = d.buf[n:]
	return nil
}

// Uint16 reads a little-endian uint16.
func (d *Decoder) Uint16() (uint16, error) {
	if err := d.require(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(d.buf)
	d.buf = d.buf[2:]
	return v, nil
}

// Uint32 reads a little-endian uint32.
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.require(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf)
	d.buf = d.buf[4:]
	return v, nil
}

// Uint64 reads a little-endian uint64.
func (d *Decoder) Uint64() (uint64, error) {
	if err := d.require(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf)
	d.buf = d.buf[8:]
	return v, nil
}

// Int64 reads a little-endian int64 (used for Timestamp).
func (d *Decoder) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

// RawBytes reads n raw bytes and returns a sub-slice of the backing
// array (zero-copy: the caller must not outlive the original buffer).
func (d *Decoder) RawBytes(n int) ([]byte, error) {
	if err := d.require(n); err != nil {
		return nil, err
	}
	b := d.buf[:n:n]
	d.buf = d.buf[n:]
	return b, nil
}

// Encoder writes fixed-width fields into a caller-owned buffer in
// order, tracking how many bytes have been written so Written() can
// report it without a separate counter.
type Encoder struct {
	buf []byte
	n   int
}

// NewEncoder wraps dst for sequential scalar writes. dst must be large
// enough for everything that will be written to it; callers compute
// the needed size with the matching Size function first.
func NewEncoder(dst []byte) *Encoder {
	return &Encoder{buf: dst}
}

// Written returns the number of bytes written so far.
func (e *Encoder) Written() int { return e.n }

// Skip advances the write cursor by n bytes that a lower-level Pack
// call already wrote directly into the encoder's backing buffer.
func (e *Encoder) Skip(n int) error {
	if err := e.require(n); err != nil {
		return err
	}
	e.n += n
	return nil
}

func (e *Encoder) require(n int) error {
	if len(e.buf)-e.n < n {
		return skyerr.IoShort(n, len(e.buf)-e.n)
	}
	return nil
}

// WriteFrom copies src into the buffer, per the write_from(dst, src, n)
// contract in spec §4.A.
func (e *Encoder) WriteFrom(src []byte) error {
	if err := e.require(len(src)); err != nil {
		return err
	}
	copy(e.buf[e.n:], src)
	e.n += len(src)
	return nil
}

// PutUint16 writes a little-endian uint16.
func (e *Encoder) PutUint16(v uint16) error {
	if err := e.require(2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(e.buf[e.n:], v)
	e.n += 2
	return nil
}

// PutUint32 writes a little-endian uint32.
func (e *Encoder) PutUint32(v uint32) error {
	if err := e.require(4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(e.buf[e.n:], v)
	e.n += 4
	return nil
}

// PutUint64 writes a little-endian uint64.
func (e *Encoder) PutUint64(v uint64) error {
	if err := e.require(8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(e.buf[e.n:], v)
	e.n += 8
	return nil
}

// PutInt64 writes a little-endian int64 (used for Timestamp).
func (e *Encoder) PutInt64(v int64) error {
	return e.PutUint64(uint64(v))
}
