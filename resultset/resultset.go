// Package resultset implements the narrow result-serialization
// interface a compiled QIP query's result is written through (spec
// §4.J, §6), backed by MessagePack via vmihailenco/msgpack/v5.
package resultset

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/skydb/sky/qip/codegen"
)

// Writer is every primitive a query result can be serialized through.
// A compiled entry point does not call it: codegen.Run returns a
// codegen.Value, and WriteValue writes that one value through a
// Writer. The codegen package does not reference this interface.
type Writer interface {
	WriteInt(v int64) error
	WriteFloat(v float64) error
	WriteBool(v bool) error
	WriteString(v string) error
	WriteNil() error
	WriteRaw(b []byte) error
	WriteMapHeader(n int) error
}

// MsgpackWriter streams result values through a msgpack.Encoder.
type MsgpackWriter struct {
	buf *bytes.Buffer
	enc *msgpack.Encoder
}

// NewMsgpackWriter returns a Writer backed by a fresh in-memory buffer.
func NewMsgpackWriter() *MsgpackWriter {
	buf := &bytes.Buffer{}
	return &MsgpackWriter{buf: buf, enc: msgpack.NewEncoder(buf)}
}

func (w *MsgpackWriter) WriteInt(v int64) error      { return w.enc.EncodeInt64(v) }
func (w *MsgpackWriter) WriteFloat(v float64) error  { return w.enc.EncodeFloat64(v) }
func (w *MsgpackWriter) WriteBool(v bool) error      { return w.enc.EncodeBool(v) }
func (w *MsgpackWriter) WriteString(v string) error  { return w.enc.EncodeString(v) }
func (w *MsgpackWriter) WriteNil() error             { return w.enc.EncodeNil() }
func (w *MsgpackWriter) WriteRaw(b []byte) error     { return w.enc.EncodeBytes(b) }
func (w *MsgpackWriter) WriteMapHeader(n int) error  { return w.enc.EncodeMapLen(n) }

// Bytes returns everything written so far.
func (w *MsgpackWriter) Bytes() []byte { return w.buf.Bytes() }

// WriteValue writes a codegen.Value through w, dispatching on its Kind.
func WriteValue(w Writer, v codegen.Value) error {
	switch v.Kind {
	case codegen.KindInt:
		return w.WriteInt(v.Int)
	case codegen.KindFloat:
		return w.WriteFloat(v.Flt)
	case codegen.KindBool:
		return w.WriteBool(v.Bool)
	case codegen.KindString:
		return w.WriteString(v.Str)
	case codegen.KindNull:
		return w.WriteNil()
	default:
		return w.WriteNil()
	}
}
