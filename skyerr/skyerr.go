// Package skyerr defines the error kinds shared by the codec, path,
// cursor and QIP packages (spec §7). Every kind is backed by
// gravitational/trace so callers get a stack trace and a
// trace.IsXxx(err) classification for free, the way teleport's storage
// and auth packages report errors instead of bare fmt.Errorf.
package skyerr

import (
	"fmt"

	"github.com/gravitational/trace"
)

// Kind classifies a returned error into one of the semantic buckets
// spec.md §7 names.
type Kind int

const (
	// KindUnknown is returned by Classify for errors this package did
	// not originate.
	KindUnknown Kind = iota
	KindInvalid
	KindCorrupt
	KindIoShort
	KindAlreadyMember
	KindEof
	KindParseError
	KindTypeError
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindCorrupt:
		return "corrupt"
	case KindIoShort:
		return "io_short"
	case KindAlreadyMember:
		return "already_member"
	case KindEof:
		return "eof"
	case KindParseError:
		return "parse_error"
	case KindTypeError:
		return "type_error"
	default:
		return "unknown"
	}
}

// kindField is an error value carrying a Kind. The constructors below
// do not use it: they attach their Kind through wrappedKind, which is
// what Classify reads.
type kindField struct{ kind Kind }

func (kindField) Error() string { return "" }

// Invalid reports a bad argument to a public operation: a nil pointer,
// a mismatched object id, and the like.
func Invalid(format string, args ...interface{}) error {
	return wrapKind(KindInvalid, trace.BadParameter(format, args...))
}

// Corrupt reports an on-disk structure that violates its invariants
// (oversized header, a sub-record that fails to decode).
func Corrupt(format string, args ...interface{}) error {
	return wrapKind(KindCorrupt, trace.BadParameter(format, args...))
}

// IoShort reports that the codec was asked for more bytes than a span
// has available.
func IoShort(need, have int) error {
	return wrapKind(KindIoShort, trace.BadParameter("short read: need %d bytes, have %d", need, have))
}

// AlreadyMember reports a duplicate add_event of the same event
// identity.
func AlreadyMember(format string, args ...interface{}) error {
	return wrapKind(KindAlreadyMember, trace.AlreadyExists(format, args...))
}

// Eof reports a cursor accessor called past the end.
func Eof(format string, args ...interface{}) error {
	return wrapKind(KindEof, trace.NotFound(format, args...))
}

// Wrap annotates err with a formatted message and a trace, for
// operational failures (I/O, mmap, directory listing) that don't map
// to one of the semantic kinds above.
func Wrap(err error, format string, args ...interface{}) error {
	return trace.Wrap(err, format, args...)
}

// ParseError wraps one accumulated compile-time parse error together
// with its source line.
type ParseError struct {
	Line    int
	Message string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// TypeError wraps one accumulated semantic validation error together
// with its source line.
type TypeError struct {
	Line    int
	Message string
}

func (e TypeError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

type wrappedKind struct {
	error
	kind Kind
}

func wrapKind(kind Kind, err error) error {
	return &wrappedKind{error: err, kind: kind}
}

func (w *wrappedKind) Unwrap() error { return w.error }

// Classify recovers the Kind a skyerr constructor attached to err, if
// any. It unwraps through trace's own wrapping so a trace.Wrap(skyerr
// error) still classifies correctly.
func Classify(err error) (Kind, bool) {
	for err != nil {
		if wk, ok := err.(*wrappedKind); ok {
			return wk.kind, true
		}
		if _, ok := err.(ParseError); ok {
			return KindParseError, true
		}
		if _, ok := err.(TypeError); ok {
			return KindTypeError, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return KindUnknown, false
		}
		err = unwrapper.Unwrap()
	}
	return KindUnknown, false
}

// Is reports whether err was produced with the given kind.
func Is(err error, kind Kind) bool {
	k, ok := Classify(err)
	return ok && k == kind
}
