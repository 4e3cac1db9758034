// Package skytable is the minimal directory-of-path-files storage
// collaborator the runtime glue (spec §4.J) drives: one memory-mapped
// file per object, named `<object_id>.path`, holding the byte-exact
// path block layout from spec §3/§6.
package skytable

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/sirupsen/logrus"

	"github.com/skydb/sky/cursor"
	"github.com/skydb/sky/path"
	"github.com/skydb/sky/qip"
	"github.com/skydb/sky/resultset"
	"github.com/skydb/sky/skyerr"
)

var log = logrus.WithField("component", "skytable")

// PathHandle is one object's memory-mapped path block.
type PathHandle struct {
	ObjectID uint64
	mapping  mmap.MMap
}

// Bytes returns the mapped path block's raw bytes.
func (h PathHandle) Bytes() []byte { return h.mapping }

// Table is a directory of `<object_id>.path` files, opened read-only
// and memory-mapped for Query, or opened for append-only writes via
// NewWriter.
//
// Concurrent Query calls over one already-open Table are safe — they
// only read mapped memory. Writer.Append is not goroutine-safe and
// must be externally serialized, the same single-writer discipline
// spec §5 assigns to the storage layer's splice operations.
type Table struct {
	dir   string
	paths []PathHandle
}

// Open memory-maps every `*.path` file in dir, in lexical file-name
// order (so "17.path" comes before "5.path"; the order is not numeric
// by object id) — the same directory-listing-then-sort discipline
// the teacher's package loader uses before compiling a directory's
// files, applied here for deterministic query results instead of
// deterministic compilation order.
func Open(dir string) (*Table, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, skyerr.Wrap(err, "skytable: read table directory %q", dir)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".path") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	t := &Table{dir: dir}
	for _, name := range names {
		objectID, err := objectIDFromFileName(name)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, skyerr.Wrap(err, "skytable: open %q", name)
		}
		m, err := mmap.Map(f, mmap.RDONLY, 0)
		f.Close()
		if err != nil {
			return nil, skyerr.Wrap(err, "skytable: mmap %q", name)
		}
		t.paths = append(t.paths, PathHandle{ObjectID: objectID, mapping: m})
	}
	log.WithField("count", len(t.paths)).Info("skytable: opened table")
	return t, nil
}

func objectIDFromFileName(name string) (uint64, error) {
	base := strings.TrimSuffix(name, ".path")
	id, err := strconv.ParseUint(base, 10, 64)
	if err != nil {
		return 0, skyerr.Invalid("skytable: non-numeric path file name %q", name)
	}
	return id, nil
}

// Paths returns every mapped path handle, in the table's sorted order.
func (t *Table) Paths() []PathHandle { return t.paths }

// Close unmaps every open path file.
func (t *Table) Close() error {
	var firstErr error
	for _, h := range t.paths {
		if err := h.mapping.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Query runs compiled's entry function with a cursor built over every
// path block mapped in the table, and returns the MessagePack bytes
// the entry point's return value serializes to.
func (t *Table) Query(ctx context.Context, compiled *qip.Compiled) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cur := cursor.New()
	if err := cur.SetPaths(t.RawBlocks()); err != nil {
		return nil, err
	}
	v, err := compiled.Run(cur)
	if err != nil {
		return nil, err
	}
	w := resultset.NewMsgpackWriter()
	if err := resultset.WriteValue(w, v); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// RawBlocks returns every mapped path's raw bytes, for building a
// cursor.Cursor with cursor.SetPaths.
func (t *Table) RawBlocks() [][]byte {
	out := make([][]byte, len(t.paths))
	for i, h := range t.paths {
		out[i] = h.Bytes()
	}
	return out
}

// Writer appends new path blocks to dir. It is the collaborator
// cmd/sky-generate drives; it does not read or splice existing blocks.
type Writer struct {
	dir string
}

// NewWriter returns a Writer rooted at dir, creating dir if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, skyerr.Wrap(err, "skytable: create table directory %q", dir)
	}
	return &Writer{dir: dir}, nil
}

// Append writes p's packed bytes to `<object_id>.path`, overwriting
// any existing file for that object.
func (w *Writer) Append(p *path.Path) error {
	buf := make([]byte, path.Size(p))
	if _, err := path.Pack(p, buf); err != nil {
		return err
	}
	name := strconv.FormatUint(p.ObjectID, 10) + ".path"
	if err := os.WriteFile(filepath.Join(w.dir, name), buf, 0o644); err != nil {
		return skyerr.Wrap(err, "skytable: write %q", name)
	}
	return nil
}
