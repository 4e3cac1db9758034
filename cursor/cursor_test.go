package cursor

import (
	"testing"

	"github.com/skydb/sky/event"
	"github.com/skydb/sky/path"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func packPath(t *testing.T, objectID uint64, timestamps ...int64) []byte {
	t.Helper()
	p := path.New(objectID)
	for _, ts := range timestamps {
		require.NoError(t, p.AddEvent(&event.Event{ObjectID: objectID, Timestamp: ts}))
	}
	buf := make([]byte, path.Size(p))
	_, err := path.Pack(p, buf)
	require.NoError(t, err)
	return buf
}

func TestCursorSinglePathCoverage(t *testing.T) {
	raw := packPath(t, 1, 10, 20, 30)
	c := New()
	require.NoError(t, c.SetPath(raw))

	var seen []int64
	for !c.Eof() {
		ts, err := c.Timestamp()
		require.NoError(t, err)
		seen = append(seen, ts)
		require.NoError(t, c.Next())
	}
	assert.Equal(t, []int64{10, 20, 30}, seen)
}

// S4 — cursor over two paths.
func TestCursorMultiPath(t *testing.T) {
	p1 := packPath(t, 1, 1, 2)
	p2 := packPath(t, 2, 3, 4)

	c := New()
	require.NoError(t, c.SetPaths([][]byte{p1, p2}))

	var seen []int64
	for i := 0; i < 4; i++ {
		require.False(t, c.Eof())
		ts, err := c.Timestamp()
		require.NoError(t, err)
		seen = append(seen, ts)
		require.NoError(t, c.Next())
	}
	assert.Equal(t, []int64{1, 2, 3, 4}, seen)
	assert.True(t, c.Eof())
}

func TestCursorEmptyPathTransitionsToEof(t *testing.T) {
	p := path.New(1)
	buf := make([]byte, path.Size(p))
	_, err := path.Pack(p, buf)
	require.NoError(t, err)

	c := New()
	require.NoError(t, c.SetPath(buf))
	assert.True(t, c.Eof())
}

func TestCursorSkipsEmptyPathsBetweenNonEmpty(t *testing.T) {
	empty := func() []byte {
		p := path.New(9)
		buf := make([]byte, path.Size(p))
		_, err := path.Pack(p, buf)
		require.NoError(t, err)
		return buf
	}()
	p1 := packPath(t, 1, 1)
	p2 := packPath(t, 2, 2)

	c := New()
	require.NoError(t, c.SetPaths([][]byte{p1, empty, p2}))

	var seen []int64
	for !c.Eof() {
		ts, err := c.Timestamp()
		require.NoError(t, err)
		seen = append(seen, ts)
		require.NoError(t, c.Next())
	}
	assert.Equal(t, []int64{1, 2}, seen)
}

func TestCursorAccessorsFailAtEof(t *testing.T) {
	c := New()
	require.NoError(t, c.SetPaths(nil))
	assert.True(t, c.Eof())

	_, err := c.Timestamp()
	require.Error(t, err)
	_, err = c.ActionID()
	require.Error(t, err)
	_, _, err = c.DataPtrAndLength()
	require.Error(t, err)
	err = c.Next()
	require.Error(t, err)
}

func TestCursorDataPtrAndLengthZeroCopy(t *testing.T) {
	p := path.New(1)
	e := &event.Event{ObjectID: 1, Timestamp: 1, Data: []event.Property{{ID: 1, Value: []byte("hello")}}}
	require.NoError(t, p.AddEvent(e))
	buf := make([]byte, path.Size(p))
	_, err := path.Pack(p, buf)
	require.NoError(t, err)

	c := New()
	require.NoError(t, c.SetPath(buf))
	data, err := c.EventData()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	buf[len(buf)-1] = 'Z'
	assert.Equal(t, byte('Z'), data[len(data)-1], "EventData must alias the installed path bytes")
}
