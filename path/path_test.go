package path

import (
	"testing"

	"github.com/skydb/sky/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPack(t *testing.T, p *Path) []byte {
	t.Helper()
	buf := make([]byte, Size(p))
	n, err := Pack(p, buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	return buf
}

func TestPackUnpackRoundTrip(t *testing.T) {
	p := New(1)
	require.NoError(t, p.AddEvent(&event.Event{ObjectID: 1, Timestamp: 10, ActionID: 1}))
	require.NoError(t, p.AddEvent(&event.Event{ObjectID: 1, Timestamp: 20, ActionID: 2, Data: []event.Property{{ID: 1, Value: []byte("x")}}}))
	buf := mustPack(t, p)

	var got Path
	n, err := Unpack(&got, buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, p.ObjectID, got.ObjectID)
	require.Len(t, got.Events, 2)
	assert.Equal(t, int64(10), got.Events[0].Timestamp)
	assert.Equal(t, int64(20), got.Events[1].Timestamp)

	raw, err := SizeRaw(buf)
	require.NoError(t, err)
	assert.Equal(t, Size(p), raw)
}

func TestUnpackAcceptsEmptyPath(t *testing.T) {
	// §9 open question: zero event_data_length is valid on read.
	p := New(5)
	buf := mustPack(t, p)
	assert.Equal(t, HeaderLength, len(buf))

	var got Path
	n, err := Unpack(&got, buf)
	require.NoError(t, err)
	assert.Equal(t, HeaderLength, n)
	assert.Empty(t, got.Events)
}

func TestAddEventRejectsMismatchedObjectID(t *testing.T) {
	p := New(1)
	err := p.AddEvent(&event.Event{ObjectID: 2, Timestamp: 1})
	require.Error(t, err)
}

func TestAddEventRejectsDuplicate(t *testing.T) {
	p := New(1)
	e := &event.Event{ObjectID: 1, Timestamp: 10, ActionID: 1}
	require.NoError(t, p.AddEvent(e))
	err := p.AddEvent(&event.Event{ObjectID: 1, Timestamp: 10, ActionID: 1})
	require.Error(t, err)
}

func TestRemoveEventPreservesOrder(t *testing.T) {
	p := New(1)
	e1 := &event.Event{ObjectID: 1, Timestamp: 10}
	e2 := &event.Event{ObjectID: 1, Timestamp: 20}
	e3 := &event.Event{ObjectID: 1, Timestamp: 30}
	require.NoError(t, p.AddEvent(e1))
	require.NoError(t, p.AddEvent(e2))
	require.NoError(t, p.AddEvent(e3))

	p.RemoveEvent(e2)
	require.Len(t, p.Events, 2)
	assert.Equal(t, int64(10), p.Events[0].Timestamp)
	assert.Equal(t, int64(30), p.Events[1].Timestamp)
}

// S2 — sort tie-break: after AddEvent in any order, data-carrying
// event at a tied timestamp sorts first.
func TestSortTieBreakAnyInsertionOrder(t *testing.T) {
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 0, 2}}
	dataEvt := func() *event.Event {
		return &event.Event{ObjectID: 1, Timestamp: 5, Data: []event.Property{{ID: 1, Value: []byte{1}}}}
	}
	plain := func(actionID uint32) *event.Event {
		return &event.Event{ObjectID: 1, Timestamp: 5, ActionID: actionID}
	}

	for _, order := range orders {
		p := New(1)
		events := []*event.Event{plain(1), dataEvt(), plain(2)}
		for _, idx := range order {
			require.NoError(t, p.AddEvent(events[idx]))
		}
		require.Len(t, p.Events, 3)
		assert.True(t, p.Events[0].HasData(), "order %v: data event must sort first", order)
	}
}

// S3 — splice at head: inserting ts=5 before existing ts=10,20,30.
func TestSpliceStatsAtHead(t *testing.T) {
	p := New(1)
	require.NoError(t, p.AddEvent(&event.Event{ObjectID: 1, Timestamp: 10}))
	require.NoError(t, p.AddEvent(&event.Event{ObjectID: 1, Timestamp: 20}))
	require.NoError(t, p.AddEvent(&event.Event{ObjectID: 1, Timestamp: 30}))
	raw := mustPack(t, p)

	incoming := &event.Event{ObjectID: 1, Timestamp: 5}
	stats, err := SpliceStats(raw, incoming)
	require.NoError(t, err)
	require.Len(t, stats, 4)

	sz5 := event.Size(incoming)
	sz := event.Size(&event.Event{})

	assert.Equal(t, HeaderLength, stats[0].StartPos)
	assert.Equal(t, stats[0].StartPos, stats[0].EndPos)
	assert.Equal(t, sz5, stats[0].Sz)

	assert.Equal(t, HeaderLength+sz5, stats[1].StartPos)
	assert.Equal(t, HeaderLength+sz5+sz, stats[1].EndPos)

	assert.Equal(t, HeaderLength+sz5+sz, stats[2].StartPos)
	assert.Equal(t, HeaderLength+sz5+sz+sz, stats[2].EndPos)

	assert.Equal(t, HeaderLength+sz5+sz+sz, stats[3].StartPos)
}

func TestSpliceStatsDeterminism(t *testing.T) {
	p := New(1)
	require.NoError(t, p.AddEvent(&event.Event{ObjectID: 1, Timestamp: 1}))
	require.NoError(t, p.AddEvent(&event.Event{ObjectID: 1, Timestamp: 2}))
	raw := mustPack(t, p)

	incoming := &event.Event{ObjectID: 1, Timestamp: 3, Data: []event.Property{{ID: 1, Value: []byte("z")}}}
	stats, err := SpliceStats(raw, incoming)
	require.NoError(t, err)
	require.Len(t, stats, 3)

	total := 0
	for _, s := range stats {
		total += s.Sz
	}
	newPath := New(1)
	require.NoError(t, newPath.AddEvent(&event.Event{ObjectID: 1, Timestamp: 1}))
	require.NoError(t, newPath.AddEvent(&event.Event{ObjectID: 1, Timestamp: 2}))
	require.NoError(t, newPath.AddEvent(incoming))
	assert.Equal(t, newPath.eventDataLength(), total)

	last := stats[len(stats)-1]
	assert.Equal(t, incoming.Timestamp, last.Timestamp)
	assert.Equal(t, last.StartPos, last.EndPos)
	assert.Equal(t, event.Size(incoming), last.Sz)
}

func TestSpliceStatsTieBreak(t *testing.T) {
	p := New(1)
	require.NoError(t, p.AddEvent(&event.Event{ObjectID: 1, Timestamp: 5}))
	raw := mustPack(t, p)

	incoming := &event.Event{ObjectID: 1, Timestamp: 5, Data: []event.Property{{ID: 1, Value: []byte("x")}}}
	stats, err := SpliceStats(raw, incoming)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, incoming.Timestamp, stats[0].Timestamp)
	assert.Equal(t, stats[0].StartPos, stats[0].EndPos)
}

func TestPackNilDestination(t *testing.T) {
	_, err := Pack(New(1), nil)
	require.Error(t, err)
}

func TestUnpackCorruptOversizedHeader(t *testing.T) {
	buf := make([]byte, HeaderLength)
	buf[8] = 0xff // declare a huge event_data_length with no body
	buf[9] = 0xff
	buf[10] = 0xff
	buf[11] = 0xff
	var p Path
	_, err := Unpack(&p, buf)
	require.Error(t, err)
}
