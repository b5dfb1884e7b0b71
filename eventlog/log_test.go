package eventlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEntry struct {
	id   uint64
	kind string
}

func (e *testEntry) SeqID() uint64      { return e.id }
func (e *testEntry) SetSeqID(id uint64) { e.id = id }

func ids(entries []Entry) []uint64 {
	out := make([]uint64, len(entries))
	for i, e := range entries {
		out[i] = e.SeqID()
	}
	return out
}

func TestAppendAssignsIncreasingIDs(t *testing.T) {
	l := New(4)
	for i := 0; i < 10; i++ {
		id := l.Append(&testEntry{})
		assert.Equal(t, uint64(i+1), id)
	}
	assert.Equal(t, uint64(10), l.LastID())
	assert.Equal(t, 4, l.Len())

	// IDs survive eviction: only the newest four entries remain, still in
	// ascending order, nothing reused.
	got := l.After(0, 0, nil)
	assert.Equal(t, []uint64{7, 8, 9, 10}, ids(got))
}

func TestAfterCursorAndLimit(t *testing.T) {
	l := New(16)
	for i := 0; i < 8; i++ {
		l.Append(&testEntry{kind: map[bool]string{true: "even", false: "odd"}[i%2 == 0]})
	}

	assert.Equal(t, []uint64{6, 7, 8}, ids(l.After(5, 0, nil)))
	assert.Equal(t, []uint64{1, 2}, ids(l.After(0, 2, nil)))
	assert.Empty(t, l.After(8, 0, nil))

	even := func(e Entry) bool { return e.(*testEntry).kind == "even" }
	assert.Equal(t, []uint64{1, 3, 5, 7}, ids(l.After(0, 0, even)))
	assert.Equal(t, []uint64{3, 5}, ids(l.After(1, 2, even)))
}

func TestPollReturnsImmediatelyWhenDataPresent(t *testing.T) {
	l := New(8)
	l.Append(&testEntry{})
	l.Append(&testEntry{})

	start := time.Now()
	got := l.Poll(context.Background(), 0, 0, 5*time.Second, nil)
	assert.Equal(t, []uint64{1, 2}, ids(got))
	assert.Less(t, time.Since(start), time.Second)
}

func TestPollTimesOutEmpty(t *testing.T) {
	l := New(8)
	l.Append(&testEntry{})

	start := time.Now()
	got := l.Poll(context.Background(), 1, 5, 150*time.Millisecond, nil)
	elapsed := time.Since(start)

	assert.Empty(t, got, "timeout yields an empty result, not an error")
	assert.GreaterOrEqual(t, elapsed, 140*time.Millisecond, "poll must wait out the timeout")
	assert.Less(t, elapsed, 2*time.Second, "poll must not block past the timeout")
}

func TestPollWokenByAppend(t *testing.T) {
	l := New(8)
	go func() {
		time.Sleep(30 * time.Millisecond)
		l.Append(&testEntry{kind: "wanted"})
	}()

	got := l.Poll(context.Background(), 0, 0, 5*time.Second, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "wanted", got[0].(*testEntry).kind)
}

func TestPollSkipsNonMatchingAppends(t *testing.T) {
	l := New(8)
	go func() {
		time.Sleep(20 * time.Millisecond)
		l.Append(&testEntry{kind: "noise"})
		time.Sleep(20 * time.Millisecond)
		l.Append(&testEntry{kind: "wanted"})
	}()

	match := func(e Entry) bool { return e.(*testEntry).kind == "wanted" }
	got := l.Poll(context.Background(), 0, 0, 5*time.Second, match)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(2), got[0].SeqID())
}

func TestPollCancelled(t *testing.T) {
	l := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	got := l.Poll(ctx, 0, 0, 5*time.Second, nil)
	assert.Empty(t, got)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPollNonBlockingWithZeroTimeout(t *testing.T) {
	l := New(8)
	got := l.Poll(context.Background(), 0, 0, 0, nil)
	assert.Empty(t, got)
}
