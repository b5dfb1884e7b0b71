// Package eventlog implements the bounded sequence log shared in shape by
// completed flows and threshold events: appends assign strictly increasing
// IDs and evict the oldest entry when full; reads take a cursor and can
// block until a matching entry arrives or a timeout elapses.
package eventlog

import (
	"context"
	"sync"
	"time"
)

// Entry is a loggable record. SetSeqID is called exactly once, under the
// append lock, before the entry becomes visible to readers.
type Entry interface {
	SeqID() uint64
	SetSeqID(uint64)
}

// Log is a capacity-bounded append-only ring. Use New.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	head    int // index of the oldest entry
	count   int
	nextID  uint64
	notify  chan struct{} // closed on append, then replaced
}

// New returns a log holding at most capacity entries.
func New(capacity int) *Log {
	if capacity < 1 {
		capacity = 1
	}
	return &Log{
		entries: make([]Entry, capacity),
		nextID:  1,
		notify:  make(chan struct{}),
	}
}

// Append stores e, assigns the next sequence ID, evicts the oldest entry if
// the log is full, and wakes blocked readers. IDs are never reused, even as
// entries are evicted.
func (l *Log) Append(e Entry) uint64 {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	e.SetSeqID(id)
	if l.count == len(l.entries) {
		l.entries[l.head] = e
		l.head = (l.head + 1) % len(l.entries)
	} else {
		l.entries[(l.head+l.count)%len(l.entries)] = e
		l.count++
	}
	notify := l.notify
	l.notify = make(chan struct{})
	l.mu.Unlock()
	close(notify)
	return id
}

// LastID returns the most recently assigned sequence ID, 0 if none.
func (l *Log) LastID() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextID - 1
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// After returns up to max entries with ID greater than cursor satisfying
// match, in ascending ID order. A nil match accepts everything; max <= 0
// means unbounded.
func (l *Log) After(cursor uint64, max int, match func(Entry) bool) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scanLocked(cursor, max, match)
}

func (l *Log) scanLocked(cursor uint64, max int, match func(Entry) bool) []Entry {
	var out []Entry
	for i := 0; i < l.count; i++ {
		e := l.entries[(l.head+i)%len(l.entries)]
		if e.SeqID() <= cursor {
			continue
		}
		if match != nil && !match(e) {
			continue
		}
		out = append(out, e)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// Poll behaves like After but, when nothing matches yet, blocks until a
// matching entry is appended, the timeout elapses, or ctx is done. Timeout
// and cancellation yield an empty result, never an error. timeout <= 0 reads
// without blocking. Waiters are woken by appends; there is no polling loop
// running between appends.
func (l *Log) Poll(ctx context.Context, cursor uint64, max int, timeout time.Duration, match func(Entry) bool) []Entry {
	var timer *time.Timer
	for {
		l.mu.Lock()
		notify := l.notify
		out := l.scanLocked(cursor, max, match)
		l.mu.Unlock()
		if len(out) > 0 || timeout <= 0 {
			return out
		}
		if timer == nil {
			timer = time.NewTimer(timeout)
			defer timer.Stop()
		}
		select {
		case <-notify:
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}
