package flows

import (
	"context"
	"time"

	"github.com/iluxa/sflow-rt/eventlog"
	"github.com/iluxa/sflow-rt/filter"
)

// Log is the completed-flow log: a typed view of the shared bounded
// sequence log.
type Log struct {
	ring *eventlog.Log
}

// NewLog returns a flow log holding at most capacity records.
func NewLog(capacity int) *Log {
	return &Log{ring: eventlog.New(capacity)}
}

// Append logs a completed flow and returns its flowID.
func (l *Log) Append(f *CompletedFlow) uint64 {
	return l.ring.Append(f)
}

// LastID returns the most recently assigned flowID.
func (l *Log) LastID() uint64 { return l.ring.LastID() }

// After returns up to max flows with flowID greater than cursor matching f,
// oldest first.
func (l *Log) After(cursor uint64, max int, f *filter.Filter) []*CompletedFlow {
	return toFlows(l.ring.After(cursor, max, flowMatch(f)))
}

// Poll behaves like After but blocks up to timeout for a matching flow.
// Timeout and cancellation yield an empty result.
func (l *Log) Poll(ctx context.Context, cursor uint64, max int, timeout time.Duration, f *filter.Filter) []*CompletedFlow {
	return toFlows(l.ring.Poll(ctx, cursor, max, timeout, flowMatch(f)))
}

func flowMatch(f *filter.Filter) func(eventlog.Entry) bool {
	if f == nil {
		return nil
	}
	return func(e eventlog.Entry) bool {
		return f.Match(e.(*CompletedFlow).Attr)
	}
}

func toFlows(entries []eventlog.Entry) []*CompletedFlow {
	if len(entries) == 0 {
		return nil
	}
	out := make([]*CompletedFlow, len(entries))
	for i, e := range entries {
		out[i] = e.(*CompletedFlow)
	}
	return out
}
