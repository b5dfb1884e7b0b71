package thresholds

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/iluxa/sflow-rt/eventlog"
	"github.com/iluxa/sflow-rt/filter"
)

// Event is one ARMED to TRIGGERED transition.
type Event struct {
	EventID     uint64  `json:"eventID"`
	ThresholdID string  `json:"thresholdID"`
	Agent       string  `json:"agent"`
	DataSource  string  `json:"dataSource,omitempty"`
	Metric      string  `json:"metric"`
	FlowKey     string  `json:"flowKey,omitempty"`
	Value       float64 `json:"value"`
	Threshold   float64 `json:"threshold"`
	Timestamp   int64   `json:"timestamp"`
}

func (e *Event) SeqID() uint64      { return e.EventID }
func (e *Event) SetSeqID(id uint64) { e.EventID = id }

// Attr exposes the event's fields to retrieval filters. Flow key tokens are
// matchable as key0, key1, ...
func (e *Event) Attr(name string) (string, bool) {
	switch name {
	case "thresholdid", "thresholdID":
		return e.ThresholdID, true
	case "agent":
		return e.Agent, true
	case "datasource", "dataSource":
		return e.DataSource, e.DataSource != ""
	case "metric":
		return e.Metric, true
	case "flowkey", "flowKey":
		return e.FlowKey, e.FlowKey != ""
	case "value":
		return strconv.FormatFloat(e.Value, 'f', -1, 64), true
	}
	if strings.HasPrefix(name, "key") {
		if i, err := strconv.Atoi(name[3:]); err == nil {
			keys := strings.Split(e.FlowKey, ",")
			if i >= 0 && i < len(keys) && keys[i] != "" {
				return keys[i], true
			}
		}
	}
	return "", false
}

// Log is the bounded threshold event log.
type Log struct {
	ring *eventlog.Log
}

// NewLog returns an event log holding at most capacity entries.
func NewLog(capacity int) *Log {
	return &Log{ring: eventlog.New(capacity)}
}

// Append assigns the event's ID and stores it.
func (l *Log) Append(e *Event) uint64 { return l.ring.Append(e) }

// LastID returns the most recently assigned event ID.
func (l *Log) LastID() uint64 { return l.ring.LastID() }

// After returns up to max events with IDs greater than cursor matching f.
func (l *Log) After(cursor uint64, max int, f *filter.Filter) []*Event {
	return toEvents(l.ring.After(cursor, max, eventMatch(f)))
}

// Poll is After with a bounded wait for the first match. An elapsed timeout
// yields an empty result.
func (l *Log) Poll(ctx context.Context, cursor uint64, max int, timeout time.Duration, f *filter.Filter) []*Event {
	return toEvents(l.ring.Poll(ctx, cursor, max, timeout, eventMatch(f)))
}

func eventMatch(f *filter.Filter) func(eventlog.Entry) bool {
	if f == nil {
		return nil
	}
	return func(entry eventlog.Entry) bool {
		e, ok := entry.(*Event)
		return ok && f.Match(e.Attr)
	}
}

func toEvents(entries []eventlog.Entry) []*Event {
	if len(entries) == 0 {
		return nil
	}
	out := make([]*Event, len(entries))
	for i := range entries {
		out[i] = entries[i].(*Event)
	}
	return out
}
