package thresholds

import (
	"sort"
	"sync"
	"time"
)

type stateKind int

const (
	armed stateKind = iota
	triggered
)

// cell is the state of one (threshold, flow key) pair. Thresholds without
// byFlow use a single cell keyed "".
type cell struct {
	state      stateKind
	belowSince time.Time
	hasBelow   bool
	lastSeen   time.Time
}

// Evaluator drives the state machine of one threshold.
type Evaluator struct {
	spec *Spec
	log  *Log

	mu    sync.Mutex
	cells map[string]*cell
}

// NewEvaluator returns an evaluator for spec appending its events to log.
func NewEvaluator(spec *Spec, log *Log) *Evaluator {
	return &Evaluator{spec: spec, log: log, cells: make(map[string]*cell)}
}

// Spec returns the compiled threshold.
func (ev *Evaluator) Spec() *Spec { return ev.spec }

// Observe runs one value update through the threshold. get supplies the
// observation's attributes to the threshold filter; key is the flow key for
// byFlow tracking, empty for plain metrics. The transition and the event
// append happen under one lock, so event order follows observation order.
// The returned event, if any, is already in the log.
func (ev *Evaluator) Observe(agent, dataSource, key string, value float64, get func(string) (string, bool), when time.Time) *Event {
	if !ev.spec.Filter.Match(get) {
		return nil
	}
	id := key
	if !ev.spec.ByFlow {
		id = ""
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()
	st, ok := ev.cells[id]
	if !ok {
		st = &cell{}
		ev.cells[id] = st
	}
	st.lastSeen = when

	if value > ev.spec.Value {
		// any excursion above the level restarts the re-arm dwell
		st.belowSince, st.hasBelow = time.Time{}, false
		if st.state == triggered {
			return nil
		}
		st.state = triggered
		e := &Event{
			ThresholdID: ev.spec.Name,
			Agent:       agent,
			DataSource:  dataSource,
			Metric:      ev.spec.Metric,
			FlowKey:     key,
			Value:       value,
			Threshold:   ev.spec.Value,
			Timestamp:   when.UnixMilli(),
		}
		ev.log.Append(e)
		return e
	}

	if st.state == triggered {
		if !st.hasBelow {
			st.belowSince, st.hasBelow = when, true
		} else if when.Sub(st.belowSince) >= ev.spec.Timeout {
			st.state = armed
			st.hasBelow = false
		}
	}
	return nil
}

// Tick advances re-arm dwells against the wall clock, so a metric that
// dipped below the level and then went quiet still re-arms.
func (ev *Evaluator) Tick(now time.Time) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	for _, st := range ev.cells {
		if st.state == triggered && st.hasBelow && now.Sub(st.belowSince) >= ev.spec.Timeout {
			st.state = armed
			st.hasBelow = false
		}
	}
}

// Prune drops cells not observed since the deadline. The deadline is the
// agent staleness horizon, far past the hysteresis window; a threshold that
// went completely silent for that long starts over ARMED.
func (ev *Evaluator) Prune(deadline time.Time) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	for id, st := range ev.cells {
		if st.lastSeen.Before(deadline) {
			delete(ev.cells, id)
		}
	}
}

// Triggered returns the keys currently in the TRIGGERED state, sorted.
func (ev *Evaluator) Triggered() []string {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	var keys []string
	for id, st := range ev.cells {
		if st.state == triggered {
			keys = append(keys, id)
		}
	}
	sort.Strings(keys)
	return keys
}
