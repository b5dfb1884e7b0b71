package thresholds

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iluxa/sflow-rt/filter"
)

func compileThreshold(t *testing.T, name string, def Definition) *Spec {
	t.Helper()
	s, err := Compile(name, def)
	require.NoError(t, err)
	return s
}

func getter(attrs map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := attrs[name]
		return v, ok
	}
}

func TestCompileDefaults(t *testing.T) {
	s := compileThreshold(t, "busy", Definition{Metric: "ifinutilization", Value: 80})
	assert.Equal(t, DefaultTimeout, s.Timeout)
	assert.False(t, s.ByFlow)
	assert.Nil(t, s.Filter)

	s = compileThreshold(t, "busy", Definition{Metric: "ifinutilization", Value: 80, Timeout: 10})
	assert.Equal(t, 10*time.Second, s.Timeout)
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile("", Definition{Metric: "m", Value: 1})
	assert.Error(t, err)
	_, err = Compile("x", Definition{Value: 1})
	assert.Error(t, err)
	_, err = Compile("x", Definition{Metric: "m", Timeout: -1})
	assert.Error(t, err)
	_, err = Compile("x", Definition{Metric: "m", Filter: "agent="})
	assert.Error(t, err)
}

func TestHysteresis(t *testing.T) {
	spec := compileThreshold(t, "load", Definition{Metric: "load_one", Value: 1.0, Timeout: 60})
	log := NewLog(100)
	ev := NewEvaluator(spec, log)
	t0 := time.Unix(1700000000, 0)
	observe := func(v float64, at time.Time) *Event {
		return ev.Observe("10.0.0.20", "2.1", "", v, nil, at)
	}

	e := observe(1.5, t0)
	require.NotNil(t, e)
	assert.Equal(t, "load", e.ThresholdID)
	assert.Equal(t, 1.5, e.Value)
	assert.Equal(t, 1.0, e.Threshold)
	assert.Equal(t, uint64(1), e.EventID)
	assert.Equal(t, t0.UnixMilli(), e.Timestamp)

	// repeated crossings while triggered stay quiet
	assert.Nil(t, observe(2.0, t0.Add(5*time.Second)))

	// below for 30s, then up again: no event, and the dwell resets
	assert.Nil(t, observe(0.5, t0.Add(10*time.Second)))
	assert.Nil(t, observe(0.5, t0.Add(30*time.Second)))
	assert.Nil(t, observe(1.5, t0.Add(40*time.Second)))

	// only 60 continuous seconds below the level re-arm
	assert.Nil(t, observe(0.5, t0.Add(50*time.Second)))
	assert.Nil(t, observe(0.5, t0.Add(80*time.Second)))
	assert.Len(t, ev.Triggered(), 1)
	assert.Nil(t, observe(0.5, t0.Add(111*time.Second)))
	assert.Empty(t, ev.Triggered())

	e = observe(1.5, t0.Add(120*time.Second))
	require.NotNil(t, e)
	assert.Equal(t, uint64(2), e.EventID)
	assert.Len(t, log.After(0, 0, nil), 2)
}

func TestExactLevelDoesNotTrigger(t *testing.T) {
	spec := compileThreshold(t, "load", Definition{Metric: "load_one", Value: 1.0})
	ev := NewEvaluator(spec, NewLog(8))
	assert.Nil(t, ev.Observe("a", "", "", 1.0, nil, time.Unix(1700000000, 0)))
	assert.Empty(t, ev.Triggered())
}

func TestByFlowIndependentStates(t *testing.T) {
	spec := compileThreshold(t, "elephant", Definition{Metric: "tcp", Value: 1000, ByFlow: true, Timeout: 60})
	log := NewLog(100)
	ev := NewEvaluator(spec, log)
	t0 := time.Unix(1700000000, 0)

	e := ev.Observe("a", "1", "10.1.1.1,10.2.2.2", 5000, nil, t0)
	require.NotNil(t, e)
	assert.Equal(t, "10.1.1.1,10.2.2.2", e.FlowKey)

	// a second key triggers independently
	e = ev.Observe("a", "1", "10.3.3.3,10.4.4.4", 5000, nil, t0.Add(time.Second))
	require.NotNil(t, e)

	// the first key stays triggered
	assert.Nil(t, ev.Observe("a", "1", "10.1.1.1,10.2.2.2", 6000, nil, t0.Add(2*time.Second)))
	assert.Len(t, ev.Triggered(), 2)
}

func TestAggregateState(t *testing.T) {
	spec := compileThreshold(t, "elephant", Definition{Metric: "tcp", Value: 1000})
	log := NewLog(100)
	ev := NewEvaluator(spec, log)
	t0 := time.Unix(1700000000, 0)

	require.NotNil(t, ev.Observe("a", "1", "10.1.1.1,10.2.2.2", 5000, nil, t0))
	// without byFlow a different key shares the aggregate state
	assert.Nil(t, ev.Observe("b", "1", "10.3.3.3,10.4.4.4", 5000, nil, t0.Add(time.Second)))
	assert.Len(t, log.After(0, 0, nil), 1)
}

func TestObserveFilter(t *testing.T) {
	spec := compileThreshold(t, "edge", Definition{Metric: "ifinutilization", Value: 80, Filter: "agent=10.*"})
	ev := NewEvaluator(spec, NewLog(8))
	t0 := time.Unix(1700000000, 0)

	assert.Nil(t, ev.Observe("192.168.1.5", "1", "", 95, getter(map[string]string{"agent": "192.168.1.5"}), t0))
	assert.NotNil(t, ev.Observe("10.0.0.20", "1", "", 95, getter(map[string]string{"agent": "10.0.0.20"}), t0))
}

func TestTickReArmsQuietMetric(t *testing.T) {
	spec := compileThreshold(t, "load", Definition{Metric: "load_one", Value: 1.0, Timeout: 60})
	ev := NewEvaluator(spec, NewLog(8))
	t0 := time.Unix(1700000000, 0)

	require.NotNil(t, ev.Observe("a", "", "", 1.5, nil, t0))
	assert.Nil(t, ev.Observe("a", "", "", 0.5, nil, t0.Add(10*time.Second)))

	ev.Tick(t0.Add(30 * time.Second))
	assert.Len(t, ev.Triggered(), 1)

	ev.Tick(t0.Add(71 * time.Second))
	assert.Empty(t, ev.Triggered())

	require.NotNil(t, ev.Observe("a", "", "", 1.5, nil, t0.Add(80*time.Second)))
}

func TestPrune(t *testing.T) {
	spec := compileThreshold(t, "elephant", Definition{Metric: "tcp", Value: 1000, ByFlow: true})
	ev := NewEvaluator(spec, NewLog(8))
	t0 := time.Unix(1700000000, 0)

	require.NotNil(t, ev.Observe("a", "1", "k1", 5000, nil, t0))
	require.NotNil(t, ev.Observe("a", "1", "k2", 5000, nil, t0.Add(4*time.Minute)))
	assert.Len(t, ev.Triggered(), 2)

	ev.Prune(t0.Add(2 * time.Minute))
	assert.Equal(t, []string{"k2"}, ev.Triggered())

	// a pruned key triggers afresh
	assert.NotNil(t, ev.Observe("a", "1", "k1", 5000, nil, t0.Add(5*time.Minute)))
}

func TestEventLogFilter(t *testing.T) {
	l := NewLog(8)
	l.Append(&Event{ThresholdID: "load", Agent: "10.0.0.20", Metric: "load_one", Value: 2.5})
	l.Append(&Event{ThresholdID: "elephant", Agent: "10.0.0.21", Metric: "tcp", FlowKey: "10.1.1.1,443"})

	f, err := filter.Parse("thresholdID=load")
	require.NoError(t, err)
	got := l.After(0, 0, f)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].EventID)

	f, err = filter.Parse("key1=443")
	require.NoError(t, err)
	got = l.After(0, 0, f)
	require.Len(t, got, 1)
	assert.Equal(t, "elephant", got[0].ThresholdID)
}

func TestEventPollTimesOutEmpty(t *testing.T) {
	l := NewLog(8)
	for i := 0; i < 12; i++ {
		l.Append(&Event{ThresholdID: "load"})
	}
	start := time.Now()
	got := l.Poll(context.Background(), 12, 5, 150*time.Millisecond, nil)
	assert.Empty(t, got)
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}
