package engine

import (
	"strconv"
	"strings"

	"github.com/iluxa/sflow-rt/flows"
	"github.com/iluxa/sflow-rt/sample"
)

// IngestFlowSample runs one flow sample through every published
// specification and feeds thresholds watching the matched ones. Malformed
// samples are dropped and counted; one bad sample never affects the next.
func (e *Engine) IngestFlowSample(s *sample.Sample) {
	e.received.Add(1)
	if s == nil || s.Agent == "" || s.Time.IsZero() {
		e.dropped.Add(1)
		return
	}
	cur := e.reg.Load()
	for name, inst := range cur.flows {
		upd, ok := inst.cache.Ingest(s, cur.tables)
		if !ok {
			continue
		}
		if upd.Created && inst.spec.Log && inst.spec.FlowStart {
			e.flowLog.Append(inst.cache.StartRecord(upd))
		}
		for _, ev := range cur.byTarget[name] {
			if evt := ev.Observe(upd.Agent, upd.DataSource, upd.Key, upd.Value, flowObservation(upd), upd.When); evt != nil {
				e.exporters.Event(evt)
			}
		}
	}
}

// IngestCounterSample folds one counter sample into the metric store and
// feeds thresholds watching the reported metrics.
func (e *Engine) IngestCounterSample(c *sample.Counters) {
	e.received.Add(1)
	if c == nil || c.Agent == "" || c.Time.IsZero() || len(c.Metrics) == 0 {
		e.dropped.Add(1)
		return
	}
	e.store.Update(c.Agent, c.DataSource, c.Time, c.Metrics)
	cur := e.reg.Load()
	for metric, value := range c.Metrics {
		for _, ev := range cur.byTarget[metric] {
			if evt := ev.Observe(c.Agent, c.DataSource, "", value, counterObservation(c), c.Time); evt != nil {
				e.exporters.Event(evt)
			}
		}
	}
}

// flowObservation exposes a cache update to threshold filters: agent,
// datasource, the joined key, and per-token key0, key1, ...
func flowObservation(upd flows.Update) func(string) (string, bool) {
	return func(name string) (string, bool) {
		switch name {
		case "agent":
			return upd.Agent, true
		case "datasource", "dataSource":
			return upd.DataSource, upd.DataSource != ""
		case "flowkeys", "flowKeys":
			return upd.Key, true
		}
		if strings.HasPrefix(name, "key") {
			if i, err := strconv.Atoi(name[3:]); err == nil {
				keys := strings.Split(upd.Key, ",")
				if i >= 0 && i < len(keys) {
					return keys[i], true
				}
			}
		}
		return "", false
	}
}

func counterObservation(c *sample.Counters) func(string) (string, bool) {
	return func(name string) (string, bool) {
		switch name {
		case "agent":
			return c.Agent, true
		case "datasource", "dataSource":
			return c.DataSource, c.DataSource != ""
		}
		if v, ok := c.Metrics[name]; ok {
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
		return "", false
	}
}
