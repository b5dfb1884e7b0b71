package engine

import (
	"context"
	"time"

	"github.com/iluxa/sflow-rt/filter"
	"github.com/iluxa/sflow-rt/flows"
	"github.com/iluxa/sflow-rt/metrics"
	"github.com/iluxa/sflow-rt/thresholds"
)

// maxPollWait caps client-supplied long-poll timeouts.
const maxPollWait = 5 * time.Minute

// ActiveFlows lists the highest-valued active flows of one specification,
// combined per agg and filtered by minValue. An unknown name yields an
// empty list.
func (e *Engine) ActiveFlows(name string, maxFlows int, minValue float64, agg flows.AggMode) []flows.FlowView {
	inst, ok := e.reg.Load().flows[name]
	if !ok {
		return nil
	}
	return inst.cache.Top(maxFlows, minValue, agg)
}

// FlowLog returns up to maxFlows logged flows with IDs above flowID
// matching f, waiting up to timeout for the first match. An elapsed
// timeout yields an empty result, not an error.
func (e *Engine) FlowLog(ctx context.Context, f *filter.Filter, flowID uint64, maxFlows int, timeout time.Duration) []*flows.CompletedFlow {
	return e.flowLog.Poll(ctx, flowID, maxFlows, clampWait(timeout), f)
}

// Events returns up to maxEvents threshold events with IDs above eventID
// matching f, waiting up to timeout for the first match.
func (e *Engine) Events(ctx context.Context, f *filter.Filter, eventID uint64, maxEvents int, timeout time.Duration) []*thresholds.Event {
	return e.eventLog.Poll(ctx, eventID, maxEvents, clampWait(timeout), f)
}

func clampWait(timeout time.Duration) time.Duration {
	if timeout > maxPollWait {
		return maxPollWait
	}
	return timeout
}

// LastFlowID returns the most recent completed-flow sequence ID, for
// cursor bootstrap.
func (e *Engine) LastFlowID() uint64 { return e.flowLog.LastID() }

// LastEventID returns the most recent event sequence ID.
func (e *Engine) LastEventID() uint64 { return e.eventLog.LastID() }

// Metric reduces one metric expression, as in Metric(f, "sum:ifinoctets"),
// across the agents selected by f. ok=false when no selected agent reports
// the metric.
func (e *Engine) Metric(f *filter.Filter, expr string) (float64, bool, error) {
	r, name, err := metrics.ParseMetric(expr)
	if err != nil {
		return 0, false, err
	}
	v, ok := e.store.Query(f, r, name)
	return v, ok, nil
}

// Dump returns every metric one agent currently reports.
func (e *Engine) Dump(agent string) map[string]float64 { return e.store.Dump(agent) }

// MetricNames lists every metric name currently reported, sorted.
func (e *Engine) MetricNames() []string { return e.store.Names() }

// Agents lists tracked agents accepted by f, ordered by address.
func (e *Engine) Agents(f *filter.Filter) []metrics.AgentInfo { return e.store.Agents(f) }
