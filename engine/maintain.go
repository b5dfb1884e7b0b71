package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/iluxa/sflow-rt/export"
	"github.com/iluxa/sflow-rt/flows"
)

// AddExporter registers an exporter for completed flows and threshold
// events. Exporters are configured before ingestion starts.
func (e *Engine) AddExporter(x export.Exporter) {
	e.exporters.Append(x)
}

// Run drives periodic maintenance until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := e.clk.NewTicker(e.opts.Maintenance)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			e.maintain(e.clk.Now())
		}
	}
}

// maintain runs one pass: slot expiry and top-N eviction on every cache
// with completion fan-out, threshold dwell advancement, and stale-agent
// pruning.
func (e *Engine) maintain(now time.Time) {
	cur := e.reg.Load()
	for _, inst := range cur.flows {
		for _, f := range inst.cache.Maintain(now) {
			e.complete(inst.spec, f)
		}
	}
	deadline := now.Add(-e.opts.AgentTimeout)
	for _, ev := range cur.thresholds {
		ev.Tick(now)
		ev.Prune(deadline)
	}
	for _, agent := range e.store.Prune(deadline) {
		e.log.Info("agent expired", "agent", agent)
	}
}

// complete routes one completed flow to the log and the exporters. With
// flowStart set the specification logs creations instead, so end-of-life
// records skip the log but still reach the exporters.
func (e *Engine) complete(spec *flows.Spec, f *flows.CompletedFlow) {
	if spec.Log && !spec.FlowStart {
		e.flowLog.Append(f)
	}
	e.exporters.Flow(spec, f)
}

// Shutdown completes every active flow with reason shutdown and finishes
// the exporters. The engine must not ingest afterwards.
func (e *Engine) Shutdown() {
	now := e.clk.Now()
	cur := e.reg.Load()
	for _, inst := range cur.flows {
		for _, f := range inst.cache.Flush(now) {
			e.complete(inst.spec, f)
		}
	}
	e.exporters.Finish()
	e.log.Info("engine stopped",
		"received", e.received.Load(), "dropped", e.dropped.Load())
}

// WriteStats writes ingestion and table counters to w.
func (e *Engine) WriteStats(w io.Writer) {
	cur := e.reg.Load()
	var active int
	for _, inst := range cur.flows {
		active += inst.cache.Len()
	}
	fmt.Fprintf(w, "samples received: %d\n", e.received.Load())
	fmt.Fprintf(w, "samples dropped: %d\n", e.dropped.Load())
	fmt.Fprintf(w, "flow specifications: %d\n", len(cur.flows))
	fmt.Fprintf(w, "thresholds: %d\n", len(cur.thresholds))
	fmt.Fprintf(w, "active flows: %d\n", active)
	fmt.Fprintf(w, "agents: %d\n", e.store.Len())
	fmt.Fprintf(w, "flows logged: %d\n", e.flowLog.LastID())
	fmt.Fprintf(w, "events: %d\n", e.eventLog.LastID())
}
