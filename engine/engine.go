// Package engine wires the analytics core together. It owns the published
// flow specifications and thresholds, ingests normalized samples from the
// configured sources, maintains the per-specification caches, and answers
// retrieval queries.
//
// The published state lives in an immutable registry snapshot behind an
// atomic pointer. The ingestion path reads the snapshot without locking;
// CRUD operations build a new snapshot under a mutex and swap it in, so
// concurrent readers observe either the old or the new specification set,
// never a mix.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"github.com/iluxa/sflow-rt/export"
	"github.com/iluxa/sflow-rt/flows"
	"github.com/iluxa/sflow-rt/logger"
	"github.com/iluxa/sflow-rt/lookup"
	"github.com/iluxa/sflow-rt/metrics"
	"github.com/iluxa/sflow-rt/thresholds"
)

const (
	DefaultFlowLogSize  = 10000
	DefaultEventLogSize = 1000
	DefaultMaintenance  = time.Second
	DefaultAgentTimeout = 5 * time.Minute
)

// Options configure an engine. Zero values select the defaults.
type Options struct {
	// FlowLogSize bounds the completed-flow log.
	FlowLogSize int
	// EventLogSize bounds the threshold event log.
	EventLogSize int
	// Maintenance is the cache maintenance interval.
	Maintenance time.Duration
	// AgentTimeout is the staleness horizon for agents and threshold state.
	AgentTimeout time.Duration
	// Clock is replaceable for tests.
	Clock clock.WithTicker
	// Log receives operational messages.
	Log *logger.Logger
}

// flowInstance pairs one published specification with its cache. Replacing
// a specification builds a fresh instance and discards the old cache
// wholesale.
type flowInstance struct {
	spec  *flows.Spec
	cache *flows.Cache
}

// registry is the immutable snapshot read by the ingestion path.
type registry struct {
	flows      map[string]*flowInstance
	thresholds map[string]*thresholds.Evaluator
	byTarget   map[string][]*thresholds.Evaluator
	tables     *lookup.Tables
}

// reindex rebuilds the evaluator index by watched metric or flow spec name.
func (r *registry) reindex() {
	r.byTarget = make(map[string][]*thresholds.Evaluator, len(r.thresholds))
	for _, ev := range r.thresholds {
		t := ev.Spec().Metric
		r.byTarget[t] = append(r.byTarget[t], ev)
	}
}

// Engine is the analytics core. All methods are safe for concurrent use.
type Engine struct {
	opts Options
	log  *logger.Logger
	clk  clock.WithTicker

	reg atomic.Pointer[registry]
	mu  sync.Mutex // serializes registry swaps

	flowLog  *flows.Log
	eventLog *thresholds.Log
	store    *metrics.Store

	exporters export.Exporters

	received atomic.Uint64
	dropped  atomic.Uint64
}

// New returns an engine with no specifications published.
func New(opts Options) *Engine {
	if opts.FlowLogSize <= 0 {
		opts.FlowLogSize = DefaultFlowLogSize
	}
	if opts.EventLogSize <= 0 {
		opts.EventLogSize = DefaultEventLogSize
	}
	if opts.Maintenance <= 0 {
		opts.Maintenance = DefaultMaintenance
	}
	if opts.AgentTimeout <= 0 {
		opts.AgentTimeout = DefaultAgentTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Log == nil {
		opts.Log = logger.New()
	}
	e := &Engine{
		opts:     opts,
		log:      opts.Log,
		clk:      opts.Clock,
		flowLog:  flows.NewLog(opts.FlowLogSize),
		eventLog: thresholds.NewLog(opts.EventLogSize),
		store:    metrics.NewStore(),
	}
	e.reg.Store(&registry{
		flows:      map[string]*flowInstance{},
		thresholds: map[string]*thresholds.Evaluator{},
		byTarget:   map[string][]*thresholds.Evaluator{},
		tables:     lookup.Empty,
	})
	return e
}

// snapshot copies the current registry for mutation. Callers hold e.mu and
// publish the result with e.publish.
func (e *Engine) snapshot() *registry {
	cur := e.reg.Load()
	next := &registry{
		flows:      make(map[string]*flowInstance, len(cur.flows)+1),
		thresholds: make(map[string]*thresholds.Evaluator, len(cur.thresholds)+1),
		tables:     cur.tables,
	}
	for k, v := range cur.flows {
		next.flows[k] = v
	}
	for k, v := range cur.thresholds {
		next.thresholds[k] = v
	}
	return next
}

func (e *Engine) publish(next *registry) {
	next.reindex()
	e.reg.Store(next)
}

// PutFlow compiles def and publishes it under name, atomically replacing
// any existing specification of that name and discarding its accumulated
// active-flow state.
func (e *Engine) PutFlow(name string, def flows.Definition) error {
	spec, err := flows.Compile(name, def)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.snapshot()
	next.flows[name] = &flowInstance{spec: spec, cache: flows.NewCache(spec)}
	e.publish(next)
	e.log.Info("flow published", "flow", name, "keys", spec.Def.Keys, "value", spec.Def.Value)
	return nil
}

// Flow returns the published definition of name.
func (e *Engine) Flow(name string) (flows.Definition, bool) {
	inst, ok := e.reg.Load().flows[name]
	if !ok {
		return flows.Definition{}, false
	}
	return inst.spec.Def, true
}

// Flows returns every published flow definition by name.
func (e *Engine) Flows() map[string]flows.Definition {
	cur := e.reg.Load()
	out := make(map[string]flows.Definition, len(cur.flows))
	for name, inst := range cur.flows {
		out[name] = inst.spec.Def
	}
	return out
}

// DeleteFlow unpublishes name, discarding its active-flow state. Deleting
// an unknown name reports false.
func (e *Engine) DeleteFlow(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.reg.Load().flows[name]; !ok {
		return false
	}
	next := e.snapshot()
	delete(next.flows, name)
	e.publish(next)
	e.log.Info("flow removed", "flow", name)
	return true
}

// PutThreshold compiles def and publishes it under name. Replacing a
// threshold discards its ARMED/TRIGGERED state.
func (e *Engine) PutThreshold(name string, def thresholds.Definition) error {
	spec, err := thresholds.Compile(name, def)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.snapshot()
	next.thresholds[name] = thresholds.NewEvaluator(spec, e.eventLog)
	e.publish(next)
	e.log.Info("threshold published", "threshold", name, "metric", spec.Metric, "value", spec.Value)
	return nil
}

// Threshold returns the published definition of name.
func (e *Engine) Threshold(name string) (thresholds.Definition, bool) {
	ev, ok := e.reg.Load().thresholds[name]
	if !ok {
		return thresholds.Definition{}, false
	}
	return ev.Spec().Def, true
}

// Thresholds returns every published threshold definition by name.
func (e *Engine) Thresholds() map[string]thresholds.Definition {
	cur := e.reg.Load()
	out := make(map[string]thresholds.Definition, len(cur.thresholds))
	for name, ev := range cur.thresholds {
		out[name] = ev.Spec().Def
	}
	return out
}

// DeleteThreshold unpublishes name, discarding its state.
func (e *Engine) DeleteThreshold(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.reg.Load().thresholds[name]; !ok {
		return false
	}
	next := e.snapshot()
	delete(next.thresholds, name)
	e.publish(next)
	e.log.Info("threshold removed", "threshold", name)
	return true
}

// SetGroups replaces the named CIDR groups consulted by group: key
// functions and the sourcegroup/destinationgroup attributes. Samples
// already ingested keep their resolved tokens.
func (e *Engine) SetGroups(defs map[string][]string) error {
	groups, err := lookup.NewGroups(defs)
	if err != nil {
		return err
	}
	e.setTables(func(t *lookup.Tables) { t.Groups = groups })
	e.log.Info("groups published", "groups", len(defs))
	return nil
}

// SetASNs replaces the autonomous-system table used by asn: key functions.
func (e *Engine) SetASNs(defs map[string]lookup.ASN) error {
	asns, err := lookup.NewASNs(defs)
	if err != nil {
		return err
	}
	e.setTables(func(t *lookup.Tables) { t.ASNs = asns })
	return nil
}

// SetOUIs replaces the MAC-prefix registry used by oui: key functions.
func (e *Engine) SetOUIs(defs map[string]lookup.Org) error {
	ouis, err := lookup.NewOUIs(defs)
	if err != nil {
		return err
	}
	e.setTables(func(t *lookup.Tables) { t.OUIs = ouis })
	return nil
}

// SetHosts replaces the known-host table used by host: key functions.
func (e *Engine) SetHosts(defs map[string]lookup.Host) {
	hosts := lookup.NewHosts(defs)
	e.setTables(func(t *lookup.Tables) { t.Hosts = hosts })
}

// SetCountries replaces the geolocation table used by country: key
// functions.
func (e *Engine) SetCountries(defs map[string][]string) error {
	countries, err := lookup.NewCountries(defs)
	if err != nil {
		return err
	}
	e.setTables(func(t *lookup.Tables) { t.Countries = countries })
	return nil
}

func (e *Engine) setTables(mutate func(*lookup.Tables)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.snapshot()
	tables := *next.tables
	mutate(&tables)
	next.tables = &tables
	e.publish(next)
}
