// Package export fans completed flows and threshold events out to the
// configured exporter modules.
package export

import (
	"github.com/iluxa/sflow-rt/flows"
	"github.com/iluxa/sflow-rt/thresholds"
	"github.com/iluxa/sflow-rt/util"
)

const exporterName = "exporter"

// Exporter receives completed flows and threshold events. Flow carries the
// originating specification so adapters can honor per-spec settings such as
// ipfixCollectors. Calls arrive concurrently from the maintenance and
// ingestion paths.
type Exporter interface {
	util.Module
	// Flow exports one completed flow record.
	Flow(spec *flows.Spec, f *flows.CompletedFlow)
	// Event exports one threshold event.
	Event(e *thresholds.Event)
	// Finish blocks until buffered records are written and releases the
	// exporter's resources.
	Finish()
}

// RegisterExporter makes an exporter constructor selectable by name.
func RegisterExporter(name, desc string, new util.ModuleCreator, help util.ModuleHelp) {
	util.RegisterModule(exporterName, name, desc, new, help)
}

// ExporterHelp prints an exporter's usage text.
func ExporterHelp(which string) error { return util.GetModuleHelp(exporterName, which) }

// MakeExporter instantiates the named exporter with args, returning the
// arguments it did not consume.
func MakeExporter(which string, args []string) ([]string, Exporter, error) {
	rest, mod, err := util.CreateModule(exporterName, which, args)
	if err != nil {
		return rest, nil, err
	}
	return rest, mod.(Exporter), nil
}

// ListExporters returns the registered exporter descriptions.
func ListExporters() ([]util.ModuleDescription, error) {
	return util.GetModules(exporterName)
}

// Exporters fans records out to a set of exporters, de-duplicated by ID.
type Exporters struct {
	list []Exporter
	seen map[string]bool
}

// Append adds an exporter unless one with the same ID is already present.
func (es *Exporters) Append(e Exporter) {
	if es.seen == nil {
		es.seen = make(map[string]bool)
	}
	if es.seen[e.ID()] {
		return
	}
	es.seen[e.ID()] = true
	es.list = append(es.list, e)
}

// Empty reports whether no exporter is configured.
func (es *Exporters) Empty() bool { return len(es.list) == 0 }

// List returns the configured exporters in append order.
func (es *Exporters) List() []Exporter { return es.list }

// Init initializes every exporter.
func (es *Exporters) Init() {
	for _, e := range es.list {
		e.Init()
	}
}

// Flow forwards one completed flow to every exporter.
func (es *Exporters) Flow(spec *flows.Spec, f *flows.CompletedFlow) {
	for _, e := range es.list {
		e.Flow(spec, f)
	}
}

// Event forwards one threshold event to every exporter.
func (es *Exporters) Event(ev *thresholds.Event) {
	for _, e := range es.list {
		e.Event(ev)
	}
}

// Finish flushes every exporter in order.
func (es *Exporters) Finish() {
	for _, e := range es.list {
		e.Finish()
	}
}
