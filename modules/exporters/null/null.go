// Package null implements an exporter that discards everything. Useful for
// performance measurements.
package null

import (
	"fmt"
	"os"

	"github.com/iluxa/sflow-rt/export"
	"github.com/iluxa/sflow-rt/flows"
	"github.com/iluxa/sflow-rt/thresholds"
	"github.com/iluxa/sflow-rt/util"
)

type nullExporter struct{}

func (nullExporter) Flow(*flows.Spec, *flows.CompletedFlow) {}
func (nullExporter) Event(*thresholds.Event)                {}
func (nullExporter) Finish()                                {}

func (nullExporter) ID() string {
	return "null"
}

func (nullExporter) Init() {}

func newNullExporter(args []string) ([]string, util.Module, error) {
	return args, nullExporter{}, nil
}

func nullHelp(name string) {
	fmt.Fprintf(os.Stderr, `
The %s exporter does not write out anything.

Usage:
  export %s
`, name, name)
}

func init() {
	export.RegisterExporter("null", "Exports nothing.", newNullExporter, nullHelp)
}
