// Package csv exports completed flows to a csv file.
package csv

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/iluxa/sflow-rt/export"
	"github.com/iluxa/sflow-rt/flows"
	"github.com/iluxa/sflow-rt/thresholds"
	"github.com/iluxa/sflow-rt/util"
)

// produces RFC4180 conforming csv (except for the line ending, which is LF
// instead of CRLF); encoding/csv is not used since key lists are the only
// fields that ever need quoting

const writeBufferSize = 64 * 1024

var columns = []string{"flowID", "name", "agent", "dataSource", "flowKeys", "value", "start", "end", "endReason"}

type csvExporter struct {
	id      string
	outfile string
	flush   bool
	f       io.WriteCloser
	mu      sync.Mutex
	writer  *bufio.Writer
}

func (pe *csvExporter) writeString(field string) {
	if field == "" {
		return
	}
	if !strings.ContainsAny(field, "\"\r\n,") {
		r1, _ := utf8.DecodeRuneInString(field)
		if unicode.IsSpace(r1) {
			if err := pe.writer.WriteByte('"'); err != nil {
				panic(err)
			}
			if _, err := pe.writer.WriteString(field); err != nil {
				panic(err)
			}
			if err := pe.writer.WriteByte('"'); err != nil {
				panic(err)
			}
			return
		}
		if _, err := pe.writer.WriteString(field); err != nil {
			panic(err)
		}
		return
	}
	if err := pe.writer.WriteByte('"'); err != nil {
		panic(err)
	}
	for len(field) > 0 {
		special := strings.IndexByte(field, '"')
		if special == -1 {
			if _, err := pe.writer.WriteString(field); err != nil {
				panic(err)
			}
			break
		}
		if _, err := pe.writer.WriteString(field[:special]); err != nil {
			panic(err)
		}
		if _, err := pe.writer.WriteString(`""`); err != nil {
			panic(err)
		}
		field = field[special+1:]
	}
	if err := pe.writer.WriteByte('"'); err != nil {
		panic(err)
	}
}

func (pe *csvExporter) writeRow(row []string) {
	for i, field := range row {
		if i > 0 {
			if err := pe.writer.WriteByte(','); err != nil {
				panic(err)
			}
		}
		pe.writeString(field)
	}
	if err := pe.writer.WriteByte('\n'); err != nil {
		panic(err)
	}
	if pe.flush {
		if err := pe.writer.Flush(); err != nil {
			panic(err)
		}
	}
}

// Flow writes one completed flow as a csv line.
func (pe *csvExporter) Flow(_ *flows.Spec, f *flows.CompletedFlow) {
	row := [...]string{
		strconv.FormatUint(f.FlowID, 10),
		f.Name,
		f.Agent,
		f.DataSource,
		f.FlowKeys,
		strconv.FormatFloat(f.Value, 'g', -1, 64),
		strconv.FormatInt(f.Start, 10),
		strconv.FormatInt(f.End, 10),
		f.EndReason.String(),
	}
	pe.mu.Lock()
	defer pe.mu.Unlock()
	pe.writeRow(row[:])
}

// Event is ignored; the csv layout covers flow records only.
func (pe *csvExporter) Event(*thresholds.Event) {}

// Finish writes outstanding data and closes the file.
func (pe *csvExporter) Finish() {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	pe.writer.Flush()
	if pe.f != os.Stdout {
		pe.f.Close()
	}
}

func (pe *csvExporter) ID() string {
	return pe.id
}

func (pe *csvExporter) Init() {
	if pe.outfile == "-" {
		pe.f = os.Stdout
	} else {
		var err error
		pe.f, err = os.Create(pe.outfile)
		if err != nil {
			log.Fatal("Couldn't open file ", pe.outfile, err)
		}
	}
	pe.writer = bufio.NewWriterSize(pe.f, writeBufferSize)
	pe.writeRow(columns)
}

func newCSVExporter(args []string) (arguments []string, ret util.Module, err error) {
	set := flag.NewFlagSet("csv", flag.ExitOnError)
	set.Usage = func() { csvHelp("csv") }

	flush := set.Bool("flush", false, "Flush after each line")

	set.Parse(args)
	arguments = set.Args()

	if len(arguments) < 1 {
		return nil, nil, errors.New("CSV exporter needs a filename as argument")
	}
	outfile := arguments[0]
	arguments = arguments[1:]

	ret = &csvExporter{id: "CSV|" + outfile, outfile: outfile, flush: *flush}
	return
}

func csvHelp(name string) {
	fmt.Fprintf(os.Stderr, `
The %s exporter writes completed flows to a csv file with a flow per line
and a header row. '-' writes to stdout.

As argument, the output file is needed.

Usage:
  export %s file.csv

Flags:
  -flush
    	Flush after each line (default off)
`, name, name)
}

func init() {
	export.RegisterExporter("csv", "Exports flows to a csv file.", newCSVExporter, csvHelp)
}
