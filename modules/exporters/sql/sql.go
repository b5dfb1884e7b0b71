// Package sql writes completed flows as INSERT statements to a file for
// bulk import, with a CREATE TABLE preamble. MySQL and PostgreSQL syntax
// are supported.
package sql

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/iluxa/sflow-rt/export"
	"github.com/iluxa/sflow-rt/flows"
	"github.com/iluxa/sflow-rt/thresholds"
	"github.com/iluxa/sflow-rt/util"
)

const writeBufferSize = 64 * 1024

// dialect carries the engine specific bits of the generated statements.
// The type list is positional and matches tableColumns.
type dialect struct {
	quote byte
	types []string
}

var tableColumns = []string{
	"flow_id",
	"name",
	"agent",
	"data_source",
	"flow_keys",
	"value",
	"start_ms",
	"end_ms",
	"end_reason",
}

type sqlExporter struct {
	id      string
	outfile string
	table   string
	d       dialect
	f       io.WriteCloser
	mu      sync.Mutex
	writer  *bufio.Writer
	fields  string
}

func (se *sqlExporter) ident(name string) string {
	return string(se.d.quote) + name + string(se.d.quote)
}

// Flow writes one INSERT statement.
func (se *sqlExporter) Flow(_ *flows.Spec, f *flows.CompletedFlow) {
	values := []string{
		strconv.FormatUint(f.FlowID, 10),
		quoteString(f.Name),
		quoteString(f.Agent),
		quoteString(f.DataSource),
		quoteString(f.FlowKeys),
		formatFloat(f.Value),
		strconv.FormatInt(f.Start, 10),
		strconv.FormatInt(f.End, 10),
		quoteString(f.EndReason.String()),
	}
	se.mu.Lock()
	defer se.mu.Unlock()
	_, err := fmt.Fprintf(se.writer, "INSERT INTO %s (%s) VALUES (%s);\n",
		se.ident(se.table), se.fields, strings.Join(values, ", "))
	if err != nil {
		panic(err)
	}
}

// Event is ignored; the table schema covers flow records only.
func (se *sqlExporter) Event(*thresholds.Event) {}

// Finish writes outstanding data and closes the file.
func (se *sqlExporter) Finish() {
	se.mu.Lock()
	defer se.mu.Unlock()
	if err := se.writer.Flush(); err != nil {
		panic(err)
	}
	if se.f != os.Stdout {
		se.f.Close()
	}
}

func (se *sqlExporter) ID() string {
	return se.id
}

// Init opens the output file and writes the CREATE TABLE preamble.
func (se *sqlExporter) Init() {
	if se.outfile == "-" {
		se.f = os.Stdout
	} else {
		var err error
		se.f, err = os.Create(se.outfile)
		if err != nil {
			log.Fatal("Couldn't open file ", se.outfile, err)
		}
	}
	se.writer = bufio.NewWriterSize(se.f, writeBufferSize)

	idents := make([]string, len(tableColumns))
	for i, name := range tableColumns {
		idents[i] = se.ident(name)
	}
	se.fields = strings.Join(idents, ", ")

	fmt.Fprintf(se.writer, "CREATE TABLE %s (\n", se.ident(se.table))
	for i, name := range tableColumns {
		sep := ","
		if i == len(tableColumns)-1 {
			sep = ""
		}
		fmt.Fprintf(se.writer, "  %s %s%s\n", se.ident(name), se.d.types[i], sep)
	}
	fmt.Fprintln(se.writer, ");")
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "NULL"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func newSQLExporter(args []string) (arguments []string, ret util.Module, err error) {
	set := flag.NewFlagSet("sql", flag.ExitOnError)
	set.Usage = func() { sqlHelp("sql") }

	kind := set.String("kind", "mysql", "SQL dialect (mysql|postgres)")
	table := set.String("table", "flows", "Name of the table")

	set.Parse(args)
	arguments = set.Args()

	if len(arguments) < 1 {
		return nil, nil, errors.New("SQL exporter needs a filename as argument")
	}
	outfile := arguments[0]
	arguments = arguments[1:]

	var d dialect
	switch *kind {
	case "mysql":
		d = mysqlDialect()
	case "postgres", "postgresql":
		d = postgresDialect()
	default:
		return nil, nil, fmt.Errorf("unknown sql dialect %q", *kind)
	}

	ret = &sqlExporter{id: "SQL|" + outfile, outfile: outfile, table: *table, d: d}
	return
}

func sqlHelp(name string) {
	fmt.Fprintf(os.Stderr, `
The %s exporter writes completed flows to an sql file with an INSERT
statement per flow and a CREATE TABLE preamble. '-' writes to stdout.

As argument, the output file is needed.

Usage:
  export %s [-kind mysql] [-table flows] file.sql

Flags:
  -kind string
    	SQL dialect, mysql or postgres (default "mysql")
  -table string
    	Name of the table (default "flows")
`, name, name)
}

func init() {
	export.RegisterExporter("sql", "Exports flows to an sql file.", newSQLExporter, sqlHelp)
}
