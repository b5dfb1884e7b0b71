// Package replay implements a sample source reading line delimited JSON
// samples from a file or stdin, for offline replay and testing.
package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iluxa/sflow-rt/sample"
	"github.com/iluxa/sflow-rt/util"
)

const maxLine = 1024 * 1024

// record is one input line. Lines with a metrics object are counter
// samples, everything else is a flow sample. A missing time is replaced
// with the wall clock at read time.
type record struct {
	Agent      string             `json:"agent"`
	DataSource string             `json:"dataSource"`
	Time       int64              `json:"time"`
	Attrs      map[string]string  `json:"attrs"`
	Values     map[string]float64 `json:"values"`
	Metrics    map[string]float64 `json:"metrics"`
}

func parseLine(line []byte, now time.Time) (*sample.Sample, *sample.Counters, error) {
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, nil, err
	}
	when := now
	if rec.Time != 0 {
		when = time.UnixMilli(rec.Time)
	}
	if rec.Metrics != nil {
		return nil, &sample.Counters{
			Agent:      rec.Agent,
			DataSource: rec.DataSource,
			Time:       when,
			Metrics:    rec.Metrics,
		}, nil
	}
	return &sample.Sample{
		Agent:      rec.Agent,
		DataSource: rec.DataSource,
		Time:       when,
		Attrs:      rec.Attrs,
		Values:     rec.Values,
	}, nil, nil
}

type replaySource struct {
	id      string
	file    string
	in      io.ReadCloser
	wg      sync.WaitGroup
	stopped uint32
}

func (ps *replaySource) ID() string {
	return ps.id
}

func (ps *replaySource) Init() {
}

func (ps *replaySource) Start(ingest sample.Ingestor) error {
	if ps.file == "-" {
		ps.in = os.Stdin
	} else {
		f, err := os.Open(ps.file)
		if err != nil {
			return fmt.Errorf("replay: %s", err)
		}
		ps.in = f
	}
	ps.wg.Add(1)
	go ps.readLoop(ingest)
	return nil
}

func (ps *replaySource) Stop() {
	if ps.in == nil {
		return
	}
	atomic.StoreUint32(&ps.stopped, 1)
	ps.in.Close()
	ps.wg.Wait()
}

func (ps *replaySource) readLoop(ingest sample.Ingestor) {
	defer ps.wg.Done()
	scanner := bufio.NewScanner(ps.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	lineno := 0
	for scanner.Scan() {
		if atomic.LoadUint32(&ps.stopped) != 0 {
			return
		}
		lineno++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		s, c, err := parseLine(line, time.Now())
		if err != nil {
			log.Printf("replay: %s line %d: %s\n", ps.file, lineno, err)
			continue
		}
		if c != nil {
			ingest.IngestCounterSample(c)
		} else {
			ingest.IngestFlowSample(s)
		}
	}
	if err := scanner.Err(); err != nil && atomic.LoadUint32(&ps.stopped) == 0 {
		log.Printf("replay: %s: %s\n", ps.file, err)
	}
}

func newReplaySource(args []string) (arguments []string, ret util.Module, err error) {
	set := flag.NewFlagSet("replay", flag.ExitOnError)
	set.Usage = func() { replayHelp("replay") }

	set.Parse(args)
	if set.NArg() < 1 {
		return nil, nil, errors.New("replay needs an input file as argument ('-' for stdin)")
	}
	file := set.Args()[0]
	arguments = set.Args()[1:]

	ret = &replaySource{id: "replay|" + file, file: file}
	return
}

func replayHelp(name string) {
	fmt.Fprintf(os.Stderr, `
The %s source reads normalized samples from a file with one JSON object
per line, or from stdin when the filename is '-'. Blank lines and lines
starting with # are skipped.

A line with a "metrics" object is a counter sample, everything else is a
flow sample:

  {"agent":"10.0.0.1","attrs":{"ipsource":"10.1.1.1"},"values":{"bytes":1500,"frames":1}}
  {"agent":"10.0.0.1","dataSource":"2","metrics":{"ifinoctets":1.2e6}}

The optional "time" field is in milliseconds since the epoch; lines
without it are stamped with the wall clock.

Usage:
  source %s samples.jsonl
`, name, name)
}

func init() {
	sample.RegisterSource("replay", "Replays JSON encoded samples from a file.", newReplaySource, replayHelp)
}
