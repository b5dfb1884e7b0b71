package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/iluxa/sflow-rt/engine"
	"github.com/iluxa/sflow-rt/export"
	"github.com/iluxa/sflow-rt/logger"
	"github.com/iluxa/sflow-rt/sample"
)

func runUsage(cmd string, set *flag.FlagSet) {
	cmdString(fmt.Sprintf("%s [args] [source type [sourceargs]] [export type [exportargs]] [...]", cmd))
	fmt.Fprintf(os.Stderr, `
Ingests telemetry samples from the configured sources, maintains the flow
specifications and thresholds loaded with -config, and hands completed
flows and threshold events to the configured exporters.

Sources and exporters are given as "<verb> <which> [options]" sequences.
<verb> is source or export, <which> the module name. Without a source
statement an sflow source with default options is started. The same
exporter can be specified multiple times; statements resolving to the
same instance share it.

A list of supported sources and exporters can be seen with the sources
and exporters commands.

The process runs until interrupted. The first interrupt completes all
active flows (end reason shutdown) and flushes the exporters, a second
one aborts.

Examples:
  Receive sFlow and maintain the specifications from flows.json
    %s %s -config flows.json

  Replay recorded samples into a csv file
    %s %s -config flows.json source replay samples.jsonl export csv out.csv

Args:
`, os.Args[0], cmd, os.Args[0], cmd)
	set.PrintDefaults()
}

func init() {
	addCommand("run", "Run the analytics engine", runCommand)
}

// configList collects repeated -config flags.
type configList []string

func (c *configList) String() string { return strings.Join(*c, ", ") }

func (c *configList) Set(value string) error {
	*c = append(*c, value)
	return nil
}

func parseModules(args []string) (sources *sample.Sources, exporters *export.Exporters) {
	sources = &sample.Sources{}
	exporters = &export.Exporters{}
	var err error
	for len(args) >= 2 {
		typ := args[0]
		name := args[1]
		switch typ {
		case "source":
			var src sample.Source
			args, src, err = sample.MakeSource(name, args[2:])
			if err != nil {
				log.Fatalf("Error creating source '%s': %s\n", name, err)
			}
			sources.Append(src)
		case "export":
			var e export.Exporter
			args, e, err = export.MakeExporter(name, args[2:])
			if err != nil {
				log.Fatalf("Error creating exporter '%s': %s\n", name, err)
			}
			exporters.Append(e)
		default:
			log.Fatalf("Verb (source, export) missing, instead found '%s'\n", strings.Join(args, " "))
		}
	}
	if len(args) > 0 {
		log.Fatalf("Argument at end of input to '%s' is missing!\n", args[0])
	}
	return
}

func runCommand(cmd string, args []string) {
	set := flag.NewFlagSet("run", flag.ExitOnError)
	set.Usage = func() { runUsage(cmd, set) }

	var configs configList
	set.Var(&configs, "config", "Definition `file` (JSON or YAML) with flows, thresholds, and lookup tables; can be given multiple times")
	flowLog := set.Int("flowlog", engine.DefaultFlowLogSize, "Completed flow log size")
	eventLog := set.Int("eventlog", engine.DefaultEventLogSize, "Threshold event log size")
	maintenance := set.Float64("maintenance", 1, "Cache maintenance interval in seconds")
	agentTimeout := set.Float64("agenttimeout", 300, "Forget agents silent for this many seconds")
	stats := set.Float64("stats", 0, "Write statistics to stderr every n seconds, 0 disables")
	loglevel := set.String("loglevel", "info", "Log level (debug|info|warning|error)")

	set.Parse(args)

	if err := logger.SetLevelByName(*loglevel); err != nil {
		log.Fatalln(err)
	}

	sources, exporters := parseModules(set.Args())

	eng := engine.New(engine.Options{
		FlowLogSize:  *flowLog,
		EventLogSize: *eventLog,
		Maintenance:  time.Duration(*maintenance * float64(time.Second)),
		AgentTimeout: time.Duration(*agentTimeout * float64(time.Second)),
	})

	for _, path := range configs {
		if err := applyConfig(eng, path); err != nil {
			log.Fatalf("Couldn't load %s: %s\n", path, err)
		}
	}

	if sources.Empty() {
		_, src, err := sample.MakeSource("sflow", nil)
		if err != nil {
			log.Fatalf("Error creating source 'sflow': %s\n", err)
		}
		sources.Append(src)
	}

	for _, e := range exporters.List() {
		e.Init()
		eng.AddExporter(e)
	}
	sources.Init()

	ctx, stop := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		eng.Run(ctx)
	}()

	if err := sources.Start(eng); err != nil {
		stop()
		log.Fatalln(err)
	}

	if *stats > 0 {
		go func() {
			t := time.NewTicker(time.Duration(*stats * float64(time.Second)))
			defer t.Stop()
			for range t.C {
				eng.WriteStats(os.Stderr)
			}
		}()
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	<-interrupt
	log.Println("Stopping... (interrupt again to abort)")
	go func() {
		<-interrupt
		os.Exit(1)
	}()

	sources.Stop()
	stop()
	wg.Wait()
	eng.Shutdown()

	if *stats > 0 {
		eng.WriteStats(os.Stderr)
	}
}
