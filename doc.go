/*
This contains a real-time flow and threshold analytics engine for network
telemetry.

Building

"go build" or "go install" produce the sflow-rt binary. The version string
can be set with -ldflags "-X main.version=...".

Overview

The engine turns streams of telemetry samples into continuously maintained
top-N flow tables, a bounded completed-flow log, and threshold events with
hysteresis.

Samples are read from sources and processed in the following pipeline:

	source -> (ingest) -> filter -> [keys] -> [value] -> (cache) -> (log) -> export
	                                                        \-> thresholds -> (events) -> export

() parts in the pipeline are fixed, [] parts are configured via the flow
specification, and sources and exporters are modules configured from the
command line.

A source delivers normalized flow samples (string attributes plus numeric
fields scaled by the sampling rate) and counter samples (gauge metrics) to
the engine from its own goroutines. For examples look at modules/sources.

Each published flow specification filters the incoming samples, builds a
composite key with its key-function stages (lookup based functions consult
the group/ASN/OUI/host/country tables), applies the value expression, and
maintains one record per key with per-agent slots. Periodic maintenance
expires idle slots, evicts the smallest records above the configured size,
and appends completions to the flow log. Thresholds watch metric names or
flow specification names and emit an event on crossing; a triggered
threshold re-arms only after the value has stayed at or below the level
for the configured timeout.

Completed flows and threshold events are handed to the configured
exporters. For examples look at modules/exporters.

Specifications, thresholds, and lookup tables are loaded from JSON or YAML
documents given with -config; replacing a specification atomically discards
its accumulated state.

Example usage

The general syntax on the command line is "sflow-rt run [args] <commands>"
where <commands> is a list of "<verb> <which> [options]" sequences. <verb>
is source or export, and <which> is the actual module. The options can be
queried from the help of the different modules (e.g. sflow-rt <verb>s
<which>; e.g. sflow-rt exporters ipfix).

Example:

	sflow-rt run -config flows.json source sflow -listen :6343 export csv flows.csv

Contents

The following list describes all the different things contained in the
subdirectories.

 * filter: query and filter expression evaluation
 * lookup: group, ASN, OUI, host, and country tables
 * sample: normalized sample types and the source module plumbing
 * flows: flow specifications, the active flow cache, and the flow log
 * eventlog: the bounded sequence log behind the flow and event logs
 * metrics: the counter metric store and statistical reducers
 * thresholds: threshold state machines and the event log
 * engine: registry, ingestion, maintenance, and queries
 * export: the exporter module plumbing
 * modules: implementation of sources and exporters
 * util: the module registry
 * logger: structured logging
*/
package main
