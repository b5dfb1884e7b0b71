// Package sample defines the normalized telemetry records produced by
// sources and consumed by the engine: flow samples carrying string
// attributes and numeric fields, and counter samples carrying gauge metrics.
package sample

import "time"

// Sample is one normalized flow sample from an agent.
type Sample struct {
	// Agent identifies the reporting agent (usually its IP address).
	Agent string
	// DataSource identifies the sampling instance within the agent
	// (e.g. the interface index).
	DataSource string
	// Time is the observation time.
	Time time.Time
	// Attrs holds the sample's string attributes (ipsource, uripath, ...).
	Attrs map[string]string
	// Values holds the sample's numeric fields (bytes, frames, ...),
	// already scaled by the sampling rate.
	Values map[string]float64
}

// Counters is one normalized counter sample from an agent. Metrics are
// gauges; sources convert monotonic counters to rates before ingestion.
type Counters struct {
	Agent      string
	DataSource string
	Time       time.Time
	Metrics    map[string]float64
}

// Ingestor receives normalized samples. Implementations must be safe for
// concurrent use: sources deliver from their own goroutines.
type Ingestor interface {
	IngestFlowSample(*Sample)
	IngestCounterSample(*Counters)
}
