package flows

import (
	"fmt"
	"strconv"
	"strings"
)

// EndReason tells why a completed flow left (or, for start records, entered)
// the active table.
type EndReason int

const (
	// EndStart marks a creation-time record of a flowStart specification.
	EndStart EndReason = iota
	// EndIdle means every agent slot passed the activeTimeout.
	EndIdle
	// EndEvicted means the record was dropped to keep the table within n.
	EndEvicted
	// EndShutdown means the engine flushed the cache on shutdown.
	EndShutdown
)

func (r EndReason) String() string {
	switch r {
	case EndStart:
		return "start"
	case EndIdle:
		return "idle"
	case EndEvicted:
		return "evicted"
	case EndShutdown:
		return "shutdown"
	}
	return "unknown"
}

// MarshalJSON renders the reason as its string form.
func (r EndReason) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// CompletedFlow is the immutable snapshot appended to the flow log when a
// flow leaves the active table (or enters it, for flowStart specifications).
type CompletedFlow struct {
	FlowID     uint64    `json:"flowID"`
	Name       string    `json:"name"`
	Agent      string    `json:"agent"`
	DataSource string    `json:"dataSource,omitempty"`
	FlowKeys   string    `json:"flowKeys"`
	Value      float64   `json:"value"`
	Start      int64     `json:"start"`
	End        int64     `json:"end"`
	EndReason  EndReason `json:"endReason"`
}

// SeqID and SetSeqID implement eventlog.Entry.
func (f *CompletedFlow) SeqID() uint64      { return f.FlowID }
func (f *CompletedFlow) SetSeqID(id uint64) { f.FlowID = id }

// Attr exposes the record's fields to retrieval filters. Key tokens are
// matchable as key0, key1, ...
func (f *CompletedFlow) Attr(name string) (string, bool) {
	switch name {
	case "name":
		return f.Name, true
	case "agent":
		return f.Agent, true
	case "datasource", "dataSource":
		return f.DataSource, f.DataSource != ""
	case "flowkeys", "flowKeys":
		return f.FlowKeys, true
	case "endreason", "endReason":
		return f.EndReason.String(), true
	}
	if strings.HasPrefix(name, "key") {
		if i, err := strconv.Atoi(name[3:]); err == nil {
			keys := strings.Split(f.FlowKeys, ",")
			if i >= 0 && i < len(keys) {
				return keys[i], true
			}
		}
	}
	return "", false
}

// AggMode selects how per-agent slot values combine into one flow value.
type AggMode int

const (
	// AggMax takes the largest slot value (default).
	AggMax AggMode = iota
	// AggSum totals all slot values.
	AggSum
)

// ParseAggMode parses "max" or "sum"; empty means the default max.
func ParseAggMode(s string) (AggMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "max":
		return AggMax, nil
	case "sum":
		return AggSum, nil
	}
	return AggMax, fmt.Errorf("unknown aggMode %q", s)
}

func (m AggMode) String() string {
	if m == AggSum {
		return "sum"
	}
	return "max"
}

// FlowView is one row of an active-flow listing.
type FlowView struct {
	Key    string   `json:"key"`
	Value  float64  `json:"value"`
	Agents []string `json:"agents"`
}
