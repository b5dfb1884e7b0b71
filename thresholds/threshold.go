// Package thresholds evaluates comparison rules against metric and flow
// value updates. Each threshold is an explicit per-key state machine with
// two states, ARMED and TRIGGERED. Crossing the configured level emits one
// event; the machine re-arms only after the value has stayed at or below
// the level continuously for the configured timeout, so a flapping metric
// cannot flood the event log.
package thresholds

import (
	"fmt"
	"strings"
	"time"

	"github.com/iluxa/sflow-rt/filter"
	"github.com/iluxa/sflow-rt/flows"
)

// DefaultTimeout is the re-arm dwell applied when a definition leaves
// timeout unset.
const DefaultTimeout = 60 * time.Second

// Definition is the wire form of one threshold.
type Definition struct {
	// Metric is the watched metric name or flow specification name.
	Metric string `json:"metric" yaml:"metric"`
	// Value is the trigger level.
	Value float64 `json:"value" yaml:"value"`
	// Filter restricts which observations feed the threshold.
	Filter string `json:"filter,omitempty" yaml:"filter,omitempty"`
	// ByFlow tracks state independently per flow key.
	ByFlow bool `json:"byFlow,omitempty" yaml:"byFlow,omitempty"`
	// Timeout is the re-arm dwell in seconds.
	Timeout float64 `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Spec is a compiled threshold.
type Spec struct {
	Name    string
	Def     Definition
	Metric  string
	Value   float64
	Filter  *filter.Filter
	ByFlow  bool
	Timeout time.Duration
}

// Compile validates and compiles a definition. The returned error is a
// *flows.ParseError or *flows.ValidationError.
func Compile(name string, def Definition) (*Spec, error) {
	invalid := func(format string, a ...interface{}) error {
		return &flows.ValidationError{Name: name, Err: fmt.Errorf(format, a...)}
	}
	if strings.TrimSpace(name) == "" {
		return nil, invalid("empty name")
	}
	if strings.TrimSpace(def.Metric) == "" {
		return nil, invalid("no metric")
	}
	if def.Timeout < 0 {
		return nil, invalid("timeout must not be negative")
	}
	f, err := filter.Parse(def.Filter)
	if err != nil {
		return nil, &flows.ParseError{What: "filter", Expr: def.Filter, Err: err}
	}
	s := &Spec{
		Name:    name,
		Def:     def,
		Metric:  def.Metric,
		Value:   def.Value,
		Filter:  f,
		ByFlow:  def.ByFlow,
		Timeout: time.Duration(def.Timeout * float64(time.Second)),
	}
	if s.Timeout == 0 {
		s.Timeout = DefaultTimeout
	}
	return s, nil
}
