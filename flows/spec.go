// Package flows implements the heart of the analytics engine: compiled flow
// specifications (key-function pipeline plus value expression), the active
// flow cache with per-agent deduplication and top-N maintenance, and the
// completed-flow log.
//
// Specifications are compiled once at registration; per-sample evaluation is
// a pure function over the compiled stages. Compilation failures are
// ParseErrors or ValidationErrors and nothing is partially installed.
package flows

import (
	"fmt"
	"strings"
	"time"

	"github.com/iluxa/sflow-rt/filter"
)

// Defaults applied by Compile when a definition leaves them zero.
const (
	DefaultN             = 100
	DefaultSmoothing     = 2 * time.Second
	DefaultActiveTimeout = 60 * time.Second
)

// Definition is the user-supplied form of a flow specification.
type Definition struct {
	// Keys is a comma-separated list of key-function expressions.
	Keys string `json:"keys" yaml:"keys"`
	// Value is the value expression.
	Value string `json:"value" yaml:"value"`
	// Filter restricts the samples feeding this specification.
	Filter string `json:"filter,omitempty" yaml:"filter,omitempty"`
	// N bounds the active flow table.
	N int `json:"n,omitempty" yaml:"n,omitempty"`
	// T is the smoothing window in seconds.
	T float64 `json:"t,omitempty" yaml:"t,omitempty"`
	// ActiveTimeout is the per-agent slot expiry in seconds.
	ActiveTimeout float64 `json:"activeTimeout,omitempty" yaml:"activeTimeout,omitempty"`
	// Log enables completed-flow logging.
	Log bool `json:"log,omitempty" yaml:"log,omitempty"`
	// FlowStart logs flows at creation instead of completion.
	FlowStart bool `json:"flowStart,omitempty" yaml:"flowStart,omitempty"`
	// IPFIXCollectors lists host:port collector addresses; restricts keys
	// and value to the IPFIX-exportable set.
	IPFIXCollectors []string `json:"ipfixCollectors,omitempty" yaml:"ipfixCollectors,omitempty"`
}

// Spec is a compiled flow specification. Immutable after Compile; the engine
// replaces whole instances on update.
type Spec struct {
	Name            string
	Def             Definition
	Keys            []KeyFunc
	Value           ValueExpr
	Filter          *filter.Filter
	N               int
	Smoothing       time.Duration
	ActiveTimeout   time.Duration
	Log             bool
	FlowStart       bool
	IPFIXCollectors []string
}

// KeyAttrs returns the source attribute of every key stage in order.
func (s *Spec) KeyAttrs() []string {
	attrs := make([]string, len(s.Keys))
	for i := range s.Keys {
		attrs[i] = s.Keys[i].Attr()
	}
	return attrs
}

// Compile validates and compiles a definition. The returned error is a
// *ParseError or *ValidationError.
func Compile(name string, def Definition) (*Spec, error) {
	invalid := func(format string, a ...interface{}) error {
		return &ValidationError{Name: name, Err: fmt.Errorf(format, a...)}
	}
	if strings.TrimSpace(name) == "" {
		return nil, invalid("empty name")
	}
	if strings.TrimSpace(def.Keys) == "" {
		return nil, invalid("no keys")
	}
	if strings.TrimSpace(def.Value) == "" {
		return nil, invalid("no value")
	}
	if def.N < 0 || def.T < 0 || def.ActiveTimeout < 0 {
		return nil, invalid("n, t, and activeTimeout must not be negative")
	}

	s := &Spec{
		Name:            name,
		Def:             def,
		N:               def.N,
		Smoothing:       time.Duration(def.T * float64(time.Second)),
		ActiveTimeout:   time.Duration(def.ActiveTimeout * float64(time.Second)),
		Log:             def.Log,
		FlowStart:       def.FlowStart,
		IPFIXCollectors: def.IPFIXCollectors,
	}
	if s.N == 0 {
		s.N = DefaultN
	}
	if s.Smoothing == 0 {
		s.Smoothing = DefaultSmoothing
	}
	if s.ActiveTimeout == 0 {
		s.ActiveTimeout = DefaultActiveTimeout
	}

	for _, expr := range strings.Split(def.Keys, ",") {
		k, err := ParseKeyFunc(expr)
		if err != nil {
			return nil, err
		}
		s.Keys = append(s.Keys, k)
	}

	v, err := ParseValueExpr(def.Value)
	if err != nil {
		return nil, err
	}
	s.Value = v

	f, err := filter.Parse(def.Filter)
	if err != nil {
		return nil, &ParseError{What: "filter", Expr: def.Filter, Err: err}
	}
	s.Filter = f

	if len(s.IPFIXCollectors) > 0 {
		if err := validateIPFIX(s); err != nil {
			return nil, &ValidationError{Name: name, Err: err}
		}
	}
	return s, nil
}
