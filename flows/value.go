package flows

import (
	"fmt"
	"strings"
	"time"
)

// Modifier selects how successive raw samples combine into the flow value.
type Modifier int

const (
	// ModNone takes the raw numeric value of the latest sample.
	ModNone Modifier = iota
	// ModRate is (current-previous)/elapsed seconds per key and agent.
	ModRate
	// ModAvg is the running mean over the smoothing window.
	ModAvg
	// ModCount is the number of samples within the smoothing window.
	ModCount
)

func (m Modifier) String() string {
	switch m {
	case ModRate:
		return "rate"
	case ModAvg:
		return "avg"
	case ModCount:
		return "count"
	}
	return ""
}

// ValueExpr is a compiled value expression.
type ValueExpr struct {
	expr string
	Attr string
	Mod  Modifier
}

// String returns the expression the value was compiled from.
func (v ValueExpr) String() string { return v.expr }

// ParseValueExpr compiles "<modifier>:<attribute>" with the modifier
// optional.
func ParseValueExpr(expr string) (ValueExpr, error) {
	expr = strings.TrimSpace(expr)
	v := ValueExpr{expr: expr}
	bad := func(format string, a ...interface{}) error {
		return &ParseError{What: "value", Expr: expr, Err: fmt.Errorf(format, a...)}
	}
	if expr == "" {
		return v, bad("empty value expression")
	}
	parts := strings.Split(expr, ":")
	switch len(parts) {
	case 1:
		v.Attr = parts[0]
	case 2:
		switch parts[0] {
		case "rate":
			v.Mod = ModRate
		case "avg":
			v.Mod = ModAvg
		case "count":
			v.Mod = ModCount
		default:
			return v, bad("unknown value modifier %q", parts[0])
		}
		v.Attr = parts[1]
	default:
		return v, bad("too many tokens")
	}
	if v.Attr == "" {
		return v, bad("empty attribute")
	}
	return v, nil
}

// valueState is the per-slot state behind the stateful modifiers.
type valueState struct {
	prevRaw  float64
	prevTime time.Time
	hasPrev  bool
	window   []obs
}

type obs struct {
	t time.Time
	v float64
}

// update applies the expression to a new raw observation and returns the
// slot's new value. prev is the slot's current value, returned unchanged
// when elapsed time makes a rate undefined.
func (v ValueExpr) update(st *valueState, prev, raw float64, when time.Time, window time.Duration) float64 {
	switch v.Mod {
	case ModRate:
		if !st.hasPrev {
			st.prevRaw, st.prevTime, st.hasPrev = raw, when, true
			return 0
		}
		dt := when.Sub(st.prevTime).Seconds()
		if dt <= 0 {
			return prev
		}
		rate := (raw - st.prevRaw) / dt
		st.prevRaw, st.prevTime = raw, when
		return rate
	case ModAvg:
		st.push(raw, when, window)
		var sum float64
		for _, o := range st.window {
			sum += o.v
		}
		return sum / float64(len(st.window))
	case ModCount:
		st.push(raw, when, window)
		return float64(len(st.window))
	}
	return raw
}

// push appends an observation and prunes everything older than the window.
func (st *valueState) push(raw float64, when time.Time, window time.Duration) {
	st.window = append(st.window, obs{t: when, v: raw})
	if window <= 0 {
		window = DefaultSmoothing
	}
	cutoff := when.Add(-window)
	keep := 0
	for ; keep < len(st.window); keep++ {
		if st.window[keep].t.After(cutoff) {
			break
		}
	}
	if keep > 0 {
		st.window = append(st.window[:0], st.window[keep:]...)
	}
}
