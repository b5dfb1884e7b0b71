package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Reducer is a statistical reduction applied across the agents selected by
// a metric query.
type Reducer int

const (
	ReduceMax Reducer = iota
	ReduceMin
	ReduceSum
	ReduceAvg
	ReduceVar
	ReduceSdev
	ReduceMed
	ReduceQ1
	ReduceQ2
	ReduceQ3
	ReduceIQR
	ReduceAny
)

var reducerNames = []string{"max", "min", "sum", "avg", "var", "sdev", "med", "q1", "q2", "q3", "iqr", "any"}

var reducersByName = func() map[string]Reducer {
	m := make(map[string]Reducer, len(reducerNames))
	for i, name := range reducerNames {
		m[name] = Reducer(i)
	}
	return m
}()

func (r Reducer) String() string {
	if int(r) < len(reducerNames) {
		return reducerNames[r]
	}
	return "max"
}

// ParseMetric splits an optional reducer prefix from a metric name, as in
// "sum:ifinoctets". A bare name selects max.
func ParseMetric(expr string) (Reducer, string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return ReduceMax, "", fmt.Errorf("empty metric")
	}
	i := strings.IndexByte(expr, ':')
	if i < 0 {
		return ReduceMax, expr, nil
	}
	r, ok := reducersByName[expr[:i]]
	if !ok {
		return ReduceMax, "", fmt.Errorf("unknown reducer %q", expr[:i])
	}
	name := expr[i+1:]
	if name == "" {
		return ReduceMax, "", fmt.Errorf("empty metric")
	}
	return r, name, nil
}

// Reduce applies r to a sample set. ok=false when the set is empty.
func Reduce(r Reducer, values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	switch r {
	case ReduceMax:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m, true
	case ReduceMin:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m, true
	case ReduceSum:
		return sum(values), true
	case ReduceAvg:
		return sum(values) / float64(len(values)), true
	case ReduceVar:
		return variance(values), true
	case ReduceSdev:
		return math.Sqrt(variance(values)), true
	case ReduceMed, ReduceQ2:
		return quantile(values, 0.5), true
	case ReduceQ1:
		return quantile(values, 0.25), true
	case ReduceQ3:
		return quantile(values, 0.75), true
	case ReduceIQR:
		return quantile(values, 0.75) - quantile(values, 0.25), true
	case ReduceAny:
		return values[0], true
	}
	return 0, false
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// variance is the sample variance. A single observation has variance 0.
func variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := sum(values) / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return sq / float64(len(values)-1)
}

// quantile interpolates linearly between the closest ranks.
func quantile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	h := q * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-math.Floor(h))*(sorted[hi]-sorted[lo])
}
