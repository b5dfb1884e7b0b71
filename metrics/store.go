// Package metrics keeps the most recent counter-derived metrics reported by
// every agent and reduces them statistically at query time. Values are
// grouped by agent and data source; an agent's value for a metric is the
// largest across its data sources, so redundant reporters never inflate a
// reduction.
package metrics

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/iluxa/sflow-rt/filter"
)

// Store holds the latest metric values keyed by agent and data source.
type Store struct {
	mu     sync.RWMutex
	agents map[string]*agentState
}

type agentState struct {
	firstSeen time.Time
	lastSeen  time.Time
	updates   uint64
	sources   map[string]*sourceState
}

type sourceState struct {
	lastSeen time.Time
	values   map[string]float64
}

// NewStore returns an empty metric store.
func NewStore() *Store {
	return &Store{agents: make(map[string]*agentState)}
}

// Update folds one counter sample into the store.
func (s *Store) Update(agent, dataSource string, when time.Time, values map[string]float64) {
	if agent == "" || len(values) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[agent]
	if !ok {
		a = &agentState{firstSeen: when, sources: make(map[string]*sourceState, 1)}
		s.agents[agent] = a
	}
	if when.After(a.lastSeen) {
		a.lastSeen = when
	}
	a.updates++
	src, ok := a.sources[dataSource]
	if !ok {
		src = &sourceState{values: make(map[string]float64, len(values))}
		a.sources[dataSource] = src
	}
	if when.After(src.lastSeen) {
		src.lastSeen = when
	}
	for name, v := range values {
		src.values[name] = v
	}
}

// Len returns the number of tracked agents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents)
}

// Value returns the agent's current value for one metric.
func (s *Store) Value(agent, metric string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[agent]
	if !ok {
		return 0, false
	}
	return agentValue(a, metric)
}

func agentValue(a *agentState, metric string) (float64, bool) {
	var best float64
	found := false
	for _, src := range a.sources {
		v, ok := src.values[metric]
		if !ok {
			continue
		}
		if !found || v > best {
			best = v
		}
		found = true
	}
	return best, found
}

// Query reduces the metric across every agent accepted by the filter. The
// filter sees the attribute "agent" plus the agent's current metric values.
// ok=false when no selected agent reports the metric.
func (s *Store) Query(f *filter.Filter, r Reducer, metric string) (float64, bool) {
	s.mu.RLock()
	var values []float64
	for addr, a := range s.agents {
		if !f.Match(agentGetter(addr, a)) {
			continue
		}
		if v, ok := agentValue(a, metric); ok {
			values = append(values, v)
		}
	}
	s.mu.RUnlock()
	return Reduce(r, values)
}

func agentGetter(addr string, a *agentState) func(string) (string, bool) {
	return func(name string) (string, bool) {
		if name == "agent" {
			return addr, true
		}
		if v, ok := agentValue(a, name); ok {
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
		return "", false
	}
}

// Dump returns every metric the agent currently reports.
func (s *Store) Dump(agent string) map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[agent]
	if !ok {
		return nil
	}
	out := make(map[string]float64)
	for _, src := range a.sources {
		for name, v := range src.values {
			if cur, ok := out[name]; !ok || v > cur {
				out[name] = v
			}
		}
	}
	return out
}

// Names returns every metric name currently reported, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, a := range s.agents {
		for _, src := range a.sources {
			for name := range src.values {
				seen[name] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AgentInfo summarizes one tracked agent.
type AgentInfo struct {
	Agent       string   `json:"agent"`
	DataSources []string `json:"dataSources"`
	Metrics     int      `json:"metrics"`
	FirstSeen   int64    `json:"firstSeen"`
	LastSeen    int64    `json:"lastSeen"`
	Updates     uint64   `json:"updates"`
}

// Agents lists tracked agents accepted by the filter, ordered by address.
func (s *Store) Agents(f *filter.Filter) []AgentInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AgentInfo, 0, len(s.agents))
	for addr, a := range s.agents {
		if !f.Match(agentGetter(addr, a)) {
			continue
		}
		names := make(map[string]struct{})
		info := AgentInfo{
			Agent:     addr,
			FirstSeen: a.firstSeen.UnixMilli(),
			LastSeen:  a.lastSeen.UnixMilli(),
			Updates:   a.updates,
		}
		for ds, src := range a.sources {
			info.DataSources = append(info.DataSources, ds)
			for name := range src.values {
				names[name] = struct{}{}
			}
		}
		sort.Strings(info.DataSources)
		info.Metrics = len(names)
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out
}

// Prune drops agents not heard from since the deadline and returns their
// addresses sorted.
func (s *Store) Prune(deadline time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dropped []string
	for addr, a := range s.agents {
		if a.lastSeen.Before(deadline) {
			delete(s.agents, addr)
			dropped = append(dropped, addr)
		}
	}
	sort.Strings(dropped)
	return dropped
}
