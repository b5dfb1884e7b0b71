package flows

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iluxa/sflow-rt/lookup"
	"github.com/iluxa/sflow-rt/sample"
)

// Cache is the active-flow table of one compiled specification. Each cache
// locks independently, so updates to unrelated specifications never contend.
// Ingest takes the write lock, Top a read lock; maintenance scans therefore
// never observe a torn update.
type Cache struct {
	spec    *Spec
	mu      sync.RWMutex
	records map[string]*record
}

// record is one active flow. All fields are protected by the cache lock.
type record struct {
	key       string
	first     time.Time
	last      time.Time
	lastAgent string
	lastDS    string
	slots     map[string]*slot
}

// slot is one reporting agent's contribution to a record.
type slot struct {
	value float64
	last  time.Time
	ds    string
	state valueState
}

// combined folds the slot values per agg.
func (r *record) combined(agg AggMode) float64 {
	var v float64
	first := true
	for _, sl := range r.slots {
		if agg == AggSum {
			v += sl.value
			continue
		}
		if first || sl.value > v {
			v = sl.value
		}
		first = false
	}
	return v
}

// Update describes the effect of one sample on the cache. Updates feed the
// threshold evaluators and flow-start logging.
type Update struct {
	Key        string
	Agent      string
	DataSource string
	Value      float64
	Created    bool
	When       time.Time
}

// NewCache returns an empty cache for spec.
func NewCache(spec *Spec) *Cache {
	return &Cache{spec: spec, records: make(map[string]*record)}
}

// Spec returns the compiled specification this cache serves.
func (c *Cache) Spec() *Spec { return c.spec }

// Len returns the number of active records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Ingest runs a sample through the spec's filter, key pipeline, and value
// expression and updates the matching record's per-agent slot. ok=false
// means the sample did not select this specification.
func (c *Cache) Ingest(s *sample.Sample, tab *lookup.Tables) (Update, bool) {
	if s.Agent == "" {
		return Update{}, false
	}
	get := SampleGetter(s, tab)
	if !c.spec.Filter.Match(get) {
		return Update{}, false
	}
	tokens := make([]string, len(c.spec.Keys))
	for i := range c.spec.Keys {
		v, ok := c.spec.Keys[i].Extract(get, tab)
		if !ok || v == "" {
			return Update{}, false
		}
		tokens[i] = v
	}
	raw, ok := s.Values[c.spec.Value.Attr]
	if !ok {
		// replayed samples may carry numeric fields as attributes
		str, sok := s.Attrs[c.spec.Value.Attr]
		if !sok {
			return Update{}, false
		}
		raw, ok = parseNumber(str)
		if !ok {
			return Update{}, false
		}
	}
	key := strings.Join(tokens, ",")
	when := s.Time

	c.mu.Lock()
	rec, exists := c.records[key]
	if !exists {
		rec = &record{key: key, first: when, slots: make(map[string]*slot, 1)}
		c.records[key] = rec
	}
	sl, ok := rec.slots[s.Agent]
	if !ok {
		sl = &slot{}
		rec.slots[s.Agent] = sl
	}
	sl.value = c.spec.Value.update(&sl.state, sl.value, raw, when, c.spec.Smoothing)
	sl.last = when
	sl.ds = s.DataSource
	if when.After(rec.last) {
		rec.last = when
		rec.lastAgent = s.Agent
		rec.lastDS = s.DataSource
	}
	value := sl.value
	c.mu.Unlock()

	return Update{
		Key:        key,
		Agent:      s.Agent,
		DataSource: s.DataSource,
		Value:      value,
		Created:    !exists,
		When:       when,
	}, true
}

// StartRecord builds the creation-time log record of a flowStart
// specification.
func (c *Cache) StartRecord(upd Update) *CompletedFlow {
	ms := upd.When.UnixMilli()
	return &CompletedFlow{
		Name:       c.spec.Name,
		Agent:      upd.Agent,
		DataSource: upd.DataSource,
		FlowKeys:   upd.Key,
		Value:      upd.Value,
		Start:      ms,
		End:        ms,
		EndReason:  EndStart,
	}
}

// Maintain expires agent slots idle past the activeTimeout, completes
// records with no remaining slots, and evicts the smallest records until at
// most n remain. It returns the completed records for logging and export;
// after it returns the table never holds more than n records.
func (c *Cache) Maintain(now time.Time) []*CompletedFlow {
	var done []*CompletedFlow

	c.mu.Lock()
	for key, rec := range c.records {
		final := rec.combined(AggMax)
		for agent, sl := range rec.slots {
			if now.Sub(sl.last) > c.spec.ActiveTimeout {
				delete(rec.slots, agent)
			}
		}
		if len(rec.slots) == 0 {
			delete(c.records, key)
			done = append(done, c.completed(rec, final, EndIdle))
		}
	}
	if excess := len(c.records) - c.spec.N; excess > 0 {
		type candidate struct {
			rec *record
			v   float64
		}
		all := make([]candidate, 0, len(c.records))
		for _, rec := range c.records {
			all = append(all, candidate{rec, rec.combined(AggMax)})
		}
		sort.Slice(all, func(i, j int) bool {
			if all[i].v != all[j].v {
				return all[i].v < all[j].v
			}
			return all[i].rec.last.Before(all[j].rec.last)
		})
		for i := 0; i < excess; i++ {
			delete(c.records, all[i].rec.key)
			done = append(done, c.completed(all[i].rec, all[i].v, EndEvicted))
		}
	}
	c.mu.Unlock()

	return done
}

// Flush completes every record (engine shutdown).
func (c *Cache) Flush(now time.Time) []*CompletedFlow {
	var done []*CompletedFlow
	c.mu.Lock()
	for key, rec := range c.records {
		delete(c.records, key)
		done = append(done, c.completed(rec, rec.combined(AggMax), EndShutdown))
	}
	c.mu.Unlock()
	return done
}

func (c *Cache) completed(rec *record, value float64, reason EndReason) *CompletedFlow {
	return &CompletedFlow{
		Name:       c.spec.Name,
		Agent:      rec.lastAgent,
		DataSource: rec.lastDS,
		FlowKeys:   rec.key,
		Value:      value,
		Start:      rec.first.UnixMilli(),
		End:        rec.last.UnixMilli(),
		EndReason:  reason,
	}
}

// Top returns the highest-valued active flows with values combined per agg,
// filtered by minValue, ordered by value descending with the most recently
// updated first on ties.
func (c *Cache) Top(maxFlows int, minValue float64, agg AggMode) []FlowView {
	if maxFlows <= 0 {
		maxFlows = DefaultN
	}
	type row struct {
		view FlowView
		last time.Time
	}

	c.mu.RLock()
	rows := make([]row, 0, len(c.records))
	for _, rec := range c.records {
		v := rec.combined(agg)
		if v < minValue {
			continue
		}
		agents := make([]string, 0, len(rec.slots))
		for agent := range rec.slots {
			agents = append(agents, agent)
		}
		sort.Strings(agents)
		rows = append(rows, row{
			view: FlowView{Key: rec.key, Value: v, Agents: agents},
			last: rec.last,
		})
	}
	c.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].view.Value != rows[j].view.Value {
			return rows[i].view.Value > rows[j].view.Value
		}
		return rows[i].last.After(rows[j].last)
	})
	if len(rows) > maxFlows {
		rows = rows[:maxFlows]
	}
	out := make([]FlowView, len(rows))
	for i := range rows {
		out[i] = rows[i].view
	}
	return out
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}
