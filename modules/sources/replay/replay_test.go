package replay

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iluxa/sflow-rt/sample"
)

type recorder struct {
	mu       sync.Mutex
	samples  []*sample.Sample
	counters []*sample.Counters
}

func (r *recorder) IngestFlowSample(s *sample.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
}

func (r *recorder) IngestCounterSample(c *sample.Counters) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = append(r.counters, c)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples), len(r.counters)
}

func TestParseLineFlow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	line := []byte(`{"agent":"10.0.0.1","attrs":{"ipsource":"10.1.1.1","ipdestination":"10.2.2.2"},"values":{"bytes":1500,"frames":1}}`)

	s, c, err := parseLine(line, now)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Nil(t, c)
	assert.Equal(t, "10.0.0.1", s.Agent)
	assert.Equal(t, now, s.Time)
	assert.Equal(t, "10.1.1.1", s.Attrs["ipsource"])
	assert.Equal(t, 1500.0, s.Values["bytes"])
}

func TestParseLineCounters(t *testing.T) {
	now := time.Unix(1700000000, 0)
	line := []byte(`{"agent":"10.0.0.1","dataSource":"2","time":1700000400000,"metrics":{"ifinoctets":100}}`)

	s, c, err := parseLine(line, now)
	require.NoError(t, err)
	assert.Nil(t, s)
	require.NotNil(t, c)
	assert.Equal(t, "2", c.DataSource)
	assert.Equal(t, int64(1700000400000), c.Time.UnixMilli())
	assert.Equal(t, 100.0, c.Metrics["ifinoctets"])
}

func TestParseLineBadJSON(t *testing.T) {
	_, _, err := parseLine([]byte(`{"agent":`), time.Now())
	assert.Error(t, err)
}

func TestNewReplaySource(t *testing.T) {
	args, mod, err := newReplaySource([]string{"samples.jsonl", "export", "csv"})
	require.NoError(t, err)
	assert.Equal(t, []string{"export", "csv"}, args)
	assert.Equal(t, "replay|samples.jsonl", mod.ID())

	_, _, err = newReplaySource(nil)
	assert.Error(t, err)
}

func TestReplayReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.jsonl")
	data := `# comment
{"agent":"10.0.0.1","dataSource":"5","time":1700000000000,"attrs":{"ipsource":"10.1.1.1"},"values":{"bytes":1500,"frames":1}}

not json
{"agent":"10.0.0.2","dataSource":"2","metrics":{"ifinoctets":1200000}}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	args, mod, err := newReplaySource([]string{path})
	require.NoError(t, err)
	assert.Empty(t, args)

	src := mod.(sample.Source)
	src.Init()

	rec := &recorder{}
	require.NoError(t, src.Start(rec))
	defer src.Stop()

	// the malformed line is skipped, the comment and blank line too
	require.Eventually(t, func() bool {
		s, c := rec.counts()
		return s == 1 && c == 1
	}, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	s := rec.samples[0]
	assert.Equal(t, "10.0.0.1", s.Agent)
	assert.Equal(t, "5", s.DataSource)
	assert.Equal(t, int64(1700000000000), s.Time.UnixMilli())
	assert.Equal(t, map[string]string{"ipsource": "10.1.1.1"}, s.Attrs)
	assert.Equal(t, map[string]float64{"bytes": 1500, "frames": 1}, s.Values)

	c := rec.counters[0]
	assert.Equal(t, "10.0.0.2", c.Agent)
	assert.Equal(t, map[string]float64{"ifinoctets": 1.2e6}, c.Metrics)
}
