package flows

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletedFlowAttr(t *testing.T) {
	f := &CompletedFlow{
		Name:       "pairs",
		Agent:      "10.0.0.20",
		DataSource: "5",
		FlowKeys:   "10.1.1.1,10.2.2.2",
		EndReason:  EndIdle,
	}
	cases := []struct {
		attr string
		want string
		ok   bool
	}{
		{"name", "pairs", true},
		{"agent", "10.0.0.20", true},
		{"datasource", "5", true},
		{"dataSource", "5", true},
		{"flowkeys", "10.1.1.1,10.2.2.2", true},
		{"endReason", "idle", true},
		{"key0", "10.1.1.1", true},
		{"key1", "10.2.2.2", true},
		{"key2", "", false},
		{"keyfoo", "", false},
		{"bytes", "", false},
	}
	for _, c := range cases {
		got, ok := f.Attr(c.attr)
		assert.Equal(t, c.ok, ok, c.attr)
		assert.Equal(t, c.want, got, c.attr)
	}
}

func TestEndReasonJSON(t *testing.T) {
	b, err := json.Marshal(map[string]EndReason{
		"a": EndStart, "b": EndIdle, "c": EndEvicted, "d": EndShutdown,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"start","b":"idle","c":"evicted","d":"shutdown"}`, string(b))
}

func TestParseAggMode(t *testing.T) {
	m, err := ParseAggMode("")
	require.NoError(t, err)
	assert.Equal(t, AggMax, m)

	m, err = ParseAggMode("sum")
	require.NoError(t, err)
	assert.Equal(t, AggSum, m)

	m, err = ParseAggMode("max")
	require.NoError(t, err)
	assert.Equal(t, AggMax, m)

	_, err = ParseAggMode("median")
	assert.Error(t, err)
}
