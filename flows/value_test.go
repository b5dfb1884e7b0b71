package flows

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValueExpr(t *testing.T) {
	cases := []struct {
		expr string
		attr string
		mod  Modifier
		bad  bool
	}{
		{"bytes", "bytes", ModNone, false},
		{"rate:bytes", "bytes", ModRate, false},
		{"avg:load_one", "load_one", ModAvg, false},
		{"count:frames", "frames", ModCount, false},
		{"", "", ModNone, true},
		{"median:bytes", "", ModNone, true},
		{"rate:bytes:extra", "", ModNone, true},
		{"rate:", "", ModNone, true},
	}
	for _, c := range cases {
		v, err := ParseValueExpr(c.expr)
		if c.bad {
			require.Error(t, err, c.expr)
			var pe *ParseError
			assert.ErrorAs(t, err, &pe, c.expr)
			continue
		}
		require.NoError(t, err, c.expr)
		assert.Equal(t, c.attr, v.Attr, c.expr)
		assert.Equal(t, c.mod, v.Mod, c.expr)
	}
}

func TestPlainValue(t *testing.T) {
	v, err := ParseValueExpr("bytes")
	require.NoError(t, err)
	var st valueState
	assert.Equal(t, 500.0, v.update(&st, 100, 500, time.Unix(0, 0), DefaultSmoothing))
}

func TestRateModifier(t *testing.T) {
	v, err := ParseValueExpr("rate:bytes")
	require.NoError(t, err)
	t0 := time.Unix(1700000000, 0)
	var st valueState

	// the first observation has no interval to divide by
	got := v.update(&st, 0, 1000, t0, DefaultSmoothing)
	assert.Equal(t, 0.0, got)

	got = v.update(&st, got, 3000, t0.Add(2*time.Second), DefaultSmoothing)
	assert.InDelta(t, 1000, got, 1e-9)

	// a repeated timestamp keeps the previous rate
	got = v.update(&st, got, 5000, t0.Add(2*time.Second), DefaultSmoothing)
	assert.InDelta(t, 1000, got, 1e-9)

	got = v.update(&st, got, 1000, t0.Add(4*time.Second), DefaultSmoothing)
	assert.InDelta(t, -1000, got, 1e-9)
}

func TestAvgModifier(t *testing.T) {
	v, err := ParseValueExpr("avg:load_one")
	require.NoError(t, err)
	t0 := time.Unix(1700000000, 0)
	window := 10 * time.Second
	var st valueState

	assert.InDelta(t, 10, v.update(&st, 0, 10, t0, window), 1e-9)
	assert.InDelta(t, 15, v.update(&st, 0, 20, t0.Add(time.Second), window), 1e-9)
	assert.InDelta(t, 20, v.update(&st, 0, 30, t0.Add(2*time.Second), window), 1e-9)

	// observations older than the window fall out
	assert.InDelta(t, 40, v.update(&st, 0, 40, t0.Add(15*time.Second), window), 1e-9)
}

func TestCountModifier(t *testing.T) {
	v, err := ParseValueExpr("count:frames")
	require.NoError(t, err)
	t0 := time.Unix(1700000000, 0)
	window := 5 * time.Second
	var st valueState

	assert.Equal(t, 1.0, v.update(&st, 0, 1, t0, window))
	assert.Equal(t, 2.0, v.update(&st, 0, 1, t0.Add(time.Second), window))
	assert.Equal(t, 3.0, v.update(&st, 0, 1, t0.Add(2*time.Second), window))
	assert.Equal(t, 2.0, v.update(&st, 0, 1, t0.Add(6*time.Second), window))
}
