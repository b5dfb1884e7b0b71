package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"empty", "", false},
		{"single", "agent=10.0.0.1", false},
		{"alternatives", "agent=10.0.0.1|10.0.0.2", false},
		{"conjunction", "agent=10.*&ipprotocol=6", false},
		{"missing equals", "agent", true},
		{"empty attribute", "=10.0.0.1", true},
		{"empty value", "agent=", true},
		{"empty alternative", "agent=10.0.0.1|", true},
		{"empty term", "agent=10.0.0.1&", true},
		{"unterminated class", "agent=[10", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f, err := Parse(c.expr)
			if c.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if c.expr == "" {
				assert.Nil(t, f)
			} else {
				assert.Equal(t, c.expr, f.String())
			}
		})
	}
}

func TestMatch(t *testing.T) {
	cases := []struct {
		name  string
		expr  string
		attrs map[string]string
		want  bool
	}{
		{"nil filter matches", "", map[string]string{"agent": "x"}, true},
		{"literal hit", "agent=10.0.0.1", map[string]string{"agent": "10.0.0.1"}, true},
		{"literal miss", "agent=10.0.0.1", map[string]string{"agent": "10.0.0.2"}, false},
		{"literal case insensitive", "host=WEB01", map[string]string{"host": "web01"}, true},
		{"dot not a wildcard", "uripath=/a.b", map[string]string{"uripath": "/aXb"}, false},
		{"alternative second hit", "agent=10.0.0.1|10.0.0.2", map[string]string{"agent": "10.0.0.2"}, true},
		{"absent attribute fails", "agent=10.0.0.1", map[string]string{"host": "x"}, false},
		{"extra attributes ignored", "agent=10.0.0.1", map[string]string{"agent": "10.0.0.1", "host": "x"}, true},
		{"star", "agent=10.0.*", map[string]string{"agent": "10.0.3.7"}, true},
		{"star crosses separators", "uripath=/a/*", map[string]string{"uripath": "/a/b/c/d"}, true},
		{"star alone", "uripath=*", map[string]string{"uripath": "/a/b/c/d"}, true},
		{"star case insensitive", "host=WEB*", map[string]string{"host": "web01"}, true},
		{"question mark", "vlan=1?", map[string]string{"vlan": "12"}, true},
		{"question mark one char only", "vlan=1?", map[string]string{"vlan": "123"}, false},
		{"class", "ipprotocol=[67]", map[string]string{"ipprotocol": "6"}, true},
		{"class miss", "ipprotocol=[67]", map[string]string{"ipprotocol": "17"}, false},
		{"negated class", "ipprotocol=[!6]", map[string]string{"ipprotocol": "7"}, true},
		{"conjunction needs all terms", "agent=10.*&ipprotocol=6", map[string]string{"agent": "10.1.1.1", "ipprotocol": "17"}, false},
		{"conjunction all match", "agent=10.*&ipprotocol=6", map[string]string{"agent": "10.1.1.1", "ipprotocol": "6"}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f, err := Parse(c.expr)
			require.NoError(t, err)
			assert.Equal(t, c.want, f.MatchMap(c.attrs))
		})
	}
}

func TestMatchGetter(t *testing.T) {
	f, err := Parse("sourcegroup=external")
	require.NoError(t, err)
	assert.True(t, f.Match(func(name string) (string, bool) {
		if name == "sourcegroup" {
			return "external", true
		}
		return "", false
	}))
	assert.False(t, f.Match(func(string) (string, bool) { return "", false }))
}

func TestNew(t *testing.T) {
	f, err := New(map[string][]string{"agent": {"10.0.0.*", "192.168.1.1"}})
	require.NoError(t, err)
	assert.True(t, f.MatchMap(map[string]string{"agent": "10.0.0.20"}))
	assert.True(t, f.MatchMap(map[string]string{"agent": "192.168.1.1"}))
	assert.False(t, f.MatchMap(map[string]string{"agent": "172.16.0.1"}))

	f, err = New(nil)
	require.NoError(t, err)
	assert.Nil(t, f)

	_, err = New(map[string][]string{"agent": {}})
	assert.Error(t, err)
}
