package lookup

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroups(t *testing.T) {
	g, err := NewGroups(map[string][]string{
		"internal": {"10.0.0.0/8", "192.168.0.0/16"},
		"dmz":      {"10.1.0.0/16"},
		"v6lab":    {"2001:db8::/32"},
	})
	require.NoError(t, err)

	assert.True(t, g.Defined("internal"))
	assert.False(t, g.Defined("external"))

	assert.True(t, g.Contains("internal", net.ParseIP("10.2.3.4")))
	assert.True(t, g.Contains("dmz", net.ParseIP("10.1.3.4")))
	assert.False(t, g.Contains("dmz", net.ParseIP("10.2.3.4")))

	name, ok := g.Resolve(net.ParseIP("10.1.9.9"))
	require.True(t, ok)
	assert.Equal(t, "dmz", name, "most specific prefix wins")

	name, ok = g.Resolve(net.ParseIP("10.2.0.1"))
	require.True(t, ok)
	assert.Equal(t, "internal", name)

	_, ok = g.Resolve(net.ParseIP("172.16.0.1"))
	assert.False(t, ok)

	name, ok = g.Resolve(net.ParseIP("2001:db8::1"))
	require.True(t, ok)
	assert.Equal(t, "v6lab", name)
}

func TestGroupsBadCIDR(t *testing.T) {
	_, err := NewGroups(map[string][]string{"bad": {"10.0.0.0/40"}})
	assert.Error(t, err)
	_, err = NewGroups(map[string][]string{"bad": {"not-a-cidr"}})
	assert.Error(t, err)
}

func TestGroupsNil(t *testing.T) {
	var g *Groups
	assert.False(t, g.Defined("x"))
	assert.False(t, g.Contains("x", net.ParseIP("10.0.0.1")))
	_, ok := g.Resolve(net.ParseIP("10.0.0.1"))
	assert.False(t, ok)
}

func TestASNs(t *testing.T) {
	a, err := NewASNs(map[string]ASN{
		"10.0.0.0/8":    {Number: 64512, Description: "PRIVATE-A"},
		"10.20.0.0/16":  {Number: 64513, Description: "LAB"},
		"2001:db8::/32": {Number: 64514, Description: "DOC"},
	})
	require.NoError(t, err)

	as, ok := a.Lookup(net.ParseIP("10.20.1.1"))
	require.True(t, ok)
	assert.Equal(t, uint32(64513), as.Number, "most specific prefix wins")

	as, ok = a.Lookup(net.ParseIP("10.99.1.1"))
	require.True(t, ok)
	assert.Equal(t, "PRIVATE-A", as.Description)

	_, ok = a.Lookup(net.ParseIP("8.8.8.8"))
	assert.False(t, ok)

	as, ok = a.Lookup(net.ParseIP("2001:db8::99"))
	require.True(t, ok)
	assert.Equal(t, uint32(64514), as.Number)
}

func TestCountries(t *testing.T) {
	c, err := NewCountries(map[string][]string{
		"US": {"198.51.100.0/24"},
		"DE": {"192.0.2.0/24"},
	})
	require.NoError(t, err)

	code, ok := c.Lookup(net.ParseIP("192.0.2.17"))
	require.True(t, ok)
	assert.Equal(t, "DE", code)

	_, ok = c.Lookup(net.ParseIP("203.0.113.1"))
	assert.False(t, ok)
}

func TestOUIs(t *testing.T) {
	o, err := NewOUIs(map[string]Org{
		"00:00:0c": {Name: "cisco"},
		"08-00-27": {Number: "080027", Name: "pcs"},
	})
	require.NoError(t, err)

	org, ok := o.Lookup("00:00:0c:12:34:56")
	require.True(t, ok)
	assert.Equal(t, "cisco", org.Name)
	assert.Equal(t, "00000c", org.Number)

	org, ok = o.Lookup("08:00:27:aa:bb:cc")
	require.True(t, ok)
	assert.Equal(t, "pcs", org.Name)

	_, ok = o.Lookup("02:00:00:00:00:01")
	assert.False(t, ok)
	_, ok = o.Lookup("not-a-mac")
	assert.False(t, ok)

	_, err = NewOUIs(map[string]Org{"zz": {}})
	assert.Error(t, err)
}

func TestHosts(t *testing.T) {
	h := NewHosts(map[string]Host{
		"10.0.0.1": {Name: "web01", MachineType: "x86_64", OSName: "linux", UUID: "aa-bb", OSRelease: "6.1"},
	})

	name, ok := h.Lookup("10.0.0.1", "host_name")
	require.True(t, ok)
	assert.Equal(t, "web01", name)

	os, ok := h.Lookup("10.0.0.1", "os_name")
	require.True(t, ok)
	assert.Equal(t, "linux", os)

	_, ok = h.Lookup("10.0.0.2", "host_name")
	assert.False(t, ok)

	assert.True(t, IsHostField("machine_type"))
	assert.False(t, IsHostField("hostname"))
}
