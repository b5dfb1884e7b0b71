// Package lookup holds the read-only tables consulted by key functions:
// named CIDR groups, ASN and country prefix tables, the OUI registry, and
// the known-host table. Tables are immutable once built; callers replace
// whole snapshots. Lookup misses are not errors.
package lookup

import (
	"encoding/binary"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/apparentlymart/go-cidr/cidr"
)

// prefixTable is a longest-prefix-match table over IPv4 and IPv6 CIDRs.
// IPv4 prefixes are kept as numeric ranges, IPv6 prefixes as nets. Entries
// carry an index into a caller-owned payload slice.
type prefixTable struct {
	v4 []prefixEntry
	v6 []prefixEntry
}

type prefixEntry struct {
	first, last uint32
	ipnet       *net.IPNet
	bits        int
	idx         int
}

func (t *prefixTable) add(cidrStr string, idx int) error {
	_, ipnet, err := net.ParseCIDR(strings.TrimSpace(cidrStr))
	if err != nil {
		return err
	}
	bits, _ := ipnet.Mask.Size()
	if ipnet.IP.To4() != nil {
		first, last := cidr.AddressRange(ipnet)
		t.v4 = append(t.v4, prefixEntry{
			first: ipv4ToUint(first),
			last:  ipv4ToUint(last),
			bits:  bits,
			idx:   idx,
		})
		return nil
	}
	t.v6 = append(t.v6, prefixEntry{ipnet: ipnet, bits: bits, idx: idx})
	return nil
}

// sort orders entries longest prefix first so lookup scans return the most
// specific match.
func (t *prefixTable) sort() {
	byBits := func(entries []prefixEntry) func(i, j int) bool {
		return func(i, j int) bool {
			if entries[i].bits != entries[j].bits {
				return entries[i].bits > entries[j].bits
			}
			return entries[i].idx < entries[j].idx
		}
	}
	sort.SliceStable(t.v4, byBits(t.v4))
	sort.SliceStable(t.v6, byBits(t.v6))
}

func (t *prefixTable) lookup(ip net.IP) (int, bool) {
	if ip == nil {
		return 0, false
	}
	if ip4 := ip.To4(); ip4 != nil {
		v := binary.BigEndian.Uint32(ip4)
		for _, e := range t.v4 {
			if v >= e.first && v <= e.last {
				return e.idx, true
			}
		}
		return 0, false
	}
	for _, e := range t.v6 {
		if e.ipnet.Contains(ip) {
			return e.idx, true
		}
	}
	return 0, false
}

func (t *prefixTable) contains(ip net.IP, want func(idx int) bool) bool {
	if ip == nil {
		return false
	}
	if ip4 := ip.To4(); ip4 != nil {
		v := binary.BigEndian.Uint32(ip4)
		for _, e := range t.v4 {
			if want(e.idx) && v >= e.first && v <= e.last {
				return true
			}
		}
		return false
	}
	for _, e := range t.v6 {
		if want(e.idx) && e.ipnet.Contains(ip) {
			return true
		}
	}
	return false
}

func ipv4ToUint(ip net.IP) uint32 {
	return binary.BigEndian.Uint32(ip.To4())
}

// Groups resolves IP addresses to named address groups.
type Groups struct {
	table   prefixTable
	names   []string
	defined map[string]bool
}

// NewGroups builds a group table from name → CIDR list definitions.
func NewGroups(defs map[string][]string) (*Groups, error) {
	g := &Groups{defined: make(map[string]bool, len(defs))}
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "" {
			return nil, fmt.Errorf("group with empty name")
		}
		g.defined[name] = true
		idx := len(g.names)
		g.names = append(g.names, name)
		for _, c := range defs[name] {
			if err := g.table.add(c, idx); err != nil {
				return nil, fmt.Errorf("group %s: %s", name, err)
			}
		}
	}
	g.table.sort()
	return g, nil
}

// Defined reports whether name is a defined group.
func (g *Groups) Defined(name string) bool {
	return g != nil && g.defined[name]
}

// Contains reports whether ip belongs to the named group.
func (g *Groups) Contains(name string, ip net.IP) bool {
	if g == nil {
		return false
	}
	return g.table.contains(ip, func(idx int) bool { return g.names[idx] == name })
}

// Resolve returns the name of the group holding the most specific prefix
// containing ip.
func (g *Groups) Resolve(ip net.IP) (string, bool) {
	if g == nil {
		return "", false
	}
	idx, ok := g.table.lookup(ip)
	if !ok {
		return "", false
	}
	return g.names[idx], true
}
