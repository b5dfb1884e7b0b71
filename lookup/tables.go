package lookup

import (
	"fmt"
	"net"
	"sort"
	"strings"
)

// ASN describes one autonomous system.
type ASN struct {
	Number      uint32 `json:"asn" yaml:"asn"`
	Description string `json:"descr" yaml:"descr"`
}

// ASNs maps IP prefixes to autonomous systems.
type ASNs struct {
	table prefixTable
	asns  []ASN
}

// NewASNs builds an ASN table from CIDR → ASN definitions.
func NewASNs(defs map[string]ASN) (*ASNs, error) {
	a := &ASNs{}
	cidrs := make([]string, 0, len(defs))
	for c := range defs {
		cidrs = append(cidrs, c)
	}
	sort.Strings(cidrs)
	for _, c := range cidrs {
		idx := len(a.asns)
		a.asns = append(a.asns, defs[c])
		if err := a.table.add(c, idx); err != nil {
			return nil, fmt.Errorf("asn table: %s", err)
		}
	}
	a.table.sort()
	return a, nil
}

// Lookup returns the autonomous system owning the most specific prefix
// containing ip.
func (a *ASNs) Lookup(ip net.IP) (ASN, bool) {
	if a == nil {
		return ASN{}, false
	}
	idx, ok := a.table.lookup(ip)
	if !ok {
		return ASN{}, false
	}
	return a.asns[idx], true
}

// Countries maps IP prefixes to country codes.
type Countries struct {
	table prefixTable
	codes []string
}

// NewCountries builds a geolocation table from country code → CIDR list
// definitions.
func NewCountries(defs map[string][]string) (*Countries, error) {
	c := &Countries{}
	codes := make([]string, 0, len(defs))
	for code := range defs {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		idx := len(c.codes)
		c.codes = append(c.codes, code)
		for _, p := range defs[code] {
			if err := c.table.add(p, idx); err != nil {
				return nil, fmt.Errorf("country %s: %s", code, err)
			}
		}
	}
	c.table.sort()
	return c, nil
}

// Lookup returns the country code for ip.
func (c *Countries) Lookup(ip net.IP) (string, bool) {
	if c == nil {
		return "", false
	}
	idx, ok := c.table.lookup(ip)
	if !ok {
		return "", false
	}
	return c.codes[idx], true
}

// Org is one entry of the OUI registry.
type Org struct {
	Number string `json:"number" yaml:"number"`
	Name   string `json:"name" yaml:"name"`
}

// OUIs maps 3-octet MAC prefixes to registered organizations.
type OUIs struct {
	byPrefix map[[3]byte]Org
}

// NewOUIs builds an OUI table. Prefix keys accept the forms "00:00:0c",
// "00-00-0c", and "00000c". Entries with an empty Number get the canonical
// lowercase hex form of their prefix.
func NewOUIs(defs map[string]Org) (*OUIs, error) {
	o := &OUIs{byPrefix: make(map[[3]byte]Org, len(defs))}
	for key, org := range defs {
		prefix, err := parseOUI(key)
		if err != nil {
			return nil, err
		}
		if org.Number == "" {
			org.Number = fmt.Sprintf("%02x%02x%02x", prefix[0], prefix[1], prefix[2])
		}
		o.byPrefix[prefix] = org
	}
	return o, nil
}

func parseOUI(s string) (prefix [3]byte, err error) {
	clean := strings.NewReplacer(":", "", "-", "", ".", "").Replace(strings.TrimSpace(s))
	if len(clean) != 6 {
		return prefix, fmt.Errorf("bad oui prefix %q", s)
	}
	for i := 0; i < 3; i++ {
		var b byte
		if _, err := fmt.Sscanf(clean[i*2:i*2+2], "%02x", &b); err != nil {
			return prefix, fmt.Errorf("bad oui prefix %q", s)
		}
		prefix[i] = b
	}
	return prefix, nil
}

// Lookup returns the organization registered for the MAC address prefix.
func (o *OUIs) Lookup(mac string) (Org, bool) {
	if o == nil {
		return Org{}, false
	}
	hw, err := net.ParseMAC(mac)
	if err != nil || len(hw) < 3 {
		return Org{}, false
	}
	org, ok := o.byPrefix[[3]byte{hw[0], hw[1], hw[2]}]
	return org, ok
}

// Host is one entry of the known-host table.
type Host struct {
	Name        string `json:"host_name" yaml:"host_name"`
	MachineType string `json:"machine_type" yaml:"machine_type"`
	OSName      string `json:"os_name" yaml:"os_name"`
	UUID        string `json:"uuid" yaml:"uuid"`
	OSRelease   string `json:"os_release" yaml:"os_release"`
}

// HostFields lists the projectable host record fields.
var HostFields = []string{"host_name", "machine_type", "os_name", "uuid", "os_release"}

// IsHostField reports whether name is a projectable host record field.
func IsHostField(name string) bool {
	for _, f := range HostFields {
		if f == name {
			return true
		}
	}
	return false
}

// Hosts maps addresses (IP or MAC, as reported by the inventory) to host
// records.
type Hosts struct {
	byAddr map[string]Host
}

// NewHosts builds a host table. Address keys are case-insensitive.
func NewHosts(defs map[string]Host) *Hosts {
	h := &Hosts{byAddr: make(map[string]Host, len(defs))}
	for addr, rec := range defs {
		h.byAddr[strings.ToLower(strings.TrimSpace(addr))] = rec
	}
	return h
}

// Lookup projects one field of the host record for addr.
func (h *Hosts) Lookup(addr, field string) (string, bool) {
	if h == nil {
		return "", false
	}
	rec, ok := h.byAddr[strings.ToLower(addr)]
	if !ok {
		return "", false
	}
	switch field {
	case "host_name":
		return rec.Name, true
	case "machine_type":
		return rec.MachineType, true
	case "os_name":
		return rec.OSName, true
	case "uuid":
		return rec.UUID, true
	case "os_release":
		return rec.OSRelease, true
	}
	return "", false
}

// Tables bundles every lookup table consulted by key functions. All lookup
// methods tolerate nil receivers, so a zero Tables behaves as a set of empty
// tables.
type Tables struct {
	Groups    *Groups
	ASNs      *ASNs
	OUIs      *OUIs
	Hosts     *Hosts
	Countries *Countries
}

// Empty is the zero lookup snapshot.
var Empty = &Tables{}
