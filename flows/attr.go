package flows

import (
	"net"
	"strconv"

	"github.com/iluxa/sflow-rt/lookup"
	"github.com/iluxa/sflow-rt/sample"
)

// AttrGetter resolves attribute names to string values. ok=false means the
// attribute is undefined for the candidate.
type AttrGetter func(name string) (string, bool)

// SampleGetter returns a getter over a sample's attributes extended with the
// computed attributes agent, datasource, sourcegroup, and destinationgroup,
// and with the sample's numeric fields rendered as strings.
func SampleGetter(s *sample.Sample, tab *lookup.Tables) AttrGetter {
	return func(name string) (string, bool) {
		if v, ok := s.Attrs[name]; ok {
			return v, v != ""
		}
		switch name {
		case "agent":
			return s.Agent, s.Agent != ""
		case "datasource":
			return s.DataSource, s.DataSource != ""
		case "sourcegroup":
			return resolveGroup(s, tab, "ipsource", "ip6source")
		case "destinationgroup":
			return resolveGroup(s, tab, "ipdestination", "ip6destination")
		}
		if v, ok := s.Values[name]; ok {
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
		return "", false
	}
}

func resolveGroup(s *sample.Sample, tab *lookup.Tables, v4attr, v6attr string) (string, bool) {
	if tab == nil {
		return "", false
	}
	addr := s.Attrs[v4attr]
	if addr == "" {
		addr = s.Attrs[v6attr]
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return "", false
	}
	return tab.Groups.Resolve(ip)
}
