package flows

import "fmt"

// ipfixKeys maps the attributes exportable as IPFIX flow keys to their IANA
// information element names. Specifications naming ipfixCollectors may only
// use these as plain keys.
var ipfixKeys = map[string]string{
	"macsource":          "sourceMacAddress",
	"macdestination":     "destinationMacAddress",
	"ethernetprotocol":   "ethernetType",
	"vlan":               "vlanId",
	"priority":           "dot1qPriority",
	"ipprotocol":         "protocolIdentifier",
	"ipsource":           "sourceIPv4Address",
	"ipdestination":      "destinationIPv4Address",
	"ip6source":          "sourceIPv6Address",
	"ip6destination":     "destinationIPv6Address",
	"ip6nexthdr":         "nextHeaderIPv6",
	"tcpsourceport":      "tcpSourcePort",
	"tcpdestinationport": "tcpDestinationPort",
	"udpsourceport":      "udpSourcePort",
	"udpdestinationport": "udpDestinationPort",
	"inputifindex":       "ingressInterface",
	"outputifindex":      "egressInterface",
}

var ipfixValues = map[string]string{
	"bytes":  "octetDeltaCount",
	"frames": "packetDeltaCount",
}

// IPFIXKeyElement returns the IANA information element name exporting attr
// as a flow key, ok=false when attr has no fixed element mapping.
func IPFIXKeyElement(attr string) (string, bool) {
	name, ok := ipfixKeys[attr]
	return name, ok
}

// IPFIXValueElement returns the IANA information element name exporting
// attr as a flow value.
func IPFIXValueElement(attr string) (string, bool) {
	name, ok := ipfixValues[attr]
	return name, ok
}

func validateIPFIX(s *Spec) error {
	for i := range s.Keys {
		k := &s.Keys[i]
		if k.kind != kindIdentity {
			return fmt.Errorf("key %q cannot be exported via ipfix", k.String())
		}
		if _, ok := ipfixKeys[k.attr]; !ok {
			return fmt.Errorf("key %q cannot be exported via ipfix", k.String())
		}
	}
	if s.Value.Mod != ModNone {
		return fmt.Errorf("value %q cannot be exported via ipfix", s.Value.String())
	}
	if _, ok := ipfixValues[s.Value.Attr]; !ok {
		return fmt.Errorf("value %q cannot be exported via ipfix", s.Value.String())
	}
	return nil
}
