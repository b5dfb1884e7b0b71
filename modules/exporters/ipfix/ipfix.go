// Package ipfix exports completed flows as IPFIX data records to UDP
// collectors. Flow keys are restricted to attributes with a fixed IANA
// information element mapping, which specification compilation enforces
// for every specification naming ipfixCollectors.
package ipfix

import (
	"flag"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/CN-TU/go-ipfix"

	"github.com/iluxa/sflow-rt/export"
	"github.com/iluxa/sflow-rt/flows"
	"github.com/iluxa/sflow-rt/thresholds"
	"github.com/iluxa/sflow-rt/util"
)

const defaultMTU = 1400

type collectorStream struct {
	conn   net.Conn
	writer *ipfix.MessageStream
	// TODO: expire templates for replaced specifications
	templates map[*flows.Spec]int
}

type ipfixExporter struct {
	id      string
	mtu     int
	all     []string
	mu      sync.Mutex
	streams map[string]*collectorStream
	now     ipfix.DateTimeNanoseconds
}

func (pe *ipfixExporter) ID() string {
	return pe.id
}

func (pe *ipfixExporter) Init() {
	pe.streams = make(map[string]*collectorStream)
}

// Flow encodes one completed flow and sends it to the specification's
// collectors, or to the static -all list when it names none.
func (pe *ipfixExporter) Flow(spec *flows.Spec, f *flows.CompletedFlow) {
	collectors := spec.IPFIXCollectors
	if len(collectors) == 0 {
		collectors = pe.all
	}
	if len(collectors) == 0 {
		return
	}

	features, ok := encode(spec, f)
	if !ok {
		return
	}
	when := ipfix.DateTimeNanoseconds(uint64(f.End) * 1e6)

	pe.mu.Lock()
	defer pe.mu.Unlock()
	pe.now = when
	for _, collector := range collectors {
		st, err := pe.stream(collector)
		if err != nil {
			log.Printf("ipfix: can't reach collector %s: %s\n", collector, err)
			continue
		}
		tid, ok := st.templates[spec]
		if !ok {
			ies, usable := templateIEs(spec)
			if !usable {
				return
			}
			tid, err = st.writer.AddTemplate(when, ies...)
			if err != nil {
				log.Printf("ipfix: %s\n", err)
				continue
			}
			st.templates[spec] = tid
		}
		if err := st.writer.SendData(when, tid, features...); err != nil {
			log.Printf("ipfix: %s\n", err)
			continue
		}
		if err := st.writer.Flush(when); err != nil {
			log.Printf("ipfix: send to %s failed: %s\n", collector, err)
		}
	}
}

// Event is ignored; threshold events have no IPFIX representation.
func (pe *ipfixExporter) Event(*thresholds.Event) {}

// Finish flushes the collector streams and closes their sockets.
func (pe *ipfixExporter) Finish() {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	for collector, st := range pe.streams {
		if err := st.writer.Flush(pe.now); err != nil {
			log.Printf("ipfix: send to %s failed: %s\n", collector, err)
		}
		st.conn.Close()
	}
	pe.streams = make(map[string]*collectorStream)
}

func (pe *ipfixExporter) stream(collector string) (*collectorStream, error) {
	if st, ok := pe.streams[collector]; ok {
		return st, nil
	}
	conn, err := net.Dial("udp", withDefaultPort(collector))
	if err != nil {
		return nil, err
	}
	writer, err := ipfix.MakeMessageStream(conn, uint16(pe.mtu), 0)
	if err != nil {
		conn.Close()
		return nil, err
	}
	st := &collectorStream{conn: conn, writer: writer, templates: make(map[*flows.Spec]int)}
	pe.streams[collector] = st
	return st, nil
}

func withDefaultPort(collector string) string {
	if _, _, err := net.SplitHostPort(collector); err == nil {
		return collector
	}
	return net.JoinHostPort(collector, "4739")
}

// templateIEs builds the information element list for one specification:
// the key elements followed by the value delta count, the start and end
// timestamps, and the end reason.
func templateIEs(spec *flows.Spec) ([]ipfix.InformationElement, bool) {
	ies := make([]ipfix.InformationElement, 0, len(spec.Keys)+4)
	for i := range spec.Keys {
		k := &spec.Keys[i]
		if !k.Identity() {
			return nil, false
		}
		name, ok := flows.IPFIXKeyElement(k.Attr())
		if !ok {
			return nil, false
		}
		ies = append(ies, ipfix.GetInformationElement(name))
	}
	name, ok := flows.IPFIXValueElement(spec.Value.Attr)
	if !ok {
		return nil, false
	}
	ies = append(ies,
		ipfix.GetInformationElement(name),
		ipfix.GetInformationElement("flowStartMilliseconds"),
		ipfix.GetInformationElement("flowEndMilliseconds"),
		ipfix.GetInformationElement("flowEndReason"),
	)
	return ies, true
}

// encode parses the record's key tokens back into wire types. Tokens that
// fail to parse skip the whole record.
func encode(spec *flows.Spec, f *flows.CompletedFlow) ([]interface{}, bool) {
	tokens := strings.Split(f.FlowKeys, ",")
	if len(tokens) != len(spec.Keys) {
		return nil, false
	}
	features := make([]interface{}, 0, len(tokens)+4)
	for i := range spec.Keys {
		v, err := parseToken(spec.Keys[i].Attr(), tokens[i])
		if err != nil {
			return nil, false
		}
		features = append(features, v)
	}
	features = append(features,
		uint64(math.Round(f.Value)),
		ipfix.DateTimeMilliseconds(f.Start),
		ipfix.DateTimeMilliseconds(f.End),
		endReasonCode(f.EndReason),
	)
	return features, true
}

func parseToken(attr, token string) (interface{}, error) {
	switch attr {
	case "macsource", "macdestination":
		return net.ParseMAC(token)
	case "ipsource", "ipdestination":
		ip := net.ParseIP(token)
		if ip == nil || ip.To4() == nil {
			return nil, fmt.Errorf("bad IPv4 address %q", token)
		}
		return ip.To4(), nil
	case "ip6source", "ip6destination":
		ip := net.ParseIP(token)
		if ip == nil {
			return nil, fmt.Errorf("bad IPv6 address %q", token)
		}
		return ip.To16(), nil
	case "ethernetprotocol", "vlan", "tcpsourceport", "tcpdestinationport",
		"udpsourceport", "udpdestinationport":
		v, err := strconv.ParseUint(token, 10, 16)
		return uint16(v), err
	case "priority", "ipprotocol", "ip6nexthdr":
		v, err := strconv.ParseUint(token, 10, 8)
		return uint8(v), err
	case "inputifindex", "outputifindex":
		v, err := strconv.ParseUint(token, 10, 32)
		return uint32(v), err
	}
	return nil, fmt.Errorf("no information element for %q", attr)
}

// endReasonCode maps end reasons to IANA flowEndReason values.
func endReasonCode(r flows.EndReason) uint8 {
	switch r {
	case flows.EndIdle:
		return 1 // idle timeout
	case flows.EndEvicted:
		return 5 // lack of resources
	case flows.EndShutdown:
		return 4 // forced end
	}
	return 3 // end of flow detected
}

func newIPFIXExporter(args []string) (arguments []string, ret util.Module, err error) {
	set := flag.NewFlagSet("ipfix", flag.ExitOnError)
	set.Usage = func() { ipfixHelp("ipfix") }

	mtu := set.Int("mtu", defaultMTU, "Maximum IPFIX message size in bytes")
	all := set.String("all", "", "Comma separated collectors for flows whose specification names none")

	set.Parse(args)
	arguments = set.Args()

	if *mtu < 512 || *mtu > 65535 {
		return nil, nil, fmt.Errorf("ipfix: mtu %d out of range", *mtu)
	}

	var static []string
	if *all != "" {
		static = strings.Split(*all, ",")
		for i := range static {
			static[i] = strings.TrimSpace(static[i])
		}
	}

	ipfix.LoadIANASpec()
	id := "IPFIX"
	if len(static) > 0 {
		id += "|" + strings.Join(static, ";")
	}
	ret = &ipfixExporter{id: id, mtu: *mtu, all: static}
	return
}

func ipfixHelp(name string) {
	fmt.Fprintf(os.Stderr, `
The %s exporter sends completed flows as IPFIX data records over UDP to
the collectors listed in each flow specification's ipfixCollectors.
Collectors without a port use 4739. One template is maintained per
specification and collector.

Only specifications whose keys and value carry a fixed IANA information
element mapping can be exported; with -all, flows of other
specifications are silently skipped.

Usage:
  export %s [-mtu 1400] [-all host[:port],host[:port]]

Flags:
  -mtu int
    	Maximum IPFIX message size in bytes (default 1400)
  -all string
    	Comma separated collectors for flows whose specification names none
`, name, name)
}

func init() {
	export.RegisterExporter("ipfix", "Exports flows to IPFIX collectors over UDP.", newIPFIXExporter, ipfixHelp)
}
