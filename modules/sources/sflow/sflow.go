// Package sflow implements a sample source reading sFlow version 5
// datagrams from a UDP socket.
package sflow

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/iluxa/sflow-rt/sample"
	"github.com/iluxa/sflow-rt/util"
)

const datagramSize = 65536

type counterKey struct {
	agent   string
	ifIndex uint32
}

type ifaceCounters struct {
	when        time.Time
	inOctets    uint64
	outOctets   uint64
	inPkts      uint64
	outPkts     uint64
	inDiscards  uint64
	outDiscards uint64
	inErrors    uint64
	outErrors   uint64
}

type sflowSource struct {
	id        string
	laddr     string
	buffer    int
	conn      *net.UDPConn
	wg        sync.WaitGroup
	malformed uint64
	// last counters per interface, touched only by the reader goroutine
	state map[counterKey]*ifaceCounters
}

func (ps *sflowSource) ID() string {
	return ps.id
}

func (ps *sflowSource) Init() {
	ps.state = make(map[counterKey]*ifaceCounters)
}

// Start binds the UDP socket and begins decoding datagrams.
func (ps *sflowSource) Start(ingest sample.Ingestor) error {
	addr, err := net.ResolveUDPAddr("udp", ps.laddr)
	if err != nil {
		return fmt.Errorf("sflow: bad listen address %q: %s", ps.laddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("sflow: %s", err)
	}
	if ps.buffer != 0 {
		if err := conn.SetReadBuffer(ps.buffer); err != nil {
			conn.Close()
			return fmt.Errorf("sflow: can't set receive buffer to %d: %s", ps.buffer, err)
		}
	}
	ps.conn = conn
	ps.wg.Add(1)
	go ps.readLoop(ingest)
	return nil
}

// Stop closes the socket and waits for the reader to drain.
func (ps *sflowSource) Stop() {
	if ps.conn == nil {
		return
	}
	ps.conn.Close()
	ps.wg.Wait()
	if n := atomic.LoadUint64(&ps.malformed); n > 0 {
		log.Printf("sflow: dropped %d malformed datagrams\n", n)
	}
}

func (ps *sflowSource) readLoop(ingest sample.Ingestor) {
	defer ps.wg.Done()
	buf := make([]byte, datagramSize)
	for {
		n, _, err := ps.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		ps.handle(ingest, buf[:n], time.Now())
	}
}

func (ps *sflowSource) handle(ingest sample.Ingestor, data []byte, now time.Time) {
	var dgram layers.SFlowDatagram
	if err := dgram.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		atomic.AddUint64(&ps.malformed, 1)
		return
	}
	if dgram.AgentAddress == nil {
		atomic.AddUint64(&ps.malformed, 1)
		return
	}
	agent := dgram.AgentAddress.String()
	for i := range dgram.FlowSamples {
		if s := flowSample(agent, &dgram.FlowSamples[i], now); s != nil {
			ingest.IngestFlowSample(s)
		}
	}
	for i := range dgram.CounterSamples {
		if c := ps.counterSample(agent, &dgram.CounterSamples[i], now); c != nil {
			ingest.IngestCounterSample(c)
		}
	}
}

// flowSample turns one sFlow flow sample into a normalized sample. The
// bytes and frames values are scaled with the sampling rate.
func flowSample(agent string, fs *layers.SFlowFlowSample, now time.Time) *sample.Sample {
	attrs := make(map[string]string)
	if idx, ok := ifIndex(fs.InputInterfaceFormat, fs.InputInterface); ok {
		attrs["inputifindex"] = idx
	}
	if idx, ok := ifIndex(fs.OutputInterfaceFormat, fs.OutputInterface); ok {
		attrs["outputifindex"] = idx
	}

	var frameLength float64
	var swVLAN, swPriority uint32
	for _, rec := range fs.Records {
		switch r := rec.(type) {
		case layers.SFlowRawPacketFlowRecord:
			frameLength = float64(r.FrameLength)
			headerAttrs(r.Header, attrs)
		case layers.SFlowExtendedSwitchFlowRecord:
			swVLAN, swPriority = r.IncomingVLAN, r.IncomingVLANPriority
		case layers.SFlowIpv4Record:
			ipv4Attrs(&r, attrs)
			if frameLength == 0 {
				frameLength = float64(r.Length)
			}
		case layers.SFlowIpv6Record:
			ipv6Attrs(&r, attrs)
			if frameLength == 0 {
				frameLength = float64(r.Length)
			}
		}
	}
	// a dot1q tag in the sampled header wins over the switch record
	if _, ok := attrs["vlan"]; !ok && swVLAN != 0 {
		attrs["vlan"] = strconv.FormatUint(uint64(swVLAN), 10)
		attrs["priority"] = strconv.FormatUint(uint64(swPriority), 10)
	}
	if len(attrs) == 0 {
		return nil
	}

	rate := float64(fs.SamplingRate)
	if rate <= 0 {
		rate = 1
	}
	return &sample.Sample{
		Agent:      agent,
		DataSource: strconv.FormatUint(uint64(fs.SourceIDIndex), 10),
		Time:       now,
		Attrs:      attrs,
		Values: map[string]float64{
			"bytes":  frameLength * rate,
			"frames": rate,
		},
	}
}

// headerAttrs decodes the sampled packet header into flow attributes.
func headerAttrs(pkt gopacket.Packet, attrs map[string]string) {
	if pkt == nil {
		return
	}
	if l := pkt.Layer(layers.LayerTypeEthernet); l != nil {
		eth := l.(*layers.Ethernet)
		attrs["macsource"] = eth.SrcMAC.String()
		attrs["macdestination"] = eth.DstMAC.String()
		attrs["ethernetprotocol"] = strconv.FormatUint(uint64(eth.EthernetType), 10)
	}
	if l := pkt.Layer(layers.LayerTypeDot1Q); l != nil {
		q := l.(*layers.Dot1Q)
		attrs["vlan"] = strconv.FormatUint(uint64(q.VLANIdentifier), 10)
		attrs["priority"] = strconv.FormatUint(uint64(q.Priority), 10)
		attrs["ethernetprotocol"] = strconv.FormatUint(uint64(q.Type), 10)
	}
	if l := pkt.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		attrs["ipsource"] = ip.SrcIP.String()
		attrs["ipdestination"] = ip.DstIP.String()
		attrs["ipprotocol"] = strconv.FormatUint(uint64(ip.Protocol), 10)
	}
	if l := pkt.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		attrs["ip6source"] = ip.SrcIP.String()
		attrs["ip6destination"] = ip.DstIP.String()
		attrs["ip6nexthdr"] = strconv.FormatUint(uint64(ip.NextHeader), 10)
	}
	if l := pkt.Layer(layers.LayerTypeTCP); l != nil {
		t := l.(*layers.TCP)
		attrs["tcpsourceport"] = strconv.FormatUint(uint64(t.SrcPort), 10)
		attrs["tcpdestinationport"] = strconv.FormatUint(uint64(t.DstPort), 10)
	}
	if l := pkt.Layer(layers.LayerTypeUDP); l != nil {
		u := l.(*layers.UDP)
		attrs["udpsourceport"] = strconv.FormatUint(uint64(u.SrcPort), 10)
		attrs["udpdestinationport"] = strconv.FormatUint(uint64(u.DstPort), 10)
	}
}

// ipv4Attrs handles agents that export decoded headers instead of raw ones.
func ipv4Attrs(r *layers.SFlowIpv4Record, attrs map[string]string) {
	attrs["ipsource"] = r.IPSrc.String()
	attrs["ipdestination"] = r.IPDst.String()
	attrs["ipprotocol"] = strconv.FormatUint(uint64(r.Protocol), 10)
	switch r.Protocol {
	case 6:
		attrs["tcpsourceport"] = strconv.FormatUint(uint64(r.PortSrc), 10)
		attrs["tcpdestinationport"] = strconv.FormatUint(uint64(r.PortDst), 10)
	case 17:
		attrs["udpsourceport"] = strconv.FormatUint(uint64(r.PortSrc), 10)
		attrs["udpdestinationport"] = strconv.FormatUint(uint64(r.PortDst), 10)
	}
}

func ipv6Attrs(r *layers.SFlowIpv6Record, attrs map[string]string) {
	attrs["ip6source"] = r.IPSrc.String()
	attrs["ip6destination"] = r.IPDst.String()
	attrs["ip6nexthdr"] = strconv.FormatUint(uint64(r.Protocol), 10)
	switch r.Protocol {
	case 6:
		attrs["tcpsourceport"] = strconv.FormatUint(uint64(r.PortSrc), 10)
		attrs["tcpdestinationport"] = strconv.FormatUint(uint64(r.PortDst), 10)
	case 17:
		attrs["udpsourceport"] = strconv.FormatUint(uint64(r.PortSrc), 10)
		attrs["udpdestinationport"] = strconv.FormatUint(uint64(r.PortDst), 10)
	}
}

// ifIndex renders an interface reference. Expanded samples carry the format
// separately; packed references use the two top bits. Anything other than a
// single interface (discarded, multiple destinations) is skipped.
func ifIndex(format, value uint32) (string, bool) {
	if format != 0 || value>>30 != 0 || value == 0 {
		return "", false
	}
	return strconv.FormatUint(uint64(value), 10), true
}

func (ps *sflowSource) counterSample(agent string, cs *layers.SFlowCounterSample, now time.Time) *sample.Counters {
	for _, rec := range cs.Records {
		if g, ok := rec.(layers.SFlowGenericInterfaceCounters); ok {
			return ps.genericCounters(agent, &g, now)
		}
	}
	return nil
}

// genericCounters converts monotonic interface counters to per second
// gauges using the delta to the previous sample of the same interface.
// Counter resets skip a round and re-baseline.
func (ps *sflowSource) genericCounters(agent string, g *layers.SFlowGenericInterfaceCounters, now time.Time) *sample.Counters {
	cur := &ifaceCounters{
		when:        now,
		inOctets:    g.IfInOctets,
		outOctets:   g.IfOutOctets,
		inPkts:      uint64(g.IfInUcastPkts) + uint64(g.IfInMulticastPkts) + uint64(g.IfInBroadcastPkts),
		outPkts:     uint64(g.IfOutUcastPkts) + uint64(g.IfOutMulticastPkts) + uint64(g.IfOutBroadcastPkts),
		inDiscards:  uint64(g.IfInDiscards),
		outDiscards: uint64(g.IfOutDiscards),
		inErrors:    uint64(g.IfInErrors),
		outErrors:   uint64(g.IfOutErrors),
	}
	key := counterKey{agent: agent, ifIndex: g.IfIndex}
	prev := ps.state[key]
	ps.state[key] = cur

	metrics := map[string]float64{
		"ifspeed":       float64(g.IfSpeed),
		"ifadminstatus": float64(g.IfStatus & 1),
		"ifoperstatus":  float64(g.IfStatus >> 1 & 1),
	}
	if prev != nil {
		if elapsed := now.Sub(prev.when).Seconds(); elapsed > 0 {
			if v, ok := rate(cur.inOctets, prev.inOctets, elapsed); ok {
				metrics["ifinoctets"] = v
				if g.IfSpeed > 0 {
					metrics["ifinutilization"] = v * 8 / float64(g.IfSpeed) * 100
				}
			}
			if v, ok := rate(cur.outOctets, prev.outOctets, elapsed); ok {
				metrics["ifoutoctets"] = v
				if g.IfSpeed > 0 {
					metrics["ifoututilization"] = v * 8 / float64(g.IfSpeed) * 100
				}
			}
			if v, ok := rate(cur.inPkts, prev.inPkts, elapsed); ok {
				metrics["ifinpkts"] = v
			}
			if v, ok := rate(cur.outPkts, prev.outPkts, elapsed); ok {
				metrics["ifoutpkts"] = v
			}
			if v, ok := rate(cur.inDiscards, prev.inDiscards, elapsed); ok {
				metrics["ifindiscards"] = v
			}
			if v, ok := rate(cur.outDiscards, prev.outDiscards, elapsed); ok {
				metrics["ifoutdiscards"] = v
			}
			if v, ok := rate(cur.inErrors, prev.inErrors, elapsed); ok {
				metrics["ifinerrors"] = v
			}
			if v, ok := rate(cur.outErrors, prev.outErrors, elapsed); ok {
				metrics["ifouterrors"] = v
			}
		}
	}
	return &sample.Counters{
		Agent:      agent,
		DataSource: strconv.FormatUint(uint64(g.IfIndex), 10),
		Time:       now,
		Metrics:    metrics,
	}
}

func rate(cur, prev uint64, elapsed float64) (float64, bool) {
	if cur < prev {
		return 0, false
	}
	return float64(cur-prev) / elapsed, true
}

func newSFlowSource(args []string) (arguments []string, ret util.Module, err error) {
	set := flag.NewFlagSet("sflow", flag.ExitOnError)
	set.Usage = func() { sflowHelp("sflow") }

	listen := set.String("listen", ":6343", "Listen address for sFlow datagrams")
	buffer := set.Int("buffer", 0, "Socket receive buffer size in bytes")

	set.Parse(args)
	arguments = set.Args()

	ret = &sflowSource{id: "sflow|" + *listen, laddr: *listen, buffer: *buffer}
	return
}

func sflowHelp(name string) {
	fmt.Fprintf(os.Stderr, `
The %s source listens for sFlow version 5 datagrams on a UDP socket.

Flow samples are decoded into flow attributes (macsource, ipsource,
tcpsourceport, ...) with the values bytes and frames scaled by the
sampling rate. Generic interface counters are converted to per second
metrics (ifinoctets, ifinutilization, ...) per agent and interface.

Usage:
  source %s [-listen :6343] [-buffer bytes]

Flags:
  -listen string
    	Listen address for sFlow datagrams (default ":6343")
  -buffer int
    	Socket receive buffer size in bytes
`, name, name)
}

func init() {
	sample.RegisterSource("sflow", "Receives sFlow v5 datagrams over UDP.", newSFlowSource, sflowHelp)
}
