// Package pcaptest builds Ethernet/IPv4 frames and capture files for tests.
package pcaptest

import (
	"NetSentry/internal/model"
	"net"
	"os"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Base is the capture clock origin used by the fixtures.
var Base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Packet describes one synthetic frame.
type Packet struct {
	Time    time.Time
	Src     string
	Dst     string
	SrcPort uint16
	DstPort uint16
	// Protocol defaults to TCP.
	Protocol uint8
	Flags    model.TCPFlags
	Window   uint16
	// Size is the wanted on-wire frame length; the payload is sized to reach it.
	// Frames never go below the 60-byte Ethernet minimum.
	Size int
}

const (
	ethHeaderLen = 14
	ipHeaderLen  = 20
	tcpHeaderLen = 20
	udpHeaderLen = 8
)

// Frame serializes p into raw Ethernet bytes.
func Frame(t testing.TB, p Packet) []byte {
	t.Helper()

	proto := p.Protocol
	if proto == 0 {
		proto = model.ProtocolTCP
	}

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		SrcIP:    net.ParseIP(p.Src).To4(),
		DstIP:    net.ParseIP(p.Dst).To4(),
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocol(proto),
	}

	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	buf := gopacket.NewSerializeBuffer()

	var err error
	switch proto {
	case model.ProtocolTCP:
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(p.SrcPort),
			DstPort: layers.TCPPort(p.DstPort),
			Seq:     1000,
			Window:  p.Window,
			FIN:     p.Flags.Has(model.FlagFIN),
			SYN:     p.Flags.Has(model.FlagSYN),
			RST:     p.Flags.Has(model.FlagRST),
			PSH:     p.Flags.Has(model.FlagPSH),
			ACK:     p.Flags.Has(model.FlagACK),
			URG:     p.Flags.Has(model.FlagURG),
		}
		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			t.Fatalf("Failed to set network layer: %v", err)
		}
		payload := payloadFor(p.Size, ethHeaderLen+ipHeaderLen+tcpHeaderLen)
		err = gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload))
	case model.ProtocolUDP:
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(p.SrcPort),
			DstPort: layers.UDPPort(p.DstPort),
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			t.Fatalf("Failed to set network layer: %v", err)
		}
		payload := payloadFor(p.Size, ethHeaderLen+ipHeaderLen+udpHeaderLen)
		err = gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload))
	default:
		payload := payloadFor(p.Size, ethHeaderLen+ipHeaderLen)
		err = gopacket.SerializeLayers(buf, opts, eth, ip, gopacket.Payload(payload))
	}
	if err != nil {
		t.Fatalf("Failed to serialize layers: %v", err)
	}
	return buf.Bytes()
}

func payloadFor(size, headers int) []byte {
	if size <= headers {
		return nil
	}
	payload := make([]byte, size-headers)
	for i := range payload {
		payload[i] = 'A'
	}
	return payload
}

// WriteFile writes the packets as a classic pcap file with an Ethernet link type.
func WriteFile(t testing.TB, path string, packets []Packet) {
	t.Helper()
	frames := make([][]byte, len(packets))
	times := make([]time.Time, len(packets))
	for i, p := range packets {
		frames[i] = Frame(t, p)
		times[i] = p.Time
	}
	WriteRaw(t, path, layers.LinkTypeEthernet, times, frames)
}

// WriteRaw writes pre-built frames with the given link type.
func WriteRaw(t testing.TB, path string, linkType layers.LinkType, times []time.Time, frames [][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, linkType); err != nil {
		t.Fatalf("Failed to write pcap header: %v", err)
	}
	for i, data := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     times[i],
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatalf("Failed to write packet: %v", err)
		}
	}
}

// Session returns the canonical benign conversation: a three-way handshake with
// window 8192 on both sides, n forward data frames of size bytes, then a FIN.
// Every frame is spaced by step.
func Session(n, size int, step time.Duration) []Packet {
	const (
		client = "192.168.1.100"
		server = "10.0.0.5"
	)
	var out []Packet
	ts := Base
	next := func() time.Time {
		cur := ts
		ts = ts.Add(step)
		return cur
	}

	out = append(out,
		Packet{Time: next(), Src: client, Dst: server, SrcPort: 12345, DstPort: 80, Flags: model.FlagSYN, Window: 8192},
		Packet{Time: next(), Src: server, Dst: client, SrcPort: 80, DstPort: 12345, Flags: model.FlagSYN | model.FlagACK, Window: 8192},
		Packet{Time: next(), Src: client, Dst: server, SrcPort: 12345, DstPort: 80, Flags: model.FlagACK, Window: 8192},
	)
	for i := 0; i < n; i++ {
		out = append(out, Packet{Time: next(), Src: client, Dst: server, SrcPort: 12345, DstPort: 80,
			Flags: model.FlagPSH | model.FlagACK, Window: 8192, Size: size})
	}
	out = append(out, Packet{Time: next(), Src: client, Dst: server, SrcPort: 12345, DstPort: 80,
		Flags: model.FlagFIN | model.FlagACK, Window: 8192})
	return out
}
