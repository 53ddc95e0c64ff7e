package main

import (
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// frame is one TCP segment to write.
type frame struct {
	ts               time.Time
	src, dst         net.IP
	srcPort, dstPort layers.TCPPort
	syn, ack, psh    bool
	fin              bool
	window           uint16
	payload          int
}

func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	kind := flag.String("kind", "benign", "Traffic to generate: 'benign' (one TCP session) or 'synflood'")
	packetCount := flag.Int("c", 1000, "Number of data segments (benign) or SYNs (synflood)")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	r := rand.New(rand.NewSource(*seed))
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var frames []frame
	switch *kind {
	case "benign":
		frames = benignSession(r, start, *packetCount)
	case "synflood":
		frames = synFlood(r, start, *packetCount)
	default:
		log.Fatalf("Unknown kind: '%s'", *kind)
	}

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	pcapWriter := pcapgo.NewWriter(f)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	log.Printf("Generating %d %s frames into %s...", len(frames), *kind, *outputFile)
	for _, fr := range frames {
		data, err := serialize(r, fr)
		if err != nil {
			log.Fatalf("Failed to serialize layers: %v", err)
		}
		ci := gopacket.CaptureInfo{
			Timestamp:     fr.ts,
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := pcapWriter.WritePacket(ci, data); err != nil {
			log.Fatalf("Failed to write packet: %v", err)
		}
	}
	log.Printf("Successfully generated %d frames into %s.", len(frames), *outputFile)
}

// benignSession is a handshake, n request/response exchanges and a FIN.
func benignSession(r *rand.Rand, ts time.Time, n int) []frame {
	client, server := net.IP{192, 168, 1, 100}, net.IP{10, 0, 0, 5}
	cport, sport := layers.TCPPort(40000+r.Intn(20000)), layers.TCPPort(443)
	tick := func() time.Time {
		ts = ts.Add(time.Duration(200+r.Intn(800)) * time.Microsecond)
		return ts
	}

	out := []frame{
		{ts: tick(), src: client, dst: server, srcPort: cport, dstPort: sport, syn: true, window: 64240},
		{ts: tick(), src: server, dst: client, srcPort: sport, dstPort: cport, syn: true, ack: true, window: 65160},
		{ts: tick(), src: client, dst: server, srcPort: cport, dstPort: sport, ack: true, window: 502},
	}
	for i := 0; i < n; i++ {
		out = append(out,
			frame{ts: tick(), src: client, dst: server, srcPort: cport, dstPort: sport, psh: true, ack: true, window: 502, payload: 100 + r.Intn(400)},
			frame{ts: tick(), src: server, dst: client, srcPort: sport, dstPort: cport, psh: true, ack: true, window: 509, payload: 200 + r.Intn(1200)},
		)
	}
	return append(out, frame{ts: tick(), src: client, dst: server, srcPort: cport, dstPort: sport, fin: true, ack: true, window: 502})
}

// synFlood is n SYNs from random sources to one server, with no answers.
func synFlood(r *rand.Rand, ts time.Time, n int) []frame {
	target := net.IP{10, 0, 0, 5}
	out := make([]frame, 0, n)
	for i := 0; i < n; i++ {
		ts = ts.Add(time.Duration(10+r.Intn(40)) * time.Microsecond)
		out = append(out, frame{
			ts:      ts,
			src:     net.IP{byte(r.Intn(223) + 1), byte(r.Intn(256)), byte(r.Intn(256)), byte(r.Intn(254) + 1)},
			dst:     target,
			srcPort: layers.TCPPort(r.Intn(65535-1024) + 1024),
			dstPort: 80,
			syn:     true,
			window:  14600,
		})
	}
	return out
}

func serialize(r *rand.Rand, fr frame) ([]byte, error) {
	ethLayer := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ipLayer := &layers.IPv4{
		SrcIP:    fr.src,
		DstIP:    fr.dst,
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
	}
	tcpLayer := &layers.TCP{
		SrcPort: fr.srcPort,
		DstPort: fr.dstPort,
		Seq:     r.Uint32(),
		SYN:     fr.syn,
		ACK:     fr.ack,
		PSH:     fr.psh,
		FIN:     fr.fin,
		Window:  fr.window,
	}
	if fr.ack {
		tcpLayer.Ack = r.Uint32()
	}
	if err := tcpLayer.SetNetworkLayerForChecksum(ipLayer); err != nil {
		return nil, err
	}

	payload := make([]byte, fr.payload)
	r.Read(payload)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}
	if err := gopacket.SerializeLayers(buf, opts, ethLayer, ipLayer, tcpLayer, gopacket.Payload(payload)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
