package protocol

import (
	"NetSentry/internal/model"
	"errors"
	"fmt"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrSkip marks a frame the engine does not interpret: not Ethernet/IPv4, or malformed.
// It is expected and frequent; callers count it and move on.
var ErrSkip = errors.New("frame skipped")

// Parser decodes Ethernet (optionally VLAN tagged) IPv4/TCP/UDP frames into PacketInfo.
// It reuses its layer structs between calls and must not be shared between goroutines.
type Parser struct {
	eth     layers.Ethernet
	dot1q   layers.Dot1Q
	ip4     layers.IPv4
	tcp     layers.TCP
	udp     layers.UDP
	parser  *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType
}

// NewParser creates a parser for Ethernet-encapsulated frames.
func NewParser() *Parser {
	p := &Parser{
		decoded: make([]gopacket.LayerType, 0, 4),
	}
	p.parser = gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &p.eth, &p.dot1q, &p.ip4, &p.tcp, &p.udp)
	// Anything past the transport header (payloads, app protocols) is not our business.
	p.parser.IgnoreUnsupported = true
	return p
}

// ParsePacket decodes one frame and extracts key information.
// It returns an error wrapping ErrSkip for every frame that cannot be used.
func (p *Parser) ParsePacket(frame model.Frame) (*model.PacketInfo, error) {
	if len(frame.Data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrSkip)
	}
	if err := p.parser.DecodeLayers(frame.Data, &p.decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSkip, err)
	}

	var haveIP, haveTCP, haveUDP bool
	for _, lt := range p.decoded {
		switch lt {
		case layers.LayerTypeIPv4:
			haveIP = true
		case layers.LayerTypeTCP:
			haveTCP = true
		case layers.LayerTypeUDP:
			haveUDP = true
		}
	}
	if !haveIP {
		return nil, fmt.Errorf("%w: not an IPv4 packet", ErrSkip)
	}

	src, ok1 := netip.AddrFromSlice(p.ip4.SrcIP.To4())
	dst, ok2 := netip.AddrFromSlice(p.ip4.DstIP.To4())
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: bad IPv4 addresses", ErrSkip)
	}

	info := &model.PacketInfo{
		Timestamp: frame.Timestamp,
		Length:    len(frame.Data),
		FiveTuple: model.FiveTuple{
			SrcIP:    src,
			DstIP:    dst,
			Protocol: uint8(p.ip4.Protocol),
		},
		HeaderLength: int(p.ip4.IHL) * 4,
	}

	switch p.ip4.Protocol {
	case layers.IPProtocolTCP:
		if !haveTCP {
			// fragment or truncated segment, ports are not trustworthy
			return nil, fmt.Errorf("%w: TCP header missing", ErrSkip)
		}
		info.FiveTuple.SrcPort = uint16(p.tcp.SrcPort)
		info.FiveTuple.DstPort = uint16(p.tcp.DstPort)
		info.HeaderLength += int(p.tcp.DataOffset) * 4
		info.TCPFlags = tcpFlags(&p.tcp)
		info.TCPWindow = p.tcp.Window
	case layers.IPProtocolUDP:
		if !haveUDP {
			return nil, fmt.Errorf("%w: UDP header missing", ErrSkip)
		}
		info.FiveTuple.SrcPort = uint16(p.udp.SrcPort)
		info.FiveTuple.DstPort = uint16(p.udp.DstPort)
	}

	return info, nil
}

func tcpFlags(tcp *layers.TCP) model.TCPFlags {
	var f model.TCPFlags
	if tcp.FIN {
		f |= model.FlagFIN
	}
	if tcp.SYN {
		f |= model.FlagSYN
	}
	if tcp.RST {
		f |= model.FlagRST
	}
	if tcp.PSH {
		f |= model.FlagPSH
	}
	if tcp.ACK {
		f |= model.FlagACK
	}
	if tcp.URG {
		f |= model.FlagURG
	}
	if tcp.ECE {
		f |= model.FlagECE
	}
	if tcp.CWR {
		f |= model.FlagCWR
	}
	return f
}
