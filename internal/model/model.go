package model

import (
	"fmt"
	"net/netip"
	"time"
)

// IP protocol numbers the engine cares about.
const (
	ProtocolTCP uint8 = 6
	ProtocolUDP uint8 = 17
)

// FiveTuple represents the 5-tuple of a network packet, as observed on the wire.
type FiveTuple struct {
	SrcIP    netip.Addr
	DstIP    netip.Addr
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

// String renders the tuple as "src:port->dst:port".
func (ft FiveTuple) String() string {
	return fmt.Sprintf("%s:%d->%s:%d", ft.SrcIP, ft.SrcPort, ft.DstIP, ft.DstPort)
}

// Reverse returns the tuple as seen from the other endpoint.
func (ft FiveTuple) Reverse() FiveTuple {
	return FiveTuple{
		SrcIP:    ft.DstIP,
		DstIP:    ft.SrcIP,
		SrcPort:  ft.DstPort,
		DstPort:  ft.SrcPort,
		Protocol: ft.Protocol,
	}
}

// TCPFlags is the flag byte of a TCP header.
type TCPFlags uint8

const (
	FlagFIN TCPFlags = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
	FlagECE
	FlagCWR
)

// Has reports whether all bits of f are set.
func (t TCPFlags) Has(f TCPFlags) bool {
	return t&f == f
}

// Frame is a single raw record read from a capture file.
type Frame struct {
	Timestamp      time.Time
	Data           []byte
	CaptureLength  int
	OriginalLength int
}

// PacketInfo holds the metadata extracted from a single packet.
type PacketInfo struct {
	Timestamp time.Time
	FiveTuple FiveTuple
	// Length is the captured frame length, used as the packet size everywhere.
	Length int
	// HeaderLength is the IPv4 header length plus the TCP header length (0 for non-TCP).
	HeaderLength int
	TCPFlags     TCPFlags
	TCPWindow    uint16
}

// IsTCP reports whether the packet carries a TCP segment.
func (p *PacketInfo) IsTCP() bool {
	return p.FiveTuple.Protocol == ProtocolTCP
}

// Record is one classified flow as handed to the record sinks.
type Record struct {
	Timestamp     time.Time          `json:"timestamp"`
	RunID         string             `json:"run_id"`
	Capture       string             `json:"capture"`
	CaptureDigest string             `json:"capture_digest,omitempty"`
	FlowID        string             `json:"flow_id"`
	Features      map[string]float64 `json:"features"`
	Label         string             `json:"label,omitempty"`
	Probability   float64            `json:"probability"`
	Action        string             `json:"action,omitempty"`
}
