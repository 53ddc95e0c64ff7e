// Package flowkey maps directional 5-tuples to a direction-independent flow identity.
package flowkey

import (
	"NetSentry/internal/model"
	"cmp"
	"fmt"
	"net/netip"
)

// Side names one of the two endpoints of a canonical key.
type Side uint8

const (
	// SideA is the endpoint that sorts first (lower IP, then lower port).
	SideA Side = iota
	// SideB is the other endpoint.
	SideB
)

// Other returns the opposite endpoint.
func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

func (s Side) String() string {
	if s == SideA {
		return "A"
	}
	return "B"
}

// Key is the canonical flow identity. AddrA/PortA always sorts before or equal to AddrB/PortB,
// so both directions of a conversation map to the same Key. Key is comparable.
type Key struct {
	AddrA    netip.Addr
	PortA    uint16
	AddrB    netip.Addr
	PortB    uint16
	Protocol uint8
}

// Normalize orders the endpoints of ft and reports which side the packet source is on.
func Normalize(ft model.FiveTuple) (Key, Side) {
	c := ft.SrcIP.Compare(ft.DstIP)
	if c < 0 || (c == 0 && ft.SrcPort <= ft.DstPort) {
		return Key{
			AddrA:    ft.SrcIP,
			PortA:    ft.SrcPort,
			AddrB:    ft.DstIP,
			PortB:    ft.DstPort,
			Protocol: ft.Protocol,
		}, SideA
	}
	return Key{
		AddrA:    ft.DstIP,
		PortA:    ft.DstPort,
		AddrB:    ft.SrcIP,
		PortB:    ft.SrcPort,
		Protocol: ft.Protocol,
	}, SideB
}

// Endpoint returns the address and port of one side.
func (k Key) Endpoint(s Side) netip.AddrPort {
	if s == SideA {
		return netip.AddrPortFrom(k.AddrA, k.PortA)
	}
	return netip.AddrPortFrom(k.AddrB, k.PortB)
}

// Tuple rebuilds the exact-direction 5-tuple of packets sent from side src.
func (k Key) Tuple(src Side) model.FiveTuple {
	from, to := k.Endpoint(src), k.Endpoint(src.Other())
	return model.FiveTuple{
		SrcIP:    from.Addr(),
		SrcPort:  from.Port(),
		DstIP:    to.Addr(),
		DstPort:  to.Port(),
		Protocol: k.Protocol,
	}
}

// Compare orders keys by endpoint A, endpoint B, then protocol.
func (k Key) Compare(o Key) int {
	if c := k.AddrA.Compare(o.AddrA); c != 0 {
		return c
	}
	if c := cmp.Compare(k.PortA, o.PortA); c != 0 {
		return c
	}
	if c := k.AddrB.Compare(o.AddrB); c != 0 {
		return c
	}
	if c := cmp.Compare(k.PortB, o.PortB); c != 0 {
		return c
	}
	return cmp.Compare(k.Protocol, o.Protocol)
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d<->%s:%d/%d", k.AddrA, k.PortA, k.AddrB, k.PortB, k.Protocol)
}
