// Package handshake keeps per exact-direction TCP bookkeeping: the initial window
// and the header bytes sent in that direction.
package handshake

import (
	"NetSentry/internal/model"
)

// DirectionalAccumulator is the state kept for one literal (src, dst) direction.
type DirectionalAccumulator struct {
	InitialWindow uint16
	HeaderBytes   uint64
	PacketCount   uint64
}

type direction struct {
	DirectionalAccumulator
	sawSYN bool
}

// Tracker accumulates handshake state keyed by the non-canonical 5-tuple.
// It is owned by a single extraction run.
type Tracker struct {
	directions map[model.FiveTuple]*direction
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{directions: make(map[model.FiveTuple]*direction)}
}

// Observe folds one packet. Non-TCP packets are ignored.
//
// The initial window of a direction is the window of its first SYN; until a SYN shows
// up (or if none ever does, e.g. the capture joined mid-connection) it is the window of
// the first packet seen in that direction.
func (t *Tracker) Observe(p *model.PacketInfo) {
	if !p.IsTCP() {
		return
	}
	d, ok := t.directions[p.FiveTuple]
	if !ok {
		d = &direction{}
		d.InitialWindow = p.TCPWindow
		t.directions[p.FiveTuple] = d
	}
	if !d.sawSYN && p.TCPFlags.Has(model.FlagSYN) {
		d.sawSYN = true
		d.InitialWindow = p.TCPWindow
	}
	d.HeaderBytes += uint64(p.HeaderLength)
	d.PacketCount++
}

// Lookup returns the accumulator for an exact direction. Unknown directions
// yield the zero value.
func (t *Tracker) Lookup(key model.FiveTuple) DirectionalAccumulator {
	if d, ok := t.directions[key]; ok {
		return d.DirectionalAccumulator
	}
	return DirectionalAccumulator{}
}

// Len returns the number of directions observed.
func (t *Tracker) Len() int {
	return len(t.directions)
}
