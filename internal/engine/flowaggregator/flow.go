package flowaggregator

import (
	"NetSentry/internal/engine/flowkey"
	"NetSentry/internal/engine/stats"
	"NetSentry/internal/model"
	"time"
)

// DirectionStats are the counters kept for one direction of a flow.
type DirectionStats struct {
	PacketCount uint64
	ByteCount   uint64
	Size        stats.Welford
	IAT         stats.IAT
}

// Flow is one epoch of bidirectional traffic under a canonical key.
type Flow struct {
	Key flowkey.Key
	// ForwardSide is the endpoint that sent the first packet of the epoch.
	ForwardSide flowkey.Side

	StartTime      time.Time // first_seen
	EndTime        time.Time // last_seen, never before StartTime
	LastPacketTime time.Time

	Forward  DirectionStats
	Backward DirectionStats
	Size     stats.Welford
	IAT      stats.IAT
}

func newFlow(key flowkey.Key, side flowkey.Side, ts time.Time) *Flow {
	return &Flow{
		Key:            key,
		ForwardSide:    side,
		StartTime:      ts,
		EndTime:        ts,
		LastPacketTime: ts,
	}
}

// add folds one packet into the flow. first marks the packet that opened the epoch.
func (f *Flow) add(p *model.PacketInfo, side flowkey.Side, first bool) {
	dir := &f.Backward
	if side == f.ForwardSide {
		dir = &f.Forward
	}

	size := float64(p.Length)
	dir.PacketCount++
	dir.ByteCount += uint64(p.Length)
	dir.Size.Add(size)
	f.Size.Add(size)

	if !first {
		gap := p.Timestamp.Sub(f.LastPacketTime)
		if gap < 0 {
			// out-of-order capture timestamps
			gap = 0
		}
		iat := micros(gap)
		f.IAT.Add(iat)
		dir.IAT.Add(iat)
	}

	if p.Timestamp.After(f.EndTime) {
		f.EndTime = p.Timestamp
	}
	f.LastPacketTime = p.Timestamp
}

// PacketCount returns the number of packets in both directions.
func (f *Flow) PacketCount() uint64 {
	return f.Forward.PacketCount + f.Backward.PacketCount
}

// ByteCount returns the number of bytes in both directions.
func (f *Flow) ByteCount() uint64 {
	return f.Forward.ByteCount + f.Backward.ByteCount
}

// Duration returns last_seen - first_seen.
func (f *Flow) Duration() time.Duration {
	return f.EndTime.Sub(f.StartTime)
}

// ForwardTuple is the exact-direction key of forward packets.
func (f *Flow) ForwardTuple() model.FiveTuple {
	return f.Key.Tuple(f.ForwardSide)
}

// BackwardTuple is the exact-direction key of backward packets.
func (f *Flow) BackwardTuple() model.FiveTuple {
	return f.Key.Tuple(f.ForwardSide.Other())
}

// ID renders the flow as "{srcIP}:{srcPort}->{dstIP}:{dstPort}" from the forward source.
func (f *Flow) ID() string {
	return f.ForwardTuple().String()
}

// micros converts a duration to fractional microseconds, the base unit of all time features.
func micros(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}
