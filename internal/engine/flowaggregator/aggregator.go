package flowaggregator

import (
	"NetSentry/internal/engine/flowkey"
	"NetSentry/internal/model"
	"slices"
	"time"
)

const (
	// DefaultIdleTimeout closes a flow after this much silence.
	DefaultIdleTimeout = 2 * time.Minute
	// DefaultActiveTimeout caps the lifetime of one flow epoch.
	DefaultActiveTimeout = time.Hour
)

// FlowAggregator maintains the table of live flows for one extraction run.
// It is not safe for concurrent use; each run owns its own aggregator.
type FlowAggregator struct {
	flows         map[flowkey.Key]*Flow
	idleTimeout   time.Duration
	activeTimeout time.Duration
	finalized     uint64
}

// NewFlowAggregator creates an aggregator. Non-positive timeouts disable the matching rule.
func NewFlowAggregator(idleTimeout, activeTimeout time.Duration) *FlowAggregator {
	return &FlowAggregator{
		flows:         make(map[flowkey.Key]*Flow),
		idleTimeout:   idleTimeout,
		activeTimeout: activeTimeout,
	}
}

// ProcessPacket folds a packet into its flow, creating the flow if needed.
// If the live flow under the packet's key has timed out it is finalized and returned,
// and the packet opens a new epoch under the same key.
func (fa *FlowAggregator) ProcessPacket(p *model.PacketInfo) []*Flow {
	key, side := flowkey.Normalize(p.FiveTuple)

	var done []*Flow
	flow, ok := fa.flows[key]
	if ok && fa.expired(flow, p.Timestamp) {
		done = append(done, flow)
		fa.finalized++
		ok = false
	}
	if !ok {
		flow = newFlow(key, side, p.Timestamp)
		fa.flows[key] = flow
		flow.add(p, side, true)
		return done
	}

	flow.add(p, side, false)
	return done
}

func (fa *FlowAggregator) expired(f *Flow, now time.Time) bool {
	if fa.idleTimeout > 0 && now.Sub(f.LastPacketTime) > fa.idleTimeout {
		return true
	}
	if fa.activeTimeout > 0 && now.Sub(f.StartTime) > fa.activeTimeout {
		return true
	}
	return false
}

// FlushInactiveFlows finalizes every flow whose idle or active timeout has elapsed at
// capture time now, keeping the live table small on long captures.
func (fa *FlowAggregator) FlushInactiveFlows(now time.Time) []*Flow {
	var done []*Flow
	for key, flow := range fa.flows {
		if fa.expired(flow, now) {
			done = append(done, flow)
			delete(fa.flows, key)
		}
	}
	fa.finalized += uint64(len(done))
	SortFlows(done)
	return done
}

// FlushAll finalizes all remaining flows, ordered by start time then key.
func (fa *FlowAggregator) FlushAll() []*Flow {
	done := make([]*Flow, 0, len(fa.flows))
	for _, flow := range fa.flows {
		done = append(done, flow)
	}
	clear(fa.flows)
	fa.finalized += uint64(len(done))
	SortFlows(done)
	return done
}

// GetFlowCount returns the number of live flows.
func (fa *FlowAggregator) GetFlowCount() int {
	return len(fa.flows)
}

// Finalized returns how many flows have been handed out so far.
func (fa *FlowAggregator) Finalized() uint64 {
	return fa.finalized
}

// GetFlow returns the live flow for a key.
// Note: This is for testing/metrics purposes.
func (fa *FlowAggregator) GetFlow(key flowkey.Key) (*Flow, bool) {
	flow, ok := fa.flows[key]
	return flow, ok
}

// SortFlows orders flows by start time, then canonical key.
func SortFlows(flows []*Flow) {
	slices.SortFunc(flows, func(a, b *Flow) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return a.Key.Compare(b.Key)
	})
}
