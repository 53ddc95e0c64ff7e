// Package extractor runs one capture file through the engine: a single traversal feeds
// the handshake tracker and the flow aggregator. Finalized flows are mapped to their
// feature vectors once the whole capture has been read, so every flow sees the
// handshake state of the complete file.
package extractor

import (
	"NetSentry/internal/engine/features"
	"NetSentry/internal/engine/flowaggregator"
	"NetSentry/internal/engine/handshake"
	"NetSentry/internal/engine/protocol"
	"NetSentry/pkg/pcap"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrNoFlowsFound is reported by Result.Err when a capture held no usable IPv4 traffic.
var ErrNoFlowsFound = errors.New("no flows found")

// Config tunes an Extractor.
type Config struct {
	IdleTimeout   time.Duration
	ActiveTimeout time.Duration
	// SweepInterval is the capture-time period between inactive-flow sweeps. 0 disables sweeping.
	SweepInterval time.Duration
	Epsilon       time.Duration
	Backend       string
	Segmenter     features.ActivitySegmenter
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:   flowaggregator.DefaultIdleTimeout,
		ActiveTimeout: flowaggregator.DefaultActiveTimeout,
		Epsilon:       features.DefaultEpsilon,
		Backend:       pcap.DefaultBackend,
	}
}

// FlowFeatures is one finalized flow and its vector.
type FlowFeatures struct {
	FlowID string `json:"flow_id"`
	Key    string `json:"key"`
	// Src and Dst are the forward source and destination addresses.
	Src         string             `json:"src"`
	Dst         string             `json:"dst"`
	Protocol    uint8              `json:"protocol"`
	FirstSeen   time.Time          `json:"first_seen"`
	LastSeen    time.Time          `json:"last_seen"`
	PacketCount uint64             `json:"packet_count"`
	Vector      features.Vector    `json:"-"`
	Features    map[string]float64 `json:"features"`
}

// Stats counts what happened during one run.
type Stats struct {
	Frames        uint64 `json:"frames"`
	Packets       uint64 `json:"packets"`
	Skipped       uint64 `json:"skipped"`
	Flows         uint64 `json:"flows"`
	CoercedFields uint64 `json:"coerced_fields"`
	Truncated     bool   `json:"truncated"`
}

// Result is the outcome of extracting one capture.
type Result struct {
	RunID         string         `json:"run_id"`
	Capture       string         `json:"capture"`
	CaptureDigest string         `json:"capture_digest"`
	Valid         bool           `json:"valid"`
	Error         string         `json:"error,omitempty"`
	Flows         []FlowFeatures `json:"flows"`
	Stats         Stats          `json:"stats"`
	Elapsed       time.Duration  `json:"-"`
}

// Err returns ErrNoFlowsFound for an invalid result and nil otherwise.
func (r *Result) Err() error {
	if r.Valid {
		return nil
	}
	return ErrNoFlowsFound
}

// Primary returns the first flow of the capture, the one the edge controller acts on.
func (r *Result) Primary() (FlowFeatures, bool) {
	if len(r.Flows) == 0 {
		return FlowFeatures{}, false
	}
	return r.Flows[0], true
}

// Extractor extracts flow features from capture files. It holds only configuration,
// so one Extractor can serve concurrent Extract calls.
type Extractor struct {
	cfg Config
}

// New creates an extractor. Zero timeouts fall back to the defaults.
func New(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.ActiveTimeout <= 0 {
		cfg.ActiveTimeout = def.ActiveTimeout
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = def.Epsilon
	}
	if cfg.Backend == "" {
		cfg.Backend = def.Backend
	}
	return &Extractor{cfg: cfg}
}

// run holds the per-capture state. Nothing in it outlives one Extract call.
type run struct {
	parser    *protocol.Parser
	tracker   *handshake.Tracker
	agg       *flowaggregator.FlowAggregator
	mapper    *features.Mapper
	finalized []*flowaggregator.Flow
	logger    *log.Entry
	result    *Result
}

// Extract reads the capture at path and returns its flow features.
// A missing or corrupt file is returned as an error wrapping pcap.ErrNotFound or
// pcap.ErrCorruptCapture. A capture without flows is not an error: the result is
// marked invalid instead. Cancelling ctx abandons all open flows.
func (e *Extractor) Extract(ctx context.Context, path string) (*Result, error) {
	start := time.Now()
	reader, err := pcap.Open(path, e.cfg.Backend)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	logger := log.WithField("capture", path)
	ethernet := reader.LinkType() == layers.LinkTypeEthernet
	if !ethernet {
		logger.Warnf("Link type %s is not Ethernet, all frames will be skipped", reader.LinkType())
	}

	r := &run{
		parser:  protocol.NewParser(),
		tracker: handshake.NewTracker(),
		agg:     flowaggregator.NewFlowAggregator(e.cfg.IdleTimeout, e.cfg.ActiveTimeout),
		mapper:  features.NewMapper(e.cfg.Epsilon, e.cfg.Segmenter),
		logger:  logger,
		result: &Result{
			RunID:   uuid.NewString(),
			Capture: path,
			Flows:   []FlowFeatures{},
		},
	}

	var nextSweep time.Time
	for {
		if err := ctx.Err(); err != nil {
			logger.Warnf("Extraction cancelled after %d frames, dropping %d open flows", r.result.Stats.Frames, r.agg.GetFlowCount())
			return nil, err
		}

		frame, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read frame: %w", err)
		}
		r.result.Stats.Frames++
		if !ethernet {
			r.result.Stats.Skipped++
			continue
		}

		info, err := r.parser.ParsePacket(frame)
		if err != nil {
			r.result.Stats.Skipped++
			continue
		}
		r.result.Stats.Packets++

		r.tracker.Observe(info)
		r.finalized = append(r.finalized, r.agg.ProcessPacket(info)...)

		if e.cfg.SweepInterval > 0 {
			if nextSweep.IsZero() {
				nextSweep = info.Timestamp.Add(e.cfg.SweepInterval)
			} else if !info.Timestamp.Before(nextSweep) {
				r.finalized = append(r.finalized, r.agg.FlushInactiveFlows(info.Timestamp)...)
				nextSweep = info.Timestamp.Add(e.cfg.SweepInterval)
			}
		}
	}
	r.finalized = append(r.finalized, r.agg.FlushAll()...)
	r.emit()

	digest, err := reader.Digest()
	if err != nil {
		return nil, err
	}

	res := r.result
	res.CaptureDigest = digest
	res.Stats.Truncated = reader.Truncated()
	res.Stats.CoercedFields = r.mapper.Coerced()
	res.Stats.Flows = uint64(len(res.Flows))
	res.Valid = len(res.Flows) > 0
	if !res.Valid {
		res.Error = ErrNoFlowsFound.Error()
	}
	res.Elapsed = time.Since(start)

	logger.WithFields(log.Fields{
		"run_id":  res.RunID,
		"frames":  res.Stats.Frames,
		"skipped": res.Stats.Skipped,
		"flows":   res.Stats.Flows,
	}).Debug("Extraction finished")
	return res, nil
}

// emit maps every finalized flow against the tracker, which by now has seen the
// whole capture. Output is ordered by first_seen, so sweeping never reorders it.
func (r *run) emit() {
	flowaggregator.SortFlows(r.finalized)
	debug := r.logger.Logger.IsLevelEnabled(log.DebugLevel)
	for _, f := range r.finalized {
		v := r.mapper.Map(f, r.tracker)
		fwd := f.ForwardTuple()
		if debug {
			r.logger.WithFields(log.Fields{
				"flow":               f.ID(),
				"packets":            f.PacketCount(),
				"fwd_handshake_pkts": r.tracker.Lookup(fwd).PacketCount,
				"bwd_handshake_pkts": r.tracker.Lookup(f.BackwardTuple()).PacketCount,
			}).Debug("Flow mapped")
		}
		r.result.Flows = append(r.result.Flows, FlowFeatures{
			FlowID:      f.ID(),
			Key:         f.Key.String(),
			Src:         fwd.SrcIP.String(),
			Dst:         fwd.DstIP.String(),
			Protocol:    f.Key.Protocol,
			FirstSeen:   f.StartTime,
			LastSeen:    f.EndTime,
			PacketCount: f.PacketCount(),
			Vector:      v,
			Features:    v.Named(),
		})
	}
	r.finalized = nil
}
