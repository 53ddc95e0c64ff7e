// Package features maps a finalized flow and its handshake state to the fixed
// 15-field vector the classifier was trained on.
package features

import (
	"NetSentry/internal/engine/flowaggregator"
	"NetSentry/internal/engine/handshake"
	"math"
	"time"
)

// NumFeatures is the length of a Vector.
const NumFeatures = 15

// DefaultEpsilon is the smallest duration used as a rate denominator.
const DefaultEpsilon = time.Microsecond

// Vector is the ordered feature vector. All time values are in microseconds.
type Vector [NumFeatures]float64

// FeatureKeys are the snake_case names of the Vector fields, in order.
var FeatureKeys = [NumFeatures]string{
	"packet_length_variance",
	"fwd_packet_length_max",
	"fwd_header_length",
	"init_win_bytes_forward",
	"bwd_header_length",
	"total_length_fwd_packets",
	"init_win_bytes_backward",
	"bwd_packets_per_sec",
	"flow_iat_min",
	"fwd_iat_min",
	"flow_bytes_per_sec",
	"active_min",
	"bwd_iat_total",
	"flow_iat_max",
	"flow_duration",
}

// FeatureNames are the training dataset column names of the Vector fields, in order.
var FeatureNames = [NumFeatures]string{
	"Packet Length Variance",
	"Fwd Packet Length Max",
	"Fwd Header Length",
	"Init_Win_bytes_forward",
	"Bwd Header Length",
	"Total Length of Fwd Packets",
	"Init_Win_bytes_backward",
	"Bwd Packets/s",
	"Flow IAT Min",
	"Fwd IAT Min",
	"Flow Bytes/s",
	"Active Min",
	"Bwd IAT Total",
	"Flow IAT Max",
	"Flow Duration",
}

// Named returns the vector keyed by FeatureKeys.
func (v Vector) Named() map[string]float64 {
	m := make(map[string]float64, NumFeatures)
	for i, key := range FeatureKeys {
		m[key] = v[i]
	}
	return m
}

// Slice returns a copy of the vector as a slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, v[:])
	return out
}

// ActivitySegmenter computes the minimum active period of a flow, in microseconds.
type ActivitySegmenter interface {
	ActiveMin(f *flowaggregator.Flow) float64
}

// DurationSegmenter treats the whole flow as one active period.
type DurationSegmenter struct{}

// ActiveMin returns the flow duration.
func (DurationSegmenter) ActiveMin(f *flowaggregator.Flow) float64 {
	return micros(f.Duration())
}

// Mapper turns finalized flows into vectors. It counts every field it had to coerce
// from NaN or Inf to 0. A Mapper belongs to one extraction run.
type Mapper struct {
	epsilon   float64 // seconds
	segmenter ActivitySegmenter
	coerced   uint64
}

// NewMapper creates a mapper. A non-positive epsilon selects DefaultEpsilon and a nil
// segmenter selects DurationSegmenter.
func NewMapper(epsilon time.Duration, segmenter ActivitySegmenter) *Mapper {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	if segmenter == nil {
		segmenter = DurationSegmenter{}
	}
	return &Mapper{
		epsilon:   epsilon.Seconds(),
		segmenter: segmenter,
	}
}

// Map computes the feature vector of f. The directional handshake values are looked up
// under the exact keys of the flow's forward and backward directions.
func (m *Mapper) Map(f *flowaggregator.Flow, tracker *handshake.Tracker) Vector {
	fwd := tracker.Lookup(f.ForwardTuple())
	bwd := tracker.Lookup(f.BackwardTuple())

	duration := f.Duration()
	denom := math.Max(duration.Seconds(), m.epsilon)

	v := Vector{
		f.Size.Variance(),
		f.Forward.Size.Max(),
		float64(fwd.HeaderBytes),
		float64(fwd.InitialWindow),
		float64(bwd.HeaderBytes),
		float64(f.Forward.ByteCount),
		float64(bwd.InitialWindow),
		float64(f.Backward.PacketCount) / denom,
		f.IAT.Min(),
		f.Forward.IAT.Min(),
		float64(f.ByteCount()) / denom,
		m.segmenter.ActiveMin(f),
		f.Backward.IAT.Sum(),
		f.IAT.Max(),
		micros(duration),
	}

	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			v[i] = 0
			m.coerced++
		}
	}
	return v
}

// Coerced returns how many fields have been coerced to 0 so far.
func (m *Mapper) Coerced() uint64 {
	return m.coerced
}

func micros(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}
