// Package sink holds the record sinks. Each sink registers itself with the factory.
package sink

import (
	"NetSentry/internal/config"
	"NetSentry/internal/factory"
	"NetSentry/internal/model"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

func init() {
	factory.RegisterWriter("jsonl", func(cfg config.SinkConfig) (model.Writer, error) {
		return NewJSONLWriter(cfg.JSONL.Path)
	})
	factory.RegisterWriter("nats", func(cfg config.SinkConfig) (model.Writer, error) {
		return NewNATSWriter(cfg.NATS)
	})
	factory.RegisterWriter("clickhouse", func(cfg config.SinkConfig) (model.Writer, error) {
		return NewClickHouseWriter(cfg.ClickHouse)
	})
}

// recordStruct converts a record to a protobuf Struct.
func recordStruct(r model.Record) (*structpb.Struct, error) {
	feats := make(map[string]any, len(r.Features))
	for k, v := range r.Features {
		feats[k] = v
	}
	return structpb.NewStruct(map[string]any{
		"timestamp":      r.Timestamp.UTC().Format(time.RFC3339Nano),
		"run_id":         r.RunID,
		"capture":        r.Capture,
		"capture_digest": r.CaptureDigest,
		"flow_id":        r.FlowID,
		"features":       feats,
		"label":          r.Label,
		"probability":    r.Probability,
		"action":         r.Action,
	})
}
