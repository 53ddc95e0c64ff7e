package sink

import (
	"NetSentry/internal/config"
	"NetSentry/internal/model"
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"
)

// NATSWriter publishes each record as a protobuf Struct to a NATS subject.
type NATSWriter struct {
	nc      *nats.Conn
	subject string
}

// NewNATSWriter connects to the NATS server.
func NewNATSWriter(cfg config.NATSConfig) (*NATSWriter, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("netsentry"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", cfg.URL, err)
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &NATSWriter{nc: nc, subject: cfg.Subject}, nil
}

// Name implements model.Writer.
func (w *NATSWriter) Name() string { return "nats" }

// Append serializes the records and publishes them, then flushes the connection.
func (w *NATSWriter) Append(ctx context.Context, records []model.Record) error {
	for _, r := range records {
		data, err := encodeRecord(r)
		if err != nil {
			return err
		}
		if err := w.nc.Publish(w.subject, data); err != nil {
			return fmt.Errorf("failed to publish record %s: %w", r.FlowID, err)
		}
	}
	if err := w.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush nats connection: %w", err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (w *NATSWriter) Close() error {
	if w.nc == nil {
		return nil
	}
	err := w.nc.Drain()
	w.nc = nil
	log.Println("NATS connection drained and closed.")
	return err
}

func encodeRecord(r model.Record) ([]byte, error) {
	msg, err := recordStruct(r)
	if err != nil {
		return nil, fmt.Errorf("failed to convert record %s: %w", r.FlowID, err)
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record %s: %w", r.FlowID, err)
	}
	return data, nil
}
