package sink

import (
	"NetSentry/internal/config"
	"NetSentry/internal/model"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// RecordHandler is a function that processes a received Record.
type RecordHandler func(rec model.Record)

// Subscriber consumes the records published by NATSWriter.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.NATSConfig) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", cfg.URL, err)
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &Subscriber{nc: nc, subject: cfg.Subject}, nil
}

// Start subscribes to the subject and hands every decoded record to handler.
func (s *Subscriber) Start(handler RecordHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		rec, err := decodeRecord(msg.Data)
		if err != nil {
			log.Warnf("Dropping undecodable message on '%s': %v", msg.Subject, err)
			return
		}
		handler(rec)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	log.Printf("Subscribed to '%s'. Waiting for records...", s.subject)
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("NATS connection closed.")
	}
}

func decodeRecord(data []byte) (model.Record, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return model.Record{}, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	f := msg.GetFields()

	rec := model.Record{
		RunID:         f["run_id"].GetStringValue(),
		Capture:       f["capture"].GetStringValue(),
		CaptureDigest: f["capture_digest"].GetStringValue(),
		FlowID:        f["flow_id"].GetStringValue(),
		Label:         f["label"].GetStringValue(),
		Probability:   f["probability"].GetNumberValue(),
		Action:        f["action"].GetStringValue(),
	}
	if rec.FlowID == "" {
		return model.Record{}, fmt.Errorf("record without flow_id")
	}
	if ts := f["timestamp"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return model.Record{}, fmt.Errorf("bad record timestamp: %w", err)
		}
		rec.Timestamp = t
	}
	feats := f["features"].GetStructValue().GetFields()
	rec.Features = make(map[string]float64, len(feats))
	for k, v := range feats {
		rec.Features[k] = v.GetNumberValue()
	}
	return rec, nil
}
