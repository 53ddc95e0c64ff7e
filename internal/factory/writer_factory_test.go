package factory

import (
	"NetSentry/internal/config"
	"NetSentry/internal/model"
	"context"
	"errors"
	"testing"
)

type stubWriter struct {
	name   string
	closed bool
}

func (w *stubWriter) Name() string                                 { return w.name }
func (w *stubWriter) Append(context.Context, []model.Record) error { return nil }
func (w *stubWriter) Close() error                                 { w.closed = true; return nil }

func TestCreateWriters(t *testing.T) {
	var built []*stubWriter
	RegisterWriter("stub-ok", func(cfg config.SinkConfig) (model.Writer, error) {
		w := &stubWriter{name: cfg.Type}
		built = append(built, w)
		return w, nil
	})
	RegisterWriter("stub-fail", func(config.SinkConfig) (model.Writer, error) {
		return nil, errors.New("boom")
	})

	cfg := &config.Config{Sinks: []config.SinkConfig{
		{Type: "stub-ok", Enabled: true},
		{Type: "stub-fail", Enabled: false},
	}}
	writers, err := CreateWriters(cfg)
	if err != nil {
		t.Fatalf("CreateWriters failed: %v", err)
	}
	if len(writers) != 1 || writers[0].Name() != "stub-ok" {
		t.Fatalf("Expected only the enabled writer, got %d", len(writers))
	}

	cfg.Sinks[1].Enabled = true
	if _, err := CreateWriters(cfg); err == nil {
		t.Fatalf("Expected error from failing factory")
	}
	if !built[len(built)-1].closed {
		t.Errorf("Expected already built writers to be closed on failure")
	}

	cfg.Sinks = []config.SinkConfig{{Type: "nope", Enabled: true}}
	if _, err := CreateWriters(cfg); err == nil {
		t.Errorf("Expected error for unknown writer type")
	}
}

func TestRegisterWriter_Duplicate(t *testing.T) {
	RegisterWriter("stub-dup", func(config.SinkConfig) (model.Writer, error) { return nil, nil })
	defer func() {
		if recover() == nil {
			t.Errorf("Expected panic on duplicate registration")
		}
	}()
	RegisterWriter("stub-dup", func(config.SinkConfig) (model.Writer, error) { return nil, nil })
}
