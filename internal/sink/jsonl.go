package sink

import (
	"NetSentry/internal/model"
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONLWriter appends one JSON object per record to a file.
// It implements the model.Writer interface and is safe for concurrent use.
type JSONLWriter struct {
	mu   sync.Mutex
	path string
	file *os.File
	buf  *bufio.Writer
}

// NewJSONLWriter opens (or creates) the file at path for appending.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for '%s': %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	return &JSONLWriter{path: path, file: f, buf: bufio.NewWriter(f)}, nil
}

// Name implements model.Writer.
func (w *JSONLWriter) Name() string { return "jsonl" }

// Append writes the records and flushes them, so a batch is either on disk or reported as failed.
func (w *JSONLWriter) Append(ctx context.Context, records []model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return fmt.Errorf("jsonl writer for '%s' is closed", w.path)
	}

	enc := json.NewEncoder(w.buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode record %s: %w", r.FlowID, err)
		}
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to write '%s': %w", w.path, err)
	}
	return nil
}

// Close flushes and closes the file.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	w.file = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
