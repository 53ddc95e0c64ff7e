package manager

import (
	"NetSentry/internal/config"
	"NetSentry/internal/decision"
	"NetSentry/internal/extractor"
	"NetSentry/internal/metrics"
	"NetSentry/internal/model"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Outcome is what happened to one capture file of a batch.
type Outcome struct {
	Path    string
	Result  *extractor.Result
	Records []model.Record
	// Err is a fatal extraction error, or the joined classifier and sink errors.
	Err error
}

// Manager orchestrates extraction of capture files, classification of their flows,
// and delivery of the records to the writers.
type Manager struct {
	extractor  *extractor.Extractor
	classifier model.Classifier
	writers    []model.Writer
	metrics    *metrics.Metrics

	numWorkers int
	classify   bool
	now        func() time.Time
}

// NewManager creates a new Manager. classifier and m may be nil; classification only
// happens when it is enabled in the config and a classifier is given.
func NewManager(cfg *config.Config, classifier model.Classifier, writers []model.Writer, m *metrics.Metrics) (*Manager, error) {
	d, err := cfg.ExtractorDurations()
	if err != nil {
		return nil, fmt.Errorf("invalid extractor config: %w", err)
	}
	if cfg.Manager.Classify && classifier == nil {
		return nil, errors.New("classification is enabled but no classifier is configured")
	}

	ext := extractor.New(extractor.Config{
		IdleTimeout:   d.IdleTimeout,
		ActiveTimeout: d.ActiveTimeout,
		SweepInterval: d.SweepInterval,
		Epsilon:       d.Epsilon,
		Backend:       cfg.Extractor.ReaderBackend,
	})

	numWorkers := cfg.Manager.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Manager{
		extractor:  ext,
		classifier: classifier,
		writers:    writers,
		metrics:    m,
		numWorkers: numWorkers,
		classify:   cfg.Manager.Classify,
		now:        time.Now,
	}, nil
}

// Run processes the files on the worker pool and returns one outcome per path,
// in input order.
func (m *Manager) Run(ctx context.Context, paths []string) []Outcome {
	outcomes := make([]Outcome, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	workers := min(m.numWorkers, len(paths))
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcomes[idx] = m.Process(ctx, paths[idx])
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	log.Printf("Processed %d capture files with %d workers.", len(paths), workers)
	return outcomes
}

// Process handles a single capture file.
func (m *Manager) Process(ctx context.Context, path string) Outcome {
	logger := log.WithField("capture", path)
	out := Outcome{Path: path}

	res, err := m.extractor.Extract(ctx, path)
	if err != nil {
		if m.metrics != nil {
			m.metrics.ObserveError()
		}
		logger.Errorf("Feature extraction failed: %v", err)
		out.Err = err
		return out
	}
	if m.metrics != nil {
		m.metrics.ObserveResult(res)
	}
	out.Result = res

	if !res.Valid {
		logger.Warnf("Capture is not usable: %s", res.Error)
		return out
	}

	var errs []error
	now := m.now()
	out.Records = make([]model.Record, 0, len(res.Flows))
	for _, flow := range res.Flows {
		rec := model.Record{
			Timestamp:     now,
			RunID:         res.RunID,
			Capture:       res.Capture,
			CaptureDigest: res.CaptureDigest,
			FlowID:        flow.FlowID,
			Features:      flow.Features,
		}
		if m.classify {
			if err := m.classifyFlow(ctx, flow, &rec); err != nil {
				errs = append(errs, fmt.Errorf("flow %s: %w", flow.FlowID, err))
			}
		}
		out.Records = append(out.Records, rec)
	}

	for _, w := range m.writers {
		if err := w.Append(ctx, out.Records); err != nil {
			logger.Errorf("Writer '%s' failed: %v", w.Name(), err)
			errs = append(errs, fmt.Errorf("writer %s: %w", w.Name(), err))
		}
	}

	out.Err = errors.Join(errs...)
	logger.WithFields(log.Fields{
		"run_id": res.RunID,
		"flows":  len(res.Flows),
	}).Info("Capture processed")
	return out
}

func (m *Manager) classifyFlow(ctx context.Context, flow extractor.FlowFeatures, rec *model.Record) error {
	pred, err := m.classifier.Predict(ctx, flow.Vector.Slice())
	if err != nil {
		return err
	}
	action := decision.Decide(pred.Label)
	rec.Label = pred.Label
	rec.Probability = pred.Probability
	rec.Action = string(action)

	log.Info(decision.Syslog(action, flow.Src, flow.Dst, action.Reason(), m.now()))
	return nil
}

// Close closes all writers.
func (m *Manager) Close() error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close writer %s: %w", w.Name(), err))
		}
	}
	log.Println("Manager stopped.")
	return errors.Join(errs...)
}
