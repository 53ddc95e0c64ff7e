package sink

import (
	"NetSentry/internal/config"
	"NetSentry/internal/engine/features"
	"NetSentry/internal/model"
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	log "github.com/sirupsen/logrus"
)

// createTableStatement builds the DDL for the feature table: record metadata followed by
// one Float64 column per feature, in vector order.
func createTableStatement(table string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", table)
	b.WriteString(`    Timestamp     DateTime64(6),
    RunID         String,
    Capture       String,
    CaptureDigest String,
    FlowID        String,
`)
	for _, key := range features.FeatureKeys {
		fmt.Fprintf(&b, "    %s Float64,\n", key)
	}
	b.WriteString(`    Label         String,
    Probability   Float64,
    Action        String
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (RunID, FlowID);
`)
	return b.String()
}

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
type ClickHouseWriter struct {
	conn  driver.Conn
	table string
}

// NewClickHouseWriter connects and makes sure the table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement(cfg.Table)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	return &ClickHouseWriter{conn: conn, table: cfg.Table}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Name implements model.Writer.
func (w *ClickHouseWriter) Name() string { return "clickhouse" }

// Append inserts the records as one batch.
func (w *ClickHouseWriter) Append(ctx context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO "+w.table)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, r := range records {
		if err := batch.Append(recordRow(r)...); err != nil {
			return fmt.Errorf("failed to append record to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Debugf("Wrote %d records to ClickHouse table '%s'", len(records), w.table)
	return nil
}

// recordRow lays a record out in table column order. Missing features become 0.
func recordRow(r model.Record) []any {
	row := make([]any, 0, 5+features.NumFeatures+3)
	row = append(row, r.Timestamp, r.RunID, r.Capture, r.CaptureDigest, r.FlowID)
	for _, key := range features.FeatureKeys {
		row = append(row, r.Features[key])
	}
	return append(row, r.Label, r.Probability, r.Action)
}

// Close closes the connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
