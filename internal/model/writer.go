package model

import "context"

// Writer defines a generic interface for appending classified flow records to a store.
type Writer interface {
	// Name identifies the writer in logs.
	Name() string

	// Append persists a batch of records. Implementations must not retain the slice.
	Append(ctx context.Context, records []Record) error

	// Close flushes and releases the underlying resources.
	Close() error
}
