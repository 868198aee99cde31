// Package database mirrors arrivals and odds changes into Postgres.
// Mirroring is best-effort: the file-based persistence layer remains
// the source of truth.
package database

import (
	"context"

	"github.com/oddsline/collector/internal/collector"
)

// Provider receives reconciliation output after each cycle.
type Provider interface {
	RecordArrivals(ctx context.Context, collection string, entities []collector.Entity) error
	RecordChanges(ctx context.Context, collection string, changes []collector.FieldChange) error
	Close()
}

// NoOp discards everything. It is the default provider.
type NoOp struct{}

func (NoOp) RecordArrivals(context.Context, string, []collector.Entity) error {
	return nil
}

func (NoOp) RecordChanges(context.Context, string, []collector.FieldChange) error {
	return nil
}

func (NoOp) Close() {}
