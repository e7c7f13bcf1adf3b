// Package repository holds the process-wide standings cache.
package repository

import (
	"context"

	"github.com/okian/standings/internal/domain/model"
)

// Store maps a competition identifier to its latest committed Record.
type Store interface {
	// Get returns the committed record, or ErrNotFound.
	Get(ctx context.Context, competition string) (model.Record, error)

	// Commit replaces the record for rec.Competition wholesale.
	Commit(ctx context.Context, rec model.Record) error

	// Count returns the number of cached competitions.
	Count(ctx context.Context) int

	// Keys lists cached competition identifiers in no particular order.
	Keys(ctx context.Context) []string
}
