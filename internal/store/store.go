// Package store persists processed events. The contract is deliberately
// narrow: idempotent put, point get, filtered range query, and a streaming
// scan for aggregation. No cross-record transactional guarantees beyond
// per-record atomicity of Put.
package store

import (
	"context"
	"time"

	"github.com/veritymap/event-intel/internal/domain"
)

// Query filters event reads. Zero-valued fields are unconstrained; the time
// range is half-open [From, To).
type Query struct {
	Region string
	From   time.Time
	To     time.Time
	Limit  int
}

// Store is the persistence contract.
//
// Put is idempotent per EventID: writing an id that already exists is a
// no-op, never an overwrite, so replays and concurrent duplicate submissions
// converge on the first stored record. GetByID returns domain.ErrNotFound
// for unknown ids. Query returns newest-first (timestamp descending, event id
// ascending on ties). ScanForAggregation streams matching events to fn in
// unspecified order; an fn error aborts the scan and is returned.
type Store interface {
	Put(ctx context.Context, ev domain.ProcessedEvent) error
	GetByID(ctx context.Context, id string) (domain.ProcessedEvent, error)
	Query(ctx context.Context, q Query) ([]domain.ProcessedEvent, error)
	ScanForAggregation(ctx context.Context, region string, from, to time.Time, fn func(domain.ProcessedEvent) error) error
}
