// Package service is the façade the transport layer calls: synchronous
// submission, event reads, and aggregate reads. Every request gets a
// correlation id carried through its log lines.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/veritymap/event-intel/internal/domain"
	"github.com/veritymap/event-intel/internal/store"
)

const (
	// DefaultQueryLimit applies when a caller asks for events without a limit.
	DefaultQueryLimit = 100
	// MaxQueryLimit caps a single read.
	MaxQueryLimit = 1000
	// DefaultWindow is the aggregate window when the caller gives none.
	DefaultWindow = 24 * time.Hour
)

// ErrBadWindow is returned for aggregate requests whose window is inverted
// or empty.
var ErrBadWindow = errors.New("window start must precede window end")

// Assembler turns a normalized event into the stored record.
type Assembler interface {
	Assemble(ctx context.Context, ev domain.NormalizedEvent) (domain.ProcessedEvent, error)
}

// Aggregator serves region rollups.
type Aggregator interface {
	GetAggregate(ctx context.Context, region string, from, to time.Time) (domain.RegionAggregate, error)
}

// Service wires the read and write paths behind one API surface.
type Service struct {
	normalizer domain.Normalizer
	assembler  Assembler
	store      store.Store
	aggregator Aggregator
	logger     *slog.Logger
}

// New creates a Service.
func New(normalizer domain.Normalizer, assembler Assembler, st store.Store, aggregator Aggregator, logger *slog.Logger) *Service {
	return &Service{
		normalizer: normalizer,
		assembler:  assembler,
		store:      st,
		aggregator: aggregator,
		logger:     logger,
	}
}

// Submit processes one raw item synchronously and returns the stored record.
// Rejections surface as *domain.ValidationError; resubmitting identical
// content returns the already-stored record.
func (s *Service) Submit(ctx context.Context, item domain.RawItem) (domain.ProcessedEvent, error) {
	logger := s.logger.With("correlation_id", uuid.NewString())

	ev, err := s.normalizer.Normalize(item)
	if err != nil {
		logger.Warn("submission rejected", "source", item.Source, "error", err)
		return domain.ProcessedEvent{}, err
	}

	record, err := s.assembler.Assemble(ctx, ev)
	if err != nil {
		logger.Error("submission failed", "event_id", ev.EventID, "error", err)
		return domain.ProcessedEvent{}, err
	}

	logger.Info("submission processed",
		"event_id", record.EventID,
		"region", record.Region,
		"virality", record.ViralityScore,
	)
	return record, nil
}

// GetEvents returns stored events newest-first. Zero query fields are
// unconstrained; the limit is defaulted and capped.
func (s *Service) GetEvents(ctx context.Context, q store.Query) ([]domain.ProcessedEvent, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultQueryLimit
	}
	if q.Limit > MaxQueryLimit {
		q.Limit = MaxQueryLimit
	}
	return s.store.Query(ctx, q)
}

// GetEventByID returns one stored record, or domain.ErrNotFound.
func (s *Service) GetEventByID(ctx context.Context, id string) (domain.ProcessedEvent, error) {
	return s.store.GetByID(ctx, id)
}

// GetAggregate returns the heatmap aggregate for one region. A zero window
// defaults to the trailing 24 hours.
func (s *Service) GetAggregate(ctx context.Context, region string, from, to time.Time) (domain.RegionAggregate, error) {
	if to.IsZero() {
		to = domain.Now()
	}
	if from.IsZero() {
		from = to.Add(-DefaultWindow)
	}
	if !from.Before(to) {
		return domain.RegionAggregate{}, ErrBadWindow
	}
	return s.aggregator.GetAggregate(ctx, region, from, to)
}
