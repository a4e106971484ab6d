// Package pipeline composes the processing stages into one unit of work per
// event and runs the ingest loop that feeds them.
//
// The Assembler owns the per-event contract: at most one computed record per
// event id, no partial writes, and exactly one store put. Stage failures that
// have a degraded fallback (model annotation, satellite lookups) never
// surface here; the stages themselves absorb them and flag the output.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/veritymap/event-intel/internal/domain"
	"github.com/veritymap/event-intel/internal/observability"
	"github.com/veritymap/event-intel/internal/store"
)

const (
	// DefaultBudget bounds one event's assembly end to end.
	DefaultBudget = 30 * time.Second

	// DefaultRealityCeiling mirrors the validator's anomaly ceiling; the
	// assembler re-checks it as a final gate before persisting.
	DefaultRealityCeiling = 0.5
)

// Extractor produces claims, entities, language, and region for one event.
type Extractor interface {
	Extract(ctx context.Context, ev domain.NormalizedEvent) (domain.Extraction, error)
}

// Scorer computes an event's virality score. Pure: same inputs, same score.
type Scorer interface {
	Score(ev domain.NormalizedEvent, now time.Time) float64
}

// Validator checks extracted claims against satellite ground truth.
type Validator interface {
	ValidateEvent(ctx context.Context, ev domain.NormalizedEvent, ext domain.Extraction) []domain.ClaimValidation
}

// Config bounds one assembly.
type Config struct {
	Budget         time.Duration
	RealityCeiling float64
}

// DefaultConfig returns the stock assembly bounds.
func DefaultConfig() Config {
	return Config{Budget: DefaultBudget, RealityCeiling: DefaultRealityCeiling}
}

// Assembler turns a normalized event into exactly one stored ProcessedEvent.
// Concurrent calls for the same event id share one assembly; a duplicate of
// an already-stored id returns the stored record untouched.
type Assembler struct {
	extractor Extractor
	scorer    Scorer
	validator Validator
	store     store.Store
	logger    *slog.Logger
	metrics   *observability.Metrics
	cfg       Config
	group     singleflight.Group
}

// NewAssembler wires the stages into an assembler.
func NewAssembler(ext Extractor, sc Scorer, val Validator, st store.Store, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Assembler {
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	if cfg.RealityCeiling <= 0 {
		cfg.RealityCeiling = DefaultRealityCeiling
	}
	return &Assembler{
		extractor: ext,
		scorer:    sc,
		validator: val,
		store:     st,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Assemble processes one normalized event and returns the stored record.
// Errors are *domain.AssemblyError and mean nothing was persisted for a new
// id; callers may retry, the id makes retries idempotent.
func (a *Assembler) Assemble(ctx context.Context, ev domain.NormalizedEvent) (domain.ProcessedEvent, error) {
	v, err, shared := a.group.Do(ev.EventID, func() (any, error) {
		return a.assemble(ctx, ev)
	})
	if err != nil {
		return domain.ProcessedEvent{}, err
	}
	if shared {
		a.logger.Debug("assembly shared with concurrent duplicate", "event_id", ev.EventID)
	}
	return v.(domain.ProcessedEvent), nil
}

func (a *Assembler) assemble(ctx context.Context, ev domain.NormalizedEvent) (domain.ProcessedEvent, error) {
	start := time.Now()

	// A previously stored record wins over recomputation, whatever this run
	// would have produced.
	stored, err := a.store.GetByID(ctx, ev.EventID)
	if err == nil {
		a.metrics.DuplicateEvents.Inc()
		a.logger.Debug("event already processed", "event_id", ev.EventID)
		return stored, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.ProcessedEvent{}, &domain.AssemblyError{EventID: ev.EventID, Stage: "lookup", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Budget)
	defer cancel()

	// Extraction and scoring are independent; run them concurrently. The
	// scorer is pure and cannot fail.
	var (
		ext   domain.Extraction
		score float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stageStart := time.Now()
		var eerr error
		ext, eerr = a.extractor.Extract(gctx, ev)
		a.metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(stageStart).Seconds())
		return eerr
	})
	g.Go(func() error {
		stageStart := time.Now()
		score = a.scorer.Score(ev, domain.Now())
		a.metrics.StageDuration.WithLabelValues("score").Observe(time.Since(stageStart).Seconds())
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.ProcessedEvent{}, &domain.AssemblyError{EventID: ev.EventID, Stage: "extract", Err: err}
	}
	if ext.Degraded {
		a.metrics.ExtractionFallbacks.Inc()
	}

	var validations []domain.ClaimValidation
	if len(ext.Claims) > 0 {
		stageStart := time.Now()
		validations = a.validator.ValidateEvent(ctx, ev, ext)
		a.metrics.StageDuration.WithLabelValues("validate").Observe(time.Since(stageStart).Seconds())
	}
	best, status := pickBestValidation(validations)
	a.metrics.ValidationOutcomes.WithLabelValues(status).Inc()

	record := domain.ProcessedEvent{
		EventID:       ev.EventID,
		Source:        ev.Source,
		OriginalText:  ev.Text,
		Timestamp:     ev.ObservedAt,
		Language:      ext.Language,
		Region:        ext.Region,
		Lat:           ev.Lat,
		Lon:           ev.Lon,
		Entities:      ext.Entities,
		ViralityScore: score,
		Claims:        ext.Claims,
		Satellite:     best,
		Degraded:      ext.Degraded || status == string(domain.ValidationDegraded),
		ProcessedAt:   domain.Now(),
	}
	if err := checkRecord(record, a.cfg.RealityCeiling); err != nil {
		return domain.ProcessedEvent{}, &domain.AssemblyError{EventID: ev.EventID, Stage: "invariants", Err: err}
	}

	stageStart := time.Now()
	if err := a.store.Put(ctx, record); err != nil {
		return domain.ProcessedEvent{}, &domain.AssemblyError{EventID: ev.EventID, Stage: "persist", Err: err}
	}
	a.metrics.StageDuration.WithLabelValues("persist").Observe(time.Since(stageStart).Seconds())

	a.metrics.EventsProcessed.Inc()
	a.metrics.EventProcessingDuration.Observe(time.Since(start).Seconds())
	a.logger.Info("event assembled",
		"event_id", record.EventID,
		"source", record.Source,
		"region", record.Region,
		"virality", record.ViralityScore,
		"claims", len(record.Claims),
		"validation", status,
		"degraded", record.Degraded,
	)
	return record, nil
}

// pickBestValidation selects the satellite result to persist: highest
// confidence wins, earlier claims win ties. The returned status summarizes
// the event for metrics: the chosen result's status, "skipped" when every
// claim was skipped, "none" when validation never ran.
func pickBestValidation(validations []domain.ClaimValidation) (*domain.SatelliteResult, string) {
	if len(validations) == 0 {
		return nil, "none"
	}
	var (
		best   *domain.SatelliteResult
		status = string(domain.ValidationSkipped)
	)
	for i := range validations {
		v := validations[i]
		if v.Result == nil {
			continue
		}
		if best == nil || v.Result.Confidence > best.Confidence {
			best = v.Result
			status = string(v.Status)
		}
	}
	return best, status
}

// checkRecord is the final gate before persistence. Violations here are
// stage bugs, never data problems; nothing is written when it fails.
func checkRecord(rec domain.ProcessedEvent, realityCeiling float64) error {
	if rec.EventID == "" {
		return errors.New("empty event id")
	}
	if rec.ViralityScore < 0 || rec.ViralityScore > 1 {
		return errors.New("virality score out of range")
	}
	if rec.Timestamp.IsZero() || rec.ProcessedAt.IsZero() {
		return errors.New("missing timestamp")
	}
	if rec.Entities == nil || rec.Claims == nil {
		return errors.New("nil entities or claims")
	}
	if rec.Satellite != nil {
		if err := rec.Satellite.Validate(realityCeiling); err != nil {
			return err
		}
	}
	return nil
}
