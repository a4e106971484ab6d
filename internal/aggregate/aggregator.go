// Package aggregate rolls processed events up into per-region heatmap
// summaries. Aggregates are caches, never authoritative: every value is
// recomputed from the store by scanning the events in its window, and a
// freshness window bounds how stale a served aggregate can be.
//
// Readers only ever see fully-formed aggregates. Recomputation builds a
// complete new RegionAggregate and swaps it into the cache in one step;
// concurrent callers for the same (region, window) share a single
// recomputation instead of racing the store.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/veritymap/event-intel/internal/domain"
	"github.com/veritymap/event-intel/internal/observability"
	"github.com/veritymap/event-intel/internal/store"
)

const (
	// DefaultFreshness is how long a computed aggregate is served without a
	// store scan.
	DefaultFreshness = time.Minute

	// DefaultTopClaimLimit bounds the top_claims list.
	DefaultTopClaimLimit = 5

	// DefaultCountPivot is the event count at which the volume signal reaches
	// one half. Volume is normalized as count/(count+pivot) so it grows
	// smoothly and never exceeds one.
	DefaultCountPivot = 25.0
)

// Config tunes aggregation. Zero values fall back to defaults.
type Config struct {
	Freshness      time.Duration
	VolumeWeight   float64
	ViralityWeight float64
	CountPivot     float64
	TopClaimLimit  int
}

// DefaultConfig weights volume over virality, matching a heatmap where a
// burst of quiet reports should still light a region up.
func DefaultConfig() Config {
	return Config{
		Freshness:      DefaultFreshness,
		VolumeWeight:   0.6,
		ViralityWeight: 0.4,
		CountPivot:     DefaultCountPivot,
		TopClaimLimit:  DefaultTopClaimLimit,
	}
}

// Aggregator computes and caches RegionAggregates. Cache entries are keyed
// per (region, window) so unrelated regions never contend.
type Aggregator struct {
	store   store.Store
	cfg     Config
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu    sync.RWMutex
	cache map[string]cachedAggregate
	group singleflight.Group
}

type cachedAggregate struct {
	agg      domain.RegionAggregate
	storedAt time.Time
}

// NewAggregator builds an aggregator over st. A nil clock uses the wall
// clock; tests inject a fake.
func NewAggregator(st store.Store, cfg Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	if cfg.Freshness <= 0 {
		cfg.Freshness = DefaultFreshness
	}
	if cfg.VolumeWeight <= 0 && cfg.ViralityWeight <= 0 {
		def := DefaultConfig()
		cfg.VolumeWeight = def.VolumeWeight
		cfg.ViralityWeight = def.ViralityWeight
	}
	if cfg.CountPivot <= 0 {
		cfg.CountPivot = DefaultCountPivot
	}
	if cfg.TopClaimLimit <= 0 {
		cfg.TopClaimLimit = DefaultTopClaimLimit
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Aggregator{
		store:   st,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		cache:   make(map[string]cachedAggregate),
	}
}

// GetAggregate returns the aggregate for region over [from, to), serving the
// cached value while it is fresh and recomputing it otherwise.
func (a *Aggregator) GetAggregate(ctx context.Context, region string, from, to time.Time) (domain.RegionAggregate, error) {
	key := cacheKey(region, from, to)

	if agg, ok := a.fresh(key); ok {
		a.metrics.AggregateLookups.WithLabelValues("hit").Inc()
		return agg, nil
	}

	v, err, shared := a.group.Do(key, func() (any, error) {
		// A caller that lost the singleflight race re-checks the cache so it
		// reuses the aggregate the winner just stored.
		if agg, ok := a.fresh(key); ok {
			return agg, nil
		}

		agg, err := a.compute(ctx, region, from, to)
		if err != nil {
			return nil, err
		}
		a.metrics.AggregateLookups.WithLabelValues("recompute").Inc()

		a.mu.Lock()
		a.cache[key] = cachedAggregate{agg: agg, storedAt: a.clock.Now()}
		a.mu.Unlock()
		return agg, nil
	})
	if err != nil {
		return domain.RegionAggregate{}, err
	}
	if shared {
		a.logger.Debug("aggregate recompute shared between callers", "region", region)
	}
	return cloneAggregate(v.(domain.RegionAggregate)), nil
}

// fresh returns the cached aggregate when one exists and is younger than the
// freshness window.
func (a *Aggregator) fresh(key string) (domain.RegionAggregate, bool) {
	a.mu.RLock()
	entry, ok := a.cache[key]
	a.mu.RUnlock()

	if !ok || a.clock.Since(entry.storedAt) > a.cfg.Freshness {
		return domain.RegionAggregate{}, false
	}
	return cloneAggregate(entry.agg), true
}

// compute scans the store and builds a complete aggregate in one pass.
func (a *Aggregator) compute(ctx context.Context, region string, from, to time.Time) (domain.RegionAggregate, error) {
	var (
		count       int
		viralitySum float64
		realitySum  float64
		validated   int
		anomalies   int
	)
	stats := make(map[string]*claimStat)

	err := a.store.ScanForAggregation(ctx, region, from, to, func(ev domain.ProcessedEvent) error {
		count++
		viralitySum += ev.ViralityScore
		if ev.Satellite != nil {
			validated++
			realitySum += ev.Satellite.RealityScore
			if ev.Satellite.Anomaly {
				anomalies++
			}
		}
		for _, c := range ev.Claims {
			k := strings.ToLower(c.TextSpan)
			st := stats[k]
			if st == nil {
				st = &claimStat{span: c.TextSpan, category: c.Category}
				stats[k] = st
			}
			st.count++
			if ev.ViralityScore > st.maxVirality {
				st.maxVirality = ev.ViralityScore
			}
			if ev.Timestamp.After(st.latest) {
				st.latest = ev.Timestamp
			}
		}
		return nil
	})
	if err != nil {
		return domain.RegionAggregate{}, fmt.Errorf("aggregate scan for %q failed: %w", region, err)
	}

	agg := domain.RegionAggregate{
		Region:                  region,
		WindowStart:             from,
		WindowEnd:               to,
		EventCount:              count,
		SatelliteValidatedCount: validated,
		AnomalyCount:            anomalies,
		TopClaims:               topClaims(stats, a.cfg.TopClaimLimit),
		LastUpdated:             a.clock.Now(),
	}
	if count > 0 {
		agg.AvgVirality = viralitySum / float64(count)
	}
	if validated > 0 {
		avg := realitySum / float64(validated)
		agg.AvgReality = &avg
	}
	agg.Intensity = a.intensity(count, agg.AvgVirality)

	a.logger.Debug("aggregate recomputed",
		"region", region,
		"event_count", count,
		"intensity", agg.Intensity,
	)
	return agg, nil
}

// intensity blends normalized event volume with average virality. An empty
// window always maps to zero so unreported regions render cold.
func (a *Aggregator) intensity(count int, avgVirality float64) float64 {
	if count == 0 {
		return 0
	}
	volume := float64(count) / (float64(count) + a.cfg.CountPivot)
	v := a.cfg.VolumeWeight*volume + a.cfg.ViralityWeight*avgVirality
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// claimStat accumulates per-claim evidence during a scan. Claims are grouped
// case-insensitively on their text span; the first-seen spelling is kept.
type claimStat struct {
	span        string
	category    domain.ClaimCategory
	count       int
	maxVirality float64
	latest      time.Time
}

// topClaims orders grouped claims by count, breaking ties by the highest
// virality among carrying events, then the most recent mention, then the
// span itself. The full chain makes the list deterministic across
// recomputations of the same window.
func topClaims(stats map[string]*claimStat, limit int) []domain.TopClaim {
	ordered := make([]*claimStat, 0, len(stats))
	for _, st := range stats {
		ordered = append(ordered, st)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.count != b.count {
			return a.count > b.count
		}
		if a.maxVirality != b.maxVirality {
			return a.maxVirality > b.maxVirality
		}
		if !a.latest.Equal(b.latest) {
			return a.latest.After(b.latest)
		}
		return a.span < b.span
	})
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}

	out := make([]domain.TopClaim, 0, len(ordered))
	for _, st := range ordered {
		out = append(out, domain.TopClaim{TextSpan: st.span, Category: st.category, Count: st.count})
	}
	return out
}

func cacheKey(region string, from, to time.Time) string {
	return region + "|" + from.UTC().Format(time.RFC3339) + "|" + to.UTC().Format(time.RFC3339)
}

// cloneAggregate copies the slice and pointer fields so cached state cannot
// be mutated through a served aggregate.
func cloneAggregate(agg domain.RegionAggregate) domain.RegionAggregate {
	out := agg
	out.TopClaims = append([]domain.TopClaim(nil), agg.TopClaims...)
	if agg.AvgReality != nil {
		avg := *agg.AvgReality
		out.AvgReality = &avg
	}
	if out.TopClaims == nil {
		out.TopClaims = []domain.TopClaim{}
	}
	return out
}
