package satellite

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/veritymap/event-intel/internal/domain"
	"github.com/veritymap/event-intel/internal/nlp"
)

// Config tunes the validator's thresholds and budgets.
type Config struct {
	AnomalyThreshold float64       // similarity below this flags an anomaly
	RealityCeiling   float64       // max reality score an anomalous result may carry
	LookupTimeout    time.Duration // per-claim budget covering both signal fetches
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		AnomalyThreshold: 0.3,
		RealityCeiling:   0.5,
		LookupTimeout:    5 * time.Second,
	}
}

const (
	coordSourceItem     = "item"
	coordSourceCentroid = "centroid"

	// maxBaselineAge is how far a baseline capture may predate the event
	// before it costs confidence.
	maxBaselineAge = 2 * 365 * 24 * time.Hour
)

// Validator runs the per-claim ground-truth state machine: pending → lookup →
// succeeded, degraded (cached signal stood in after a backend failure), or
// skipped (no resolvable location, or nothing comparable left). Outcomes are
// quality signals; the validator never fails an event.
type Validator struct {
	backend Backend
	cache   BaselineCache
	regions *nlp.RegionIndex
	cfg     Config
	logger  *slog.Logger
}

// NewValidator wires a validator over a backend, an observation cache, and
// the region lexicon used to place location hints.
func NewValidator(backend Backend, cache BaselineCache, regions *nlp.RegionIndex, cfg Config, logger *slog.Logger) *Validator {
	if cfg.AnomalyThreshold <= 0 {
		cfg.AnomalyThreshold = DefaultConfig().AnomalyThreshold
	}
	if cfg.RealityCeiling <= 0 {
		cfg.RealityCeiling = DefaultConfig().RealityCeiling
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultConfig().LookupTimeout
	}
	return &Validator{
		backend: backend,
		cache:   cache,
		regions: regions,
		cfg:     cfg,
		logger:  logger,
	}
}

// ValidateEvent validates every claim concurrently (claims are independent)
// and returns outcomes in claim order.
func (v *Validator) ValidateEvent(ctx context.Context, ev domain.NormalizedEvent, ext domain.Extraction) []domain.ClaimValidation {
	out := make([]domain.ClaimValidation, len(ext.Claims))
	var wg sync.WaitGroup
	for i, claim := range ext.Claims {
		wg.Add(1)
		go func(i int, claim domain.Claim) {
			defer wg.Done()
			out[i] = v.validateClaim(ctx, ev, ext, claim)
		}(i, claim)
	}
	wg.Wait()
	return out
}

func (v *Validator) validateClaim(ctx context.Context, ev domain.NormalizedEvent, ext domain.Extraction, claim domain.Claim) domain.ClaimValidation {
	lat, lon, coordSource, ok := v.claimCoords(ev, ext, claim)
	if !ok {
		return domain.ClaimValidation{Claim: claim, Status: domain.ValidationSkipped}
	}

	ctx, cancel := context.WithTimeout(ctx, v.cfg.LookupTimeout)
	defer cancel()

	current, curCached, curOK := v.observation(ctx, "current", lat, lon, ev.ObservedAt, v.backend.Current)
	baseline, baseCached, baseOK := v.observation(ctx, "baseline", lat, lon, ev.ObservedAt, v.backend.Baseline)
	if !curOK || !baseOK || len(current.Vector) == 0 || len(baseline.Vector) == 0 {
		v.logger.Warn("no comparable signal for claim, skipping validation",
			"event_id", ev.EventID,
			"cell", CellKey(lat, lon))
		return domain.ClaimValidation{Claim: claim, Status: domain.ValidationSkipped}
	}

	sim := similarity(current.Vector, baseline.Vector)
	anomaly := sim < v.cfg.AnomalyThreshold
	reality := smoothstep(sim)
	if anomaly && reality > v.cfg.RealityCeiling {
		reality = v.cfg.RealityCeiling
	}

	result := domain.SatelliteResult{
		Similarity:        sim,
		Anomaly:           anomaly,
		RealityScore:      reality,
		Confidence:        v.confidence(current, baseline, curCached || baseCached, coordSource, ev.ObservedAt),
		BaselineReference: baseline.Reference,
		Metadata: map[string]string{
			"cell":            CellKey(lat, lon),
			"claim_span":      truncate(claim.TextSpan, 80),
			"coord_source":    coordSource,
			"current_source":  sourceLabel(curCached),
			"baseline_source": sourceLabel(baseCached),
		},
	}
	// An invalid result here is a scoring bug; drop it rather than persist.
	if err := result.Validate(v.cfg.RealityCeiling); err != nil {
		v.logger.Error("discarding invalid satellite result",
			"event_id", ev.EventID,
			"error", err)
		return domain.ClaimValidation{Claim: claim, Status: domain.ValidationSkipped}
	}

	status := domain.ValidationSucceeded
	if curCached || baseCached {
		status = domain.ValidationDegraded
	}
	return domain.ClaimValidation{Claim: claim, Status: status, Result: &result}
}

// claimCoords picks where to validate: explicit item coordinates, else the
// centroid of the claim's resolved location hint, else the centroid of the
// event's region. Claims with none of these are not verifiable.
func (v *Validator) claimCoords(ev domain.NormalizedEvent, ext domain.Extraction, claim domain.Claim) (float64, float64, string, bool) {
	if ev.HasCoords() {
		return *ev.Lat, *ev.Lon, coordSourceItem, true
	}
	if claim.LocationHint != "" {
		if r, found := v.regions.Resolve(claim.LocationHint); found {
			return r.Lat, r.Lon, coordSourceCentroid, true
		}
	}
	if ext.Region != "" {
		if r, found := v.regions.Lookup(ext.Region); found {
			return r.Lat, r.Lon, coordSourceCentroid, true
		}
	}
	return 0, 0, "", false
}

// observation fetches one signal side, caching successes and falling back to
// the cache on failure. The second return reports whether the value came from
// the cache, the third whether any usable observation was found.
func (v *Validator) observation(ctx context.Context, window string, lat, lon float64, date time.Time, fetch func(context.Context, float64, float64, time.Time) (Observation, error)) (Observation, bool, bool) {
	key := window + ":" + CellKey(lat, lon)
	obs, err := fetch(ctx, lat, lon, date)
	if err == nil {
		if cacheErr := v.cache.Set(ctx, key, obs); cacheErr != nil {
			v.logger.Debug("observation cache write failed", "key", key, "error", cacheErr)
		}
		return obs, false, true
	}
	v.logger.Warn("signal lookup failed, trying cache",
		"window", window,
		"cell", CellKey(lat, lon),
		"error", err)
	cached, hit, cacheErr := v.cache.Get(ctx, key)
	if cacheErr != nil || !hit {
		if cacheErr != nil {
			v.logger.Debug("observation cache read failed", "key", key, "error", cacheErr)
		}
		return Observation{}, false, false
	}
	return cached, true, true
}

// confidence reflects input quality: cloudy scenes, cached stand-ins,
// centroid-level coordinates, and stale baselines each reduce trust in the
// comparison. Floor 0.05, cap 0.95.
func (v *Validator) confidence(current, baseline Observation, cached bool, coordSource string, date time.Time) float64 {
	conf := 0.95
	conf *= 1 - 0.4*math.Max(current.CloudCover, baseline.CloudCover)
	if cached {
		conf *= 0.6
	}
	if coordSource == coordSourceCentroid {
		conf *= 0.85
	}
	if !baseline.CapturedAt.IsZero() && date.Sub(baseline.CapturedAt) > maxBaselineAge {
		conf *= 0.8
	}
	if conf < 0.05 {
		conf = 0.05
	}
	return conf
}

// similarity is centered cosine agreement mapped to [0,1]: 1 when both
// vectors move identically around the band midpoint, 0 when they are opposed.
// Different lengths compare over the shorter prefix.
func similarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := a[i]-0.5, b[i]-0.5
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		// Flat signal carries no directional information.
		return 0.5
	}
	return clamp01((1 + dot/math.Sqrt(na*nb)) / 2)
}

// smoothstep calibrates similarity into a reality score: s*s*(3-2s) keeps the
// mapping monotonic on [0,1] while damping mid-range noise.
func smoothstep(s float64) float64 {
	s = clamp01(s)
	return s * s * (3 - 2*s)
}

func sourceLabel(cached bool) string {
	if cached {
		return "cache"
	}
	return "backend"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
