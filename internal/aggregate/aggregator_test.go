package aggregate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritymap/event-intel/internal/domain"
	"github.com/veritymap/event-intel/internal/observability"
	"github.com/veritymap/event-intel/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	// Fresh registry per test avoids "already registered" panics.
	return observability.NewMetricsForTesting()
}

// countingStore counts scans so tests can tell a cache hit from a recompute.
type countingStore struct {
	store.Store
	scans atomic.Int32
}

func (c *countingStore) ScanForAggregation(ctx context.Context, region string, from, to time.Time, fn func(domain.ProcessedEvent) error) error {
	c.scans.Add(1)
	return c.Store.ScanForAggregation(ctx, region, from, to, fn)
}

type failingStore struct {
	store.Store
	err error
}

func (f *failingStore) ScanForAggregation(context.Context, string, time.Time, time.Time, func(domain.ProcessedEvent) error) error {
	return f.err
}

func seedEvent(t *testing.T, st store.Store, id, region string, ts time.Time, virality float64, sat *domain.SatelliteResult, claims ...domain.Claim) {
	t.Helper()
	err := st.Put(context.Background(), domain.ProcessedEvent{
		EventID:       id,
		Source:        domain.SourceSocial,
		OriginalText:  "seed",
		Timestamp:     ts,
		Language:      "en",
		Region:        region,
		Entities:      []string{},
		ViralityScore: virality,
		Claims:        claims,
		Satellite:     sat,
		ProcessedAt:   ts,
	})
	require.NoError(t, err)
}

func TestAggregator_GetAggregate_Computes(t *testing.T) {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	now := base.Add(6 * time.Hour)
	clock := clockwork.NewFakeClockAt(now)

	mem := store.NewMemory()
	river := domain.Claim{TextSpan: "river crossed the danger mark", Category: domain.ClaimEnvironmental}
	bridge := domain.Claim{TextSpan: "bridge washed away", Category: domain.ClaimEnvironmental}

	seedEvent(t, mem, "social-0000000000000001", "Assam", base.Add(1*time.Hour), 0.8,
		&domain.SatelliteResult{Similarity: 0.9, RealityScore: 0.9, Confidence: 0.9}, river)
	seedEvent(t, mem, "social-0000000000000002", "Assam", base.Add(2*time.Hour), 0.6,
		&domain.SatelliteResult{Similarity: 0.1, Anomaly: true, RealityScore: 0.5, Confidence: 0.8}, river, bridge)
	seedEvent(t, mem, "social-0000000000000003", "Assam", base.Add(3*time.Hour), 0.4, nil, bridge)
	seedEvent(t, mem, "social-0000000000000004", "Assam", base.Add(4*time.Hour), 0.2, nil)
	seedEvent(t, mem, "social-0000000000000005", "Kerala", base.Add(1*time.Hour), 0.9, nil, river)

	agg := NewAggregator(mem, DefaultConfig(), clock, testLogger(), newTestMetrics())

	got, err := agg.GetAggregate(context.Background(), "Assam", base, base.Add(6*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "Assam", got.Region)
	assert.Equal(t, base, got.WindowStart)
	assert.Equal(t, base.Add(6*time.Hour), got.WindowEnd)
	assert.Equal(t, 4, got.EventCount)
	assert.InDelta(t, 0.5, got.AvgVirality, 1e-9)
	assert.Equal(t, 2, got.SatelliteValidatedCount)
	assert.Equal(t, 1, got.AnomalyCount)
	require.NotNil(t, got.AvgReality)
	assert.InDelta(t, 0.7, *got.AvgReality, 1e-9)
	assert.InDelta(t, 0.6*4.0/29.0+0.4*0.5, got.Intensity, 1e-9)
	assert.Equal(t, now, got.LastUpdated)

	// Both claims appear twice; the river claim rode higher-virality events.
	require.Len(t, got.TopClaims, 2)
	assert.Equal(t, domain.TopClaim{TextSpan: "river crossed the danger mark", Category: domain.ClaimEnvironmental, Count: 2}, got.TopClaims[0])
	assert.Equal(t, domain.TopClaim{TextSpan: "bridge washed away", Category: domain.ClaimEnvironmental, Count: 2}, got.TopClaims[1])
}

func TestAggregator_GetAggregate_EmptyWindow(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC))
	agg := NewAggregator(store.NewMemory(), DefaultConfig(), clock, testLogger(), newTestMetrics())

	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	got, err := agg.GetAggregate(context.Background(), "Assam", from, from.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 0, got.EventCount)
	assert.Zero(t, got.AvgVirality)
	assert.Nil(t, got.AvgReality)
	assert.Zero(t, got.Intensity)
	assert.NotNil(t, got.TopClaims)
	assert.Empty(t, got.TopClaims)
}

func TestAggregator_GetAggregate_ServesCachedUntilStale(t *testing.T) {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(base.Add(6 * time.Hour))
	ctx := context.Background()

	mem := store.NewMemory()
	seedEvent(t, mem, "social-0000000000000001", "Assam", base.Add(1*time.Hour), 0.5, nil)
	counting := &countingStore{Store: mem}

	agg := NewAggregator(counting, DefaultConfig(), clock, testLogger(), newTestMetrics())
	from, to := base, base.Add(6*time.Hour)

	first, err := agg.GetAggregate(ctx, "Assam", from, to)
	require.NoError(t, err)
	assert.Equal(t, 1, first.EventCount)
	assert.EqualValues(t, 1, counting.scans.Load())

	// Within the freshness window the cache answers, even though the store
	// has since gained an event.
	seedEvent(t, mem, "social-0000000000000002", "Assam", base.Add(2*time.Hour), 0.5, nil)
	clock.Advance(30 * time.Second)

	second, err := agg.GetAggregate(ctx, "Assam", from, to)
	require.NoError(t, err)
	assert.Equal(t, 1, second.EventCount)
	assert.EqualValues(t, 1, counting.scans.Load())

	// Past the freshness window the aggregate is recomputed and the new
	// event becomes visible.
	clock.Advance(31 * time.Second)

	third, err := agg.GetAggregate(ctx, "Assam", from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, third.EventCount)
	assert.EqualValues(t, 2, counting.scans.Load())
}

func TestAggregator_GetAggregate_WindowsCacheIndependently(t *testing.T) {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(base.Add(6 * time.Hour))
	ctx := context.Background()

	mem := store.NewMemory()
	seedEvent(t, mem, "social-0000000000000001", "Assam", base.Add(1*time.Hour), 0.5, nil)
	seedEvent(t, mem, "social-0000000000000002", "Kerala", base.Add(1*time.Hour), 0.5, nil)
	counting := &countingStore{Store: mem}

	agg := NewAggregator(counting, DefaultConfig(), clock, testLogger(), newTestMetrics())

	_, err := agg.GetAggregate(ctx, "Assam", base, base.Add(6*time.Hour))
	require.NoError(t, err)
	_, err = agg.GetAggregate(ctx, "Kerala", base, base.Add(6*time.Hour))
	require.NoError(t, err)
	_, err = agg.GetAggregate(ctx, "Assam", base, base.Add(3*time.Hour))
	require.NoError(t, err)

	// Three distinct (region, window) keys, three scans.
	assert.EqualValues(t, 3, counting.scans.Load())

	_, err = agg.GetAggregate(ctx, "Assam", base, base.Add(6*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 3, counting.scans.Load())
}

func TestAggregator_GetAggregate_ConcurrentCallersShareOneScan(t *testing.T) {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(base.Add(6 * time.Hour))

	mem := store.NewMemory()
	seedEvent(t, mem, "social-0000000000000001", "Assam", base.Add(1*time.Hour), 0.5, nil)
	counting := &countingStore{Store: mem}

	agg := NewAggregator(counting, DefaultConfig(), clock, testLogger(), newTestMetrics())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := agg.GetAggregate(context.Background(), "Assam", base, base.Add(6*time.Hour))
			assert.NoError(t, err)
			assert.Equal(t, 1, got.EventCount)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, counting.scans.Load())
}

func TestAggregator_GetAggregate_ScanErrorPropagates(t *testing.T) {
	boom := errors.New("store offline")
	agg := NewAggregator(&failingStore{err: boom}, DefaultConfig(), clockwork.NewFakeClock(), testLogger(), newTestMetrics())

	_, err := agg.GetAggregate(context.Background(), "Assam", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, boom)
}

func TestAggregator_GetAggregate_CallerCannotMutateCache(t *testing.T) {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(base.Add(6 * time.Hour))
	ctx := context.Background()

	mem := store.NewMemory()
	seedEvent(t, mem, "social-0000000000000001", "Assam", base.Add(1*time.Hour), 0.5, nil,
		domain.Claim{TextSpan: "river crossed the danger mark", Category: domain.ClaimEnvironmental})

	agg := NewAggregator(mem, DefaultConfig(), clock, testLogger(), newTestMetrics())

	first, err := agg.GetAggregate(ctx, "Assam", base, base.Add(6*time.Hour))
	require.NoError(t, err)
	require.Len(t, first.TopClaims, 1)
	first.TopClaims[0].TextSpan = "corrupted"

	second, err := agg.GetAggregate(ctx, "Assam", base, base.Add(6*time.Hour))
	require.NoError(t, err)
	require.Len(t, second.TopClaims, 1)
	assert.Equal(t, "river crossed the danger mark", second.TopClaims[0].TextSpan)
}

func TestTopClaims_Ordering(t *testing.T) {
	ts := func(h int) time.Time { return time.Date(2026, 7, 1, h, 0, 0, 0, time.UTC) }

	stats := map[string]*claimStat{
		"frequent":   {span: "frequent", category: domain.ClaimOther, count: 3, maxVirality: 0.1, latest: ts(1)},
		"viral":      {span: "viral", category: domain.ClaimOther, count: 2, maxVirality: 0.9, latest: ts(1)},
		"quiet":      {span: "quiet", category: domain.ClaimOther, count: 2, maxVirality: 0.2, latest: ts(5)},
		"recent":     {span: "recent", category: domain.ClaimOther, count: 2, maxVirality: 0.2, latest: ts(4)},
		"alphabet a": {span: "alphabet a", category: domain.ClaimOther, count: 1, maxVirality: 0.5, latest: ts(2)},
		"alphabet b": {span: "alphabet b", category: domain.ClaimOther, count: 1, maxVirality: 0.5, latest: ts(2)},
	}

	got := topClaims(stats, 5)

	spans := make([]string, 0, len(got))
	for _, c := range got {
		spans = append(spans, c.TextSpan)
	}
	// count desc, then max virality desc, then recency desc, then span asc;
	// the limit cuts "alphabet b".
	assert.Equal(t, []string{"frequent", "viral", "quiet", "recent", "alphabet a"}, spans)
}

func TestAggregator_Intensity(t *testing.T) {
	agg := NewAggregator(store.NewMemory(), DefaultConfig(), clockwork.NewFakeClock(), testLogger(), newTestMetrics())

	tests := []struct {
		name        string
		count       int
		avgVirality float64
		want        float64
	}{
		{name: "empty window is cold", count: 0, avgVirality: 0.9, want: 0},
		{name: "volume at pivot", count: 25, avgVirality: 0, want: 0.3},
		{name: "pivot with virality", count: 25, avgVirality: 0.5, want: 0.5},
		{name: "large volume saturates", count: 100000, avgVirality: 1, want: 0.99985},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, agg.intensity(tc.count, tc.avgVirality), 1e-3)
		})
	}
}

func TestAggregator_Intensity_ClampsHeavyWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VolumeWeight = 2
	cfg.ViralityWeight = 2
	agg := NewAggregator(store.NewMemory(), cfg, clockwork.NewFakeClock(), testLogger(), newTestMetrics())

	assert.Equal(t, 1.0, agg.intensity(1000, 0.9))
}
