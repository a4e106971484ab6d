package satellite

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"
)

const vectorLen = 8

// StubBackend synthesizes observations so the pipeline runs end to end
// without satellite credentials. Output is deterministic across processes:
// vectors come from a PRNG seeded by an FNV-1a hash of the quantized cell and
// time window, so identical (lat, lon, date) inputs always produce identical
// observations. A fixed share of cells presents a current signal that
// diverges from its baseline, which exercises the anomaly path.
type StubBackend struct {
	anomalyShare float64
}

// NewStubBackend builds a stub. anomalyShare in [0,1] is the fraction of grid
// cells whose current signal diverges; values outside the range are clamped.
func NewStubBackend(anomalyShare float64) *StubBackend {
	if anomalyShare < 0 {
		anomalyShare = 0
	}
	if anomalyShare > 1 {
		anomalyShare = 1
	}
	return &StubBackend{anomalyShare: anomalyShare}
}

// Baseline returns the historical composite for the cell: the same month one
// year before the requested date.
func (s *StubBackend) Baseline(_ context.Context, lat, lon float64, date time.Time) (Observation, error) {
	cell := CellKey(lat, lon)
	ref := date.UTC().AddDate(-1, 0, 0)
	month := ref.Format("2006-01")
	rng := seededRNG("baseline", cell, month)
	return Observation{
		Vector:     randomVector(rng),
		CapturedAt: time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC),
		CloudCover: 0.6 * rng.Float64(),
		Reference:  fmt.Sprintf("stub-%s-%s", cell, month),
	}, nil
}

// Current returns the acquisition for the requested day. Ordinary cells get
// the baseline vector plus small noise; anomalous cells get an inverted
// surface, which drives similarity toward zero.
func (s *StubBackend) Current(ctx context.Context, lat, lon float64, date time.Time) (Observation, error) {
	base, err := s.Baseline(ctx, lat, lon, date)
	if err != nil {
		return Observation{}, err
	}
	cell := CellKey(lat, lon)
	day := date.UTC().Format("2006-01-02")
	rng := seededRNG("current", cell, day)

	vec := make([]float64, len(base.Vector))
	if s.isAnomalous(cell) {
		for i, v := range base.Vector {
			vec[i] = clamp01(1 - v + 0.1*(rng.Float64()-0.5))
		}
	} else {
		for i, v := range base.Vector {
			vec[i] = clamp01(v + 0.08*(rng.Float64()-0.5))
		}
	}
	return Observation{
		Vector:     vec,
		CapturedAt: date.UTC().Truncate(24 * time.Hour),
		CloudCover: 0.6 * rng.Float64(),
		Reference:  fmt.Sprintf("stub-%s-%s", cell, day),
	}, nil
}

// isAnomalous hashes the cell so the anomalous subset is fixed per cell, not
// per request.
func (s *StubBackend) isAnomalous(cell string) bool {
	h := fnv.New64a()
	h.Write([]byte("anomaly|" + cell))
	return float64(h.Sum64()%1000) < s.anomalyShare*1000
}

func seededRNG(parts ...string) *rand.Rand {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'|'})
	}
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func randomVector(rng *rand.Rand) []float64 {
	vec := make([]float64, vectorLen)
	for i := range vec {
		vec[i] = rng.Float64()
	}
	return vec
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
