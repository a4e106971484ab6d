// Package satellite validates event claims against ground truth: a current
// signal observation is compared with a historical baseline at the claimed
// location, yielding similarity, anomaly, reality, and confidence scores.
//
// Comparisons run on a quantized grid (0.25°): nearby claims share a cell, so
// caches and the stub backend stay stable under small coordinate jitter.
package satellite

import (
	"context"
	"fmt"
	"math"
	"time"
)

// cellSize is the comparison grid pitch in degrees.
const cellSize = 0.25

// Observation is one signal sample for a grid cell: a normalized band/index
// vector plus capture metadata. CloudCover in [0,1] reduces confidence.
type Observation struct {
	Vector     []float64 `json:"vector"`
	CapturedAt time.Time `json:"captured_at"`
	CloudCover float64   `json:"cloud_cover"`
	Reference  string    `json:"reference"`
}

// Backend retrieves satellite signal for a location. Current is the
// acquisition nearest the given date; Baseline is the historical composite
// for the same cell at a comparable prior period.
type Backend interface {
	Current(ctx context.Context, lat, lon float64, date time.Time) (Observation, error)
	Baseline(ctx context.Context, lat, lon float64, date time.Time) (Observation, error)
}

// CellKey quantizes coordinates to the comparison grid.
func CellKey(lat, lon float64) string {
	return fmt.Sprintf("%.2f:%.2f", quantize(lat), quantize(lon))
}

func quantize(v float64) float64 {
	return math.Round(v/cellSize) * cellSize
}
