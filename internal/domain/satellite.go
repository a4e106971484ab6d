package domain

import "fmt"

// SatelliteResult is the ground-truth comparison for one event, derived from
// a current signal and a historical baseline at the claimed location.
//
// Similarity, RealityScore, and Confidence all lie in [0,1]. Anomaly is set
// when similarity falls under the configured anomaly threshold, and an
// anomalous result must keep RealityScore at or under the configured ceiling:
// "anomalous but highly real" is contradictory and rejected by Validate.
type SatelliteResult struct {
	Similarity        float64           `json:"similarity"`
	Anomaly           bool              `json:"anomaly"`
	RealityScore      float64           `json:"reality_score"`
	Confidence        float64           `json:"confidence"`
	BaselineReference string            `json:"baseline_reference"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Validate checks score ranges and the anomaly/reality cross-field invariant.
// realityCeiling is the configured maximum reality score an anomalous result
// may carry.
func (r SatelliteResult) Validate(realityCeiling float64) error {
	if r.Similarity < 0 || r.Similarity > 1 {
		return fmt.Errorf("satellite similarity %v out of [0,1]", r.Similarity)
	}
	if r.RealityScore < 0 || r.RealityScore > 1 {
		return fmt.Errorf("satellite reality score %v out of [0,1]", r.RealityScore)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("satellite confidence %v out of [0,1]", r.Confidence)
	}
	if r.Anomaly && r.RealityScore > realityCeiling {
		return fmt.Errorf("anomalous result with reality score %v above ceiling %v", r.RealityScore, realityCeiling)
	}
	return nil
}

// ValidationStatus is the per-claim outcome of the ground-truth validator.
// Degradation and skipping are ordinary outcomes, not errors: the assembler
// pattern-matches on the status instead of unwinding.
type ValidationStatus string

const (
	// ValidationSucceeded: the backend lookup completed and produced a result.
	ValidationSucceeded ValidationStatus = "succeeded"
	// ValidationDegraded: the backend was unavailable and a cached baseline
	// stood in; the result carries reduced confidence.
	ValidationDegraded ValidationStatus = "degraded"
	// ValidationSkipped: the claim had no resolvable location, or no usable
	// cached baseline existed after backend failure. No result.
	ValidationSkipped ValidationStatus = "skipped"
)

// ClaimValidation pairs a claim with its ground-truth outcome. Result is nil
// unless Status is Succeeded or Degraded.
type ClaimValidation struct {
	Claim  Claim
	Status ValidationStatus
	Result *SatelliteResult
}
