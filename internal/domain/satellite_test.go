package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSatelliteResultValidate(t *testing.T) {
	valid := SatelliteResult{
		Similarity:        0.82,
		Anomaly:           false,
		RealityScore:      0.74,
		Confidence:        0.9,
		BaselineReference: "baseline-26.10-91.70-2026-03",
	}

	t.Run("accepts in-range result", func(t *testing.T) {
		assert.NoError(t, valid.Validate(0.5))
	})

	t.Run("accepts anomaly at the ceiling", func(t *testing.T) {
		r := valid
		r.Anomaly = true
		r.Similarity = 0.2
		r.RealityScore = 0.5
		assert.NoError(t, r.Validate(0.5))
	})

	tests := []struct {
		name   string
		mutate func(*SatelliteResult)
	}{
		{"similarity below zero", func(r *SatelliteResult) { r.Similarity = -0.01 }},
		{"similarity above one", func(r *SatelliteResult) { r.Similarity = 1.2 }},
		{"reality below zero", func(r *SatelliteResult) { r.RealityScore = -1 }},
		{"reality above one", func(r *SatelliteResult) { r.RealityScore = 1.01 }},
		{"confidence above one", func(r *SatelliteResult) { r.Confidence = 2 }},
		{"anomalous yet highly real", func(r *SatelliteResult) { r.Anomaly = true; r.RealityScore = 0.51 }},
	}
	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			assert.Error(t, r.Validate(0.5))
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	verr := &ValidationError{}
	verr.Add("text", "empty after canonicalization").Add("source", `unknown source "fax"`)
	assert.Equal(t, `invalid raw item: text: empty after canonicalization; source: unknown source "fax"`, verr.Error())
	assert.True(t, verr.Has("text"))
	assert.False(t, verr.Has("coordinates"))
}
