// Package score computes virality scores for normalized events. Scoring is
// pure: the same event and reference time always produce the same score, which
// keeps replays and idempotent reprocessing byte-stable.
package score

import (
	"math"
	"strings"
	"time"

	"github.com/veritymap/event-intel/internal/domain"
)

// sourceWeight ranks channels by propensity to spread. Social posts propagate
// fastest, wire news slower, manual analyst entries barely at all. Unknown
// sources score neutral.
var sourceWeight = map[domain.Source]float64{
	domain.SourceSocial: 0.9,
	domain.SourceNews:   0.6,
	domain.SourceManual: 0.3,
}

const neutralSourceWeight = 0.5

// escalationTerms is the urgency vocabulary. Matching is per lowercased token.
var escalationTerms = map[string]struct{}{
	"breaking": {}, "urgent": {}, "emergency": {}, "massive": {}, "deadly": {},
	"catastrophic": {}, "devastating": {}, "evacuate": {}, "evacuation": {},
	"alert": {}, "warning": {}, "disaster": {}, "horrific": {}, "shocking": {},
	"unprecedented": {}, "crisis": {}, "chaos": {}, "panic": {},
}

// Weights tunes the virality blend. Weights are normalized to sum to one at
// construction, so callers only control the ratio.
type Weights struct {
	Source     float64
	Escalation float64
	Recency    float64
	HalfLife   time.Duration
}

// DefaultWeights returns the production blend.
func DefaultWeights() Weights {
	return Weights{
		Source:     0.35,
		Escalation: 0.35,
		Recency:    0.30,
		HalfLife:   24 * time.Hour,
	}
}

// Scorer computes virality scores for events.
type Scorer struct {
	w Weights
}

// NewScorer builds a scorer, normalizing the weights and defaulting the
// half-life to 24h when unset.
func NewScorer(w Weights) *Scorer {
	sum := w.Source + w.Escalation + w.Recency
	if sum <= 0 {
		w = DefaultWeights()
		sum = w.Source + w.Escalation + w.Recency
	}
	w.Source /= sum
	w.Escalation /= sum
	w.Recency /= sum
	if w.HalfLife <= 0 {
		w.HalfLife = DefaultWeights().HalfLife
	}
	return &Scorer{w: w}
}

// Score rates one event in [0,1]. now anchors the recency decay; callers pass
// assembly time so stored scores never shift after the fact.
func (s *Scorer) Score(ev domain.NormalizedEvent, now time.Time) float64 {
	src, ok := sourceWeight[ev.Source]
	if !ok {
		src = neutralSourceWeight
	}
	total := s.w.Source*src +
		s.w.Escalation*escalationSignal(ev.Text) +
		s.w.Recency*recencySignal(ev.ObservedAt, now, s.w.HalfLife)
	return clamp01(total)
}

// escalationSignal measures urgency language density: escalation vocabulary
// counts full, shouted words and exclamation marks count half. Saturates well
// before an all-caps rant reaches the cap.
func escalationSignal(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	var hits float64
	for _, w := range words {
		trimmed := strings.Trim(w, ".,;:!?\"'()[]#")
		if trimmed == "" {
			continue
		}
		if _, ok := escalationTerms[strings.ToLower(trimmed)]; ok {
			hits++
		} else if isShouted(trimmed) {
			hits += 0.5
		}
	}
	hits += 0.5 * float64(strings.Count(text, "!"))
	return clamp01(hits / float64(len(words)) * 5)
}

// isShouted reports all-caps words of three letters or more. Short acronyms
// like "US" or "km" markers stay out.
func isShouted(w string) bool {
	letters := 0
	for _, r := range w {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			letters++
		}
	}
	return letters >= 3
}

// recencySignal decays exponentially with the event's age: 1.0 at the moment
// of observation, halved every half-life. Clock skew into the future clamps
// to 1.
func recencySignal(observedAt, now time.Time, halfLife time.Duration) float64 {
	age := now.Sub(observedAt)
	if age <= 0 {
		return 1
	}
	return math.Exp2(-float64(age) / float64(halfLife))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
