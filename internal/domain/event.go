package domain

import (
	"time"
)

// Source identifies the ingestion channel a raw item arrived through.
type Source string

const (
	SourceNews   Source = "news"
	SourceSocial Source = "social"
	SourceManual Source = "manual"
)

// Valid reports whether s is one of the accepted ingestion sources.
func (s Source) Valid() bool {
	switch s {
	case SourceNews, SourceSocial, SourceManual:
		return true
	}
	return false
}

// RawItem is the unvalidated ingestion payload. It is transient: the pipeline
// never persists it as-is.
type RawItem struct {
	Source     Source    `json:"source"`
	Text       string    `json:"text"`
	ObservedAt time.Time `json:"observed_at"`
	Lat        *float64  `json:"lat,omitempty"`
	Lon        *float64  `json:"lon,omitempty"`
	Language   string    `json:"language,omitempty"` // optional ISO 639-1 hint
}

// NormalizedEvent is a validated, canonicalized item ready for enrichment.
// EventID is the deduplication key: identical content submitted within the
// same minute collapses to one id.
type NormalizedEvent struct {
	EventID      string
	Source       Source
	Text         string
	ObservedAt   time.Time
	Lat          *float64
	Lon          *float64
	LanguageHint string
}

// HasCoords reports whether the event carries an explicit coordinate pair.
func (e NormalizedEvent) HasCoords() bool {
	return e.Lat != nil && e.Lon != nil
}

// ClaimCategory buckets extracted claims for downstream filtering.
type ClaimCategory string

const (
	ClaimEnvironmental ClaimCategory = "environmental"
	ClaimPolitical     ClaimCategory = "political"
	ClaimHealth        ClaimCategory = "health"
	ClaimOther         ClaimCategory = "other"
)

// Claim is a candidate factual assertion extracted from event text. It is
// owned by its parent ProcessedEvent and never referenced independently.
type Claim struct {
	TextSpan     string        `json:"text_span"`
	Category     ClaimCategory `json:"category"`
	LocationHint string        `json:"location_hint,omitempty"`
}

// Extraction is the claim & entity extractor's output for one event.
// Degraded is set when the primary model backend was unavailable and the
// lexicon fallback produced the output instead; it is a quality flag, not an
// error (the assembler persists the event either way).
type Extraction struct {
	Language string
	Claims   []Claim
	Entities []string
	Region   string // resolved administrative region, "" when unmatched
	Degraded bool
}

// ProcessedEvent is the unit of record: immutable once assembled, identified
// and deduplicated by EventID. Satellite is nil when no claim carried a
// verifiable location, or when validation failed entirely (absence is not an
// error). All score fields lie in [0,1].
type ProcessedEvent struct {
	EventID       string           `json:"event_id"`
	Source        Source           `json:"source"`
	OriginalText  string           `json:"original_text"`
	Timestamp     time.Time        `json:"timestamp"`
	Language      string           `json:"language"`
	Region        string           `json:"region,omitempty"`
	Lat           *float64         `json:"lat,omitempty"`
	Lon           *float64         `json:"lon,omitempty"`
	Entities      []string         `json:"entities"`
	ViralityScore float64          `json:"virality_score"`
	Claims        []Claim          `json:"claims"`
	Satellite     *SatelliteResult `json:"satellite,omitempty"`
	Degraded      bool             `json:"degraded,omitempty"`
	ProcessedAt   time.Time        `json:"processed_at"`
}

// GeoBounds is the system's configured coverage area. Items with coordinates
// outside the box are rejected at normalization.
type GeoBounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains reports whether the coordinate pair falls inside the box.
func (b GeoBounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}
