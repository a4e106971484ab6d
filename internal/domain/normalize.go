package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	// DefaultMaxTextLen is the character cap applied to canonical text when
	// the Normalizer does not configure its own.
	DefaultMaxTextLen = 2000
	// DefaultMaxSkew is how far into the future observed_at may run before
	// the item is rejected as implausible.
	DefaultMaxSkew = 5 * time.Minute
)

// rawItemWire mirrors RawItem with observed_at as a string so a bad timestamp
// surfaces as a field-level validation error instead of a decode error.
type rawItemWire struct {
	Source     string   `json:"source"`
	Text       string   `json:"text"`
	ObservedAt string   `json:"observed_at"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	Language   string   `json:"language"`
}

// ParseRawItem decodes an ingestion payload from JSON. All failures come back
// as *ValidationError so transports can report them uniformly.
func ParseRawItem(data []byte) (RawItem, error) {
	var w rawItemWire
	if err := json.Unmarshal(data, &w); err != nil {
		verr := &ValidationError{}
		return RawItem{}, verr.Add("body", "malformed json")
	}
	verr := &ValidationError{}
	var observed time.Time
	switch {
	case w.ObservedAt == "":
		verr.Add("observed_at", "required")
	default:
		t, err := time.Parse(time.RFC3339, w.ObservedAt)
		if err != nil {
			verr.Add("observed_at", "not an RFC 3339 timestamp")
		} else {
			observed = t
		}
	}
	if len(verr.Fields) > 0 {
		return RawItem{}, verr
	}
	return RawItem{
		Source:     Source(w.Source),
		Text:       w.Text,
		ObservedAt: observed,
		Lat:        w.Lat,
		Lon:        w.Lon,
		Language:   w.Language,
	}, nil
}

// CanonicalizeText trims the text, collapses runs of whitespace to single
// spaces, and drops invalid UTF-8 and non-whitespace control characters.
// Deduplication keys are computed over this canonical form.
func CanonicalizeText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// ComputeEventID derives the deterministic deduplication id for an event.
// Identical (source, canonical text) pairs observed within the same minute
// share an id; the source name prefixes the hash for log readability.
func ComputeEventID(source Source, canonicalText string, observedAt time.Time) string {
	bucket := observedAt.UTC().Truncate(time.Minute).Format(time.RFC3339)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", source, canonicalText, bucket)))
	return string(source) + "-" + hex.EncodeToString(sum[:8])
}

// Normalizer validates raw items against the configured coverage area and
// produces canonical NormalizedEvents. The zero value uses the default text
// cap and future skew but accepts no coordinates; set Bounds for geo intake.
type Normalizer struct {
	Bounds     GeoBounds
	MaxSkew    time.Duration
	MaxTextLen int
}

// Normalize validates and canonicalizes one raw item. Every failed field is
// reported; a returned event always carries a stable EventID, UTC timestamps,
// and canonical text.
func (n Normalizer) Normalize(item RawItem) (NormalizedEvent, error) {
	verr := &ValidationError{}
	if !item.Source.Valid() {
		verr.Add("source", fmt.Sprintf("unknown source %q", item.Source))
	}
	text := CanonicalizeText(item.Text)
	if text == "" {
		verr.Add("text", "empty after canonicalization")
	} else if max := n.maxTextLen(); len([]rune(text)) > max {
		verr.Add("text", fmt.Sprintf("longer than %d characters", max))
	}
	if item.ObservedAt.IsZero() {
		verr.Add("observed_at", "required")
	} else if item.ObservedAt.After(clock.Now().Add(n.maxSkew())) {
		verr.Add("observed_at", "in the future")
	}
	var lat, lon *float64
	switch {
	case (item.Lat == nil) != (item.Lon == nil):
		verr.Add("coordinates", "lat and lon must be provided together")
	case item.Lat != nil:
		if !n.Bounds.Contains(*item.Lat, *item.Lon) {
			verr.Add("coordinates", fmt.Sprintf("(%.4f, %.4f) outside coverage area", *item.Lat, *item.Lon))
		} else {
			la, lo := *item.Lat, *item.Lon
			lat, lon = &la, &lo
		}
	}
	if len(verr.Fields) > 0 {
		return NormalizedEvent{}, verr
	}
	return NormalizedEvent{
		EventID:      ComputeEventID(item.Source, text, item.ObservedAt),
		Source:       item.Source,
		Text:         text,
		ObservedAt:   item.ObservedAt.UTC(),
		Lat:          lat,
		Lon:          lon,
		LanguageHint: languageHint(item.Language),
	}, nil
}

func (n Normalizer) maxTextLen() int {
	if n.MaxTextLen > 0 {
		return n.MaxTextLen
	}
	return DefaultMaxTextLen
}

func (n Normalizer) maxSkew() time.Duration {
	if n.MaxSkew > 0 {
		return n.MaxSkew
	}
	return DefaultMaxSkew
}

// languageHint keeps only plausible ISO 639-1 codes; anything else is dropped
// so the language detector decides on its own.
func languageHint(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return ""
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return s
}
