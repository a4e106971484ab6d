package domain

import "time"

// TopClaim is one entry in a region's most-frequent-claims list.
type TopClaim struct {
	TextSpan string        `json:"text_span"`
	Category ClaimCategory `json:"category"`
	Count    int           `json:"count"`
}

// RegionAggregate is the heatmap summary for one region over a time window.
// It is a cache, never authoritative: always reconstructible from the stored
// events in its window. Intensity lies in [0,1] and combines event volume
// with average virality. AvgReality is nil when no event in the window
// carried a satellite result. AnomalyCount tallies events whose validation
// flagged an anomaly.
type RegionAggregate struct {
	Region                  string     `json:"region"`
	WindowStart             time.Time  `json:"window_start"`
	WindowEnd               time.Time  `json:"window_end"`
	EventCount              int        `json:"event_count"`
	AvgVirality             float64    `json:"avg_virality"`
	AvgReality              *float64   `json:"avg_reality,omitempty"`
	SatelliteValidatedCount int        `json:"satellite_validated_count"`
	AnomalyCount            int        `json:"anomaly_count"`
	Intensity               float64    `json:"intensity"`
	TopClaims               []TopClaim `json:"top_claims"`
	LastUpdated             time.Time  `json:"last_updated"`
}
