// Package domain models short-text geo event reports and their enriched,
// validated form.
//
// # Data Flow
//
// Raw items arrive as flat JSON from three channels (news scrapers, social
// firehose consumers, manual analyst entry) over HTTP or the Kafka source
// topic. Normalization canonicalizes the text, checks timestamps and
// coordinates, and assigns a deterministic event id. Enrichment adds extracted
// claims and entities, a virality score, and (when a claim names a verifiable
// place) a satellite ground-truth comparison. The result is an immutable
// [ProcessedEvent]; raw items are never persisted.
//
// # Canonical Text
//
// Deduplication operates on canonical text, produced by [CanonicalizeText]:
//
//	- invalid UTF-8 sequences dropped
//	- non-whitespace control characters dropped
//	- whitespace runs collapsed to a single space, ends trimmed
//
// Case is preserved: "BREAKING" and "breaking" carry different virality
// signal, so they stay distinct for scoring even though this permits
// near-duplicate events.
//
// # ID Generation
//
// Event IDs are deterministic SHA-256 hashes of source|text|minute, where
// minute is observed_at truncated to the minute in UTC. The same report
// submitted twice (retries, at-least-once delivery, replays) collapses to one
// id, which enables idempotent upserts downstream (ON CONFLICT DO NOTHING)
// without distributed coordination. The source name prefixes the hash so ids
// are skimmable in logs: "social-9f2c81d04e7a33b6". See [ComputeEventID].
//
// # Scores
//
// All scores lie in [0,1]:
//
//	virality:   propensity to spread, from source weight, escalation
//	            language, and recency. Not a truth measure.
//	similarity: cosine-style agreement between current satellite signal and
//	            the historical baseline at the claimed location.
//	reality:    calibrated belief that the claimed ground situation is
//	            consistent with observation. Anomalous results are capped;
//	            see [SatelliteResult.Validate].
//	confidence: how much the validator trusts its own reality estimate,
//	            reduced by stale baselines and degraded lookups.
//
// # Timestamps
//
// observed_at is caller-supplied wall time of the underlying observation and
// is part of the identity hash. processed_at is assigned once at assembly and
// never rewritten; re-submitting an already-stored event returns the stored
// record byte for byte.
package domain
