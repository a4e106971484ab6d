// Package config loads all service settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	WorkerCount int
	EventBudget time.Duration

	// Coverage area for ingested coordinates. Defaults box the Indian
	// subcontinent.
	GeoMinLat float64
	GeoMaxLat float64
	GeoMinLon float64
	GeoMaxLon float64

	// Optional YAML file overriding the built-in region lexicon.
	RegionsFile string

	// NLP annotation model configuration.
	NLPMode    string // "lexicon" or "remote"
	NLPURL     string
	NLPTimeout time.Duration

	// Satellite observation backend configuration.
	SatelliteMode         string // "stub" or "remote"
	SatelliteURL          string
	SatelliteRPS          float64
	SatelliteAnomalyShare float64
	AnomalyThreshold      float64
	RealityCeiling        float64

	// Baseline observation cache.
	BaselineCacheMode string // "memory" or "redis"
	BaselineCacheSize int
	BaselineCacheTTL  time.Duration
	RedisURL          string

	// Event store.
	StoreMode   string // "memory" or "postgres"
	PostgresDSN string

	// Virality scoring weights and recency half-life.
	ViralitySourceWeight     float64
	ViralityEscalationWeight float64
	ViralityRecencyWeight    float64
	ViralityHalfLife         time.Duration

	// Aggregate cache freshness and top-claims bound.
	AggFreshness     time.Duration
	AggTopClaimLimit int
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	cfg := &Config{
		KafkaBrokers:     parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic: envOrDefault("KAFKA_SOURCE_TOPIC", "raw-events"),
		KafkaSinkTopic:   envOrDefault("KAFKA_SINK_TOPIC", "processed-events"),
		KafkaGroupID:     envOrDefault("KAFKA_GROUP_ID", "event-intel"),
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "json"),

		RegionsFile: os.Getenv("REGIONS_FILE"),

		NLPMode: envOrDefault("NLP_MODE", "lexicon"),
		NLPURL:  os.Getenv("NLP_URL"),

		SatelliteMode: envOrDefault("SATELLITE_MODE", "stub"),
		SatelliteURL:  os.Getenv("SATELLITE_URL"),

		BaselineCacheMode: envOrDefault("BASELINE_CACHE", "memory"),
		RedisURL:          os.Getenv("REDIS_URL"),

		StoreMode:   envOrDefault("STORE", "memory"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
	}

	var err error
	if cfg.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.WorkerCount, err = parseInt("WORKER_COUNT", 4, 1, 64); err != nil {
		return nil, err
	}
	if cfg.EventBudget, err = parseDuration("EVENT_BUDGET", "30s"); err != nil {
		return nil, err
	}
	if cfg.GeoMinLat, err = parseFloat("GEO_MIN_LAT", 6.0); err != nil {
		return nil, err
	}
	if cfg.GeoMaxLat, err = parseFloat("GEO_MAX_LAT", 36.0); err != nil {
		return nil, err
	}
	if cfg.GeoMinLon, err = parseFloat("GEO_MIN_LON", 68.0); err != nil {
		return nil, err
	}
	if cfg.GeoMaxLon, err = parseFloat("GEO_MAX_LON", 98.0); err != nil {
		return nil, err
	}
	if cfg.NLPTimeout, err = parseDuration("NLP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.SatelliteRPS, err = parseFloat("SATELLITE_RPS", 5.0); err != nil {
		return nil, err
	}
	if cfg.SatelliteAnomalyShare, err = parseFloat("SATELLITE_ANOMALY_SHARE", 0.15); err != nil {
		return nil, err
	}
	if cfg.AnomalyThreshold, err = parseFloat("ANOMALY_THRESHOLD", 0.3); err != nil {
		return nil, err
	}
	if cfg.RealityCeiling, err = parseFloat("REALITY_CEILING", 0.5); err != nil {
		return nil, err
	}
	if cfg.BaselineCacheSize, err = parseInt("BASELINE_CACHE_SIZE", 1000, 1, 1_000_000); err != nil {
		return nil, err
	}
	if cfg.BaselineCacheTTL, err = parseDuration("BASELINE_CACHE_TTL", "1h"); err != nil {
		return nil, err
	}
	if cfg.ViralitySourceWeight, err = parseFloat("VIRALITY_SOURCE_WEIGHT", 0.35); err != nil {
		return nil, err
	}
	if cfg.ViralityEscalationWeight, err = parseFloat("VIRALITY_ESCALATION_WEIGHT", 0.35); err != nil {
		return nil, err
	}
	if cfg.ViralityRecencyWeight, err = parseFloat("VIRALITY_RECENCY_WEIGHT", 0.30); err != nil {
		return nil, err
	}
	if cfg.ViralityHalfLife, err = parseDuration("VIRALITY_HALF_LIFE", "24h"); err != nil {
		return nil, err
	}
	if cfg.AggFreshness, err = parseDuration("AGG_FRESHNESS", "1m"); err != nil {
		return nil, err
	}
	if cfg.AggTopClaimLimit, err = parseInt("AGG_TOP_CLAIMS", 5, 1, 100); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.KafkaSourceTopic == "" {
		return errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if c.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required")
	}
	if c.GeoMinLat >= c.GeoMaxLat {
		return errors.New("GEO_MIN_LAT must be below GEO_MAX_LAT")
	}
	if c.GeoMinLon >= c.GeoMaxLon {
		return errors.New("GEO_MIN_LON must be below GEO_MAX_LON")
	}

	switch c.NLPMode {
	case "lexicon":
	case "remote":
		if c.NLPURL == "" {
			return errors.New("NLP_MODE is remote but NLP_URL is not set")
		}
	default:
		return fmt.Errorf("invalid NLP_MODE %q (want lexicon or remote)", c.NLPMode)
	}

	switch c.SatelliteMode {
	case "stub":
	case "remote":
		if c.SatelliteURL == "" {
			return errors.New("SATELLITE_MODE is remote but SATELLITE_URL is not set")
		}
	default:
		return fmt.Errorf("invalid SATELLITE_MODE %q (want stub or remote)", c.SatelliteMode)
	}

	switch c.BaselineCacheMode {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return errors.New("BASELINE_CACHE is redis but REDIS_URL is not set")
		}
	default:
		return fmt.Errorf("invalid BASELINE_CACHE %q (want memory or redis)", c.BaselineCacheMode)
	}

	switch c.StoreMode {
	case "memory":
	case "postgres":
		if c.PostgresDSN == "" {
			return errors.New("STORE is postgres but POSTGRES_DSN is not set")
		}
	default:
		return fmt.Errorf("invalid STORE %q (want memory or postgres)", c.StoreMode)
	}

	if c.SatelliteAnomalyShare < 0 || c.SatelliteAnomalyShare > 1 {
		return errors.New("SATELLITE_ANOMALY_SHARE must be in [0, 1]")
	}
	if c.AnomalyThreshold < 0 || c.AnomalyThreshold > 1 {
		return errors.New("ANOMALY_THRESHOLD must be in [0, 1]")
	}
	if c.RealityCeiling < 0 || c.RealityCeiling > 1 {
		return errors.New("REALITY_CEILING must be in [0, 1]")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: want a positive duration", key)
	}
	return d, nil
}

func parseInt(key string, fallback, min, max int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("invalid %s: want an integer in [%d, %d]", key, min, max)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: want a number", key)
	}
	return f, nil
}
