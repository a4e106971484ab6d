package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/veritymap/event-intel/internal/adapter/httpadapter"
	kafkaadapter "github.com/veritymap/event-intel/internal/adapter/kafka"
	"github.com/veritymap/event-intel/internal/config"
	"github.com/veritymap/event-intel/internal/domain"
	"github.com/veritymap/event-intel/internal/nlp"
	"github.com/veritymap/event-intel/internal/observability"
	"github.com/veritymap/event-intel/internal/pipeline"
	"github.com/veritymap/event-intel/internal/satellite"
	"github.com/veritymap/event-intel/internal/score"
	"github.com/veritymap/event-intel/internal/store"
	"github.com/veritymap/event-intel/internal/store/postgres"
)

// backendMaxRetries is how many times remote backend calls are retried before
// a stage falls back to degraded output.
const backendMaxRetries = 3

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Region lexicon, shared by the extractor and the validator.
	regionList := nlp.DefaultRegions()
	if cfg.RegionsFile != "" {
		if regionList, err = nlp.LoadRegions(cfg.RegionsFile); err != nil {
			logger.Error("failed to load regions file", "path", cfg.RegionsFile, "error", err)
			os.Exit(1)
		}
		logger.Info("region lexicon loaded", "path", cfg.RegionsFile, "regions", len(regionList))
	}
	regions, err := nlp.NewRegionIndex(regionList, 0)
	if err != nil {
		logger.Error("failed to build region index", "error", err)
		os.Exit(1)
	}

	// Annotation model (NLP_MODE): nil model means the lexicon serves everything.
	var model nlp.Model
	if cfg.NLPMode == "remote" {
		model = nlp.NewRemoteModel(cfg.NLPURL, cfg.NLPTimeout, backendMaxRetries, logger)
		logger.Info("remote annotation model enabled", "url", cfg.NLPURL, "timeout", cfg.NLPTimeout)
	} else {
		logger.Info("lexicon annotation active")
	}
	extractor := nlp.NewExtractor(model, regions, cfg.NLPTimeout, logger)

	// Satellite backend (SATELLITE_MODE).
	var backend satellite.Backend
	if cfg.SatelliteMode == "remote" {
		backend = satellite.NewRemoteBackend(cfg.SatelliteURL, satellite.DefaultConfig().LookupTimeout, cfg.SatelliteRPS, backendMaxRetries, logger)
		logger.Info("remote satellite backend enabled", "url", cfg.SatelliteURL, "rps", cfg.SatelliteRPS)
	} else {
		backend = satellite.NewStubBackend(cfg.SatelliteAnomalyShare)
		logger.Info("stub satellite backend active", "anomaly_share", cfg.SatelliteAnomalyShare)
	}

	// Baseline observation cache (BASELINE_CACHE).
	var cache satellite.BaselineCache
	var redisCache *satellite.RedisCache
	if cfg.BaselineCacheMode == "redis" {
		if redisCache, err = satellite.NewRedisCache(ctx, cfg.RedisURL, cfg.BaselineCacheTTL); err != nil {
			logger.Error("failed to connect to redis baseline cache", "error", err)
			os.Exit(1)
		}
		cache = redisCache
		logger.Info("redis baseline cache connected", "ttl", cfg.BaselineCacheTTL)
	} else {
		cache = satellite.NewMemoryCache(cfg.BaselineCacheSize, cfg.BaselineCacheTTL, nil)
	}

	validator := satellite.NewValidator(backend, cache, regions, satellite.Config{
		AnomalyThreshold: cfg.AnomalyThreshold,
		RealityCeiling:   cfg.RealityCeiling,
	}, logger)

	// Event store (STORE).
	var st store.Store
	var pgStore *postgres.Store
	if cfg.StoreMode == "postgres" {
		if pgStore, err = postgres.Open(ctx, cfg.PostgresDSN); err != nil {
			logger.Error("failed to open postgres store", "error", err)
			os.Exit(1)
		}
		st = pgStore
		logger.Info("postgres store connected")
	} else {
		st = store.NewMemory()
		logger.Warn("in-memory store active, records do not survive restarts")
	}

	scorer := score.NewScorer(score.Weights{
		Source:     cfg.ViralitySourceWeight,
		Escalation: cfg.ViralityEscalationWeight,
		Recency:    cfg.ViralityRecencyWeight,
		HalfLife:   cfg.ViralityHalfLife,
	})

	assembler := pipeline.NewAssembler(extractor, scorer, validator, st, pipeline.Config{
		Budget:         cfg.EventBudget,
		RealityCeiling: cfg.RealityCeiling,
	}, logger, metrics)

	normalizer := domain.Normalizer{
		Bounds: domain.GeoBounds{
			MinLat: cfg.GeoMinLat,
			MaxLat: cfg.GeoMaxLat,
			MinLon: cfg.GeoMinLon,
			MaxLon: cfg.GeoMaxLon,
		},
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	runner := pipeline.NewRunner(reader, normalizer, assembler, writer, logger, metrics, cfg.WorkerCount)

	srv := httpadapter.NewServer(cfg.HTTPAddr, runner, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the intake pipeline.
	go func() {
		if err := runner.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if pgStore != nil {
		if err := pgStore.Close(); err != nil {
			logger.Error("postgres close error", "error", err)
		}
	}
	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
