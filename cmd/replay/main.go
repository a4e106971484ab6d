// Command replay runs the full enrichment pipeline over newline-delimited
// JSON raw items, entirely offline: lexicon extraction, stub satellite
// validation, in-memory store. Processed events are written to stdout as
// NDJSON; per-region aggregates and counts go to stderr. With -at, the clock
// is frozen so event ids, stub observations, and scores reproduce exactly.
//
// Usage:
//
//	go run ./cmd/replay -input items.ndjson -at 2026-07-01T12:00:00Z
//	cat items.ndjson | go run ./cmd/replay -window 48h
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/veritymap/event-intel/internal/aggregate"
	"github.com/veritymap/event-intel/internal/domain"
	"github.com/veritymap/event-intel/internal/nlp"
	"github.com/veritymap/event-intel/internal/observability"
	"github.com/veritymap/event-intel/internal/pipeline"
	"github.com/veritymap/event-intel/internal/satellite"
	"github.com/veritymap/event-intel/internal/score"
	"github.com/veritymap/event-intel/internal/service"
	"github.com/veritymap/event-intel/internal/store"
)

func main() {
	input := flag.String("input", "-", "NDJSON raw items file, - for stdin")
	at := flag.String("at", "", "freeze the clock at this RFC 3339 instant for reproducible output")
	window := flag.Duration("window", 24*time.Hour, "aggregate window ending at the clock's now")
	anomalyShare := flag.Float64("anomaly-share", 0.15, "share of grid cells the stub backend treats as anomalous")
	flag.Parse()

	if err := run(*input, *at, *window, *anomalyShare); err != nil {
		log.Fatal(err)
	}
}

func run(input, at string, window time.Duration, anomalyShare float64) error {
	if at != "" {
		frozen, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("invalid -at: %w", err)
		}
		domain.SetClock(clockwork.NewFakeClockAt(frozen))
		defer domain.SetClock(nil)
	}

	in := os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	// Stderr carries only warnings and the final summary; stdout stays pure
	// NDJSON.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	metrics := observability.NewMetrics()

	regions, err := nlp.NewRegionIndex(nlp.DefaultRegions(), 0)
	if err != nil {
		return fmt.Errorf("build region index: %w", err)
	}

	extractor := nlp.NewExtractor(nil, regions, 0, logger)
	scorer := score.NewScorer(score.DefaultWeights())
	validator := satellite.NewValidator(
		satellite.NewStubBackend(anomalyShare),
		satellite.NewMemoryCache(1000, time.Hour, nil),
		regions,
		satellite.DefaultConfig(),
		logger,
	)

	st := store.NewMemory()
	assembler := pipeline.NewAssembler(extractor, scorer, validator, st,
		pipeline.DefaultConfig(), logger, metrics)
	aggregator := aggregate.NewAggregator(st, aggregate.DefaultConfig(), nil, logger, metrics)

	normalizer := domain.Normalizer{
		Bounds: domain.GeoBounds{MinLat: 6, MaxLat: 36, MinLon: 68, MaxLon: 98},
	}
	svc := service.New(normalizer, assembler, st, aggregator, logger)

	ctx := context.Background()
	out := json.NewEncoder(os.Stdout)

	var processed, rejected int
	seenRegions := map[string]struct{}{}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		item, err := domain.ParseRawItem(data)
		if err != nil {
			log.Printf("line %d rejected: %v", line, err)
			rejected++
			continue
		}
		record, err := svc.Submit(ctx, item)
		if err != nil {
			log.Printf("line %d rejected: %v", line, err)
			rejected++
			continue
		}
		processed++
		if record.Region != "" {
			seenRegions[record.Region] = struct{}{}
		}
		if err := out.Encode(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	log.Printf("processed=%d rejected=%d stored=%d", processed, rejected, st.Len())

	names := make([]string, 0, len(seenRegions))
	for name := range seenRegions {
		names = append(names, name)
	}
	sort.Strings(names)

	to := domain.Now()
	from := to.Add(-window)
	for _, name := range names {
		agg, err := svc.GetAggregate(ctx, name, from, to)
		if err != nil {
			return fmt.Errorf("aggregate %s: %w", name, err)
		}
		avgReality := "n/a"
		if agg.AvgReality != nil {
			avgReality = fmt.Sprintf("%.3f", *agg.AvgReality)
		}
		log.Printf("%-16s events=%d avg_virality=%.3f avg_reality=%s anomalies=%d intensity=%.3f",
			agg.Region, agg.EventCount, agg.AvgVirality, avgReality, agg.AnomalyCount, agg.Intensity)
	}
	return nil
}
