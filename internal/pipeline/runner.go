package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/veritymap/event-intel/internal/domain"
	"github.com/veritymap/event-intel/internal/observability"
)

// Message is one raw payload plus its transport position and
// acknowledgement. Commit may be nil for transports without offsets.
type Message struct {
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Commit    func(ctx context.Context) error
}

// Source yields raw item messages from the ingest transport. Fetch blocks
// until a message arrives or ctx is cancelled.
type Source interface {
	Fetch(ctx context.Context) (Message, error)
}

// Sink publishes processed events downstream. Publishing is best effort; the
// store is the system of record.
type Sink interface {
	Publish(ctx context.Context, ev domain.ProcessedEvent) error
}

// Runner drives the ingest loop: fetch, parse, normalize, assemble, commit.
// Malformed or invalid payloads are counted, logged, committed, and skipped;
// assembly failures leave the offset uncommitted so the message is
// redelivered after a restart or rebalance.
type Runner struct {
	source     Source
	normalizer domain.Normalizer
	assembler  *Assembler
	sink       Sink
	logger     *slog.Logger
	metrics    *observability.Metrics
	workers    int
	ready      atomic.Bool
}

// NewRunner creates a Runner. sink may be nil to disable publishing.
func NewRunner(source Source, normalizer domain.Normalizer, assembler *Assembler, sink Sink, logger *slog.Logger, metrics *observability.Metrics, workers int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		source:     source,
		normalizer: normalizer,
		assembler:  assembler,
		sink:       sink,
		logger:     logger,
		metrics:    metrics,
		workers:    workers,
	}
}

// CheckReadiness returns nil if the runner has processed at least one
// message, or an error describing why the service is not yet ready.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("pipeline has not processed any messages yet")
	}
	return nil
}

// Run executes the ingest loop until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("pipeline started", "workers", r.workers)
	r.metrics.PipelineRunning.Set(1)
	defer r.metrics.PipelineRunning.Set(0)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.workLoop(ctx, id)
		}(i)
	}
	wg.Wait()

	r.logger.Info("pipeline stopped", "reason", ctx.Err())
	return nil
}

// workLoop is one worker's fetch-process cycle. Fetch and assembly failures
// back off exponentially: start at 200ms, double each retry, cap at 5s.
// Keeps retry storms short while avoiding tight loops during outages.
func (r *Runner) workLoop(ctx context.Context, id int) {
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := r.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Error("fetch failed", "worker", id, "error", err)
			if !sleepWithContext(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		if err := r.processMessage(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Error("assembly failed, leaving offset uncommitted",
				"worker", id,
				"error", err,
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			if !sleepWithContext(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, maxBackoff)
		}
	}
}

// processMessage runs one message through the pipeline. A returned error is
// retryable; poison payloads are handled inside and return nil.
func (r *Runner) processMessage(ctx context.Context, msg Message) error {
	r.metrics.EventsIngested.Inc()

	item, err := domain.ParseRawItem(msg.Value)
	if err != nil {
		r.rejectMessage(ctx, msg, "unparseable payload", err)
		return nil
	}

	ev, err := r.normalizer.Normalize(item)
	if err != nil {
		r.rejectMessage(ctx, msg, "rejected at normalization", err)
		return nil
	}

	record, err := r.assembler.Assemble(ctx, ev)
	if err != nil {
		r.metrics.AssemblyErrors.Inc()
		return err
	}

	if r.sink != nil {
		if err := r.sink.Publish(ctx, record); err != nil {
			// The store already holds the record; publishing is advisory.
			r.logger.Warn("publish failed", "event_id", record.EventID, "error", err)
		}
	}

	r.commitMessage(ctx, msg)
	r.ready.Store(true)
	return nil
}

// rejectMessage drops a poison payload: counted, logged, committed so it is
// never redelivered.
func (r *Runner) rejectMessage(ctx context.Context, msg Message, reason string, err error) {
	r.metrics.EventsRejected.Inc()
	r.logger.Warn(reason,
		"error", err,
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
	)
	r.commitMessage(ctx, msg)
}

// commitMessage commits the message offset if a commit function is available.
func (r *Runner) commitMessage(ctx context.Context, msg Message) {
	if msg.Commit == nil {
		return
	}
	if err := msg.Commit(ctx); err != nil {
		r.logger.Warn("commit offset failed", "error", err,
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
