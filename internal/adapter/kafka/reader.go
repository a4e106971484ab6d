// Package kafka adapts Kafka topics to the pipeline's Source and Sink
// interfaces. Offsets are never auto-committed: the runner commits through
// the callback on each message once the event is safely stored.
package kafka

import (
	"context"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/veritymap/event-intel/internal/config"
	"github.com/veritymap/event-intel/internal/pipeline"
)

// Reader consumes raw item payloads from the source topic.
// It implements pipeline.Source.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a consumer-group reader for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaSourceTopic,
		GroupID: cfg.KafkaGroupID,
	})
	return &Reader{reader: r, logger: logger}
}

// Fetch blocks until a message is available or the context ends. The returned
// message's Commit callback acknowledges exactly this offset.
func (r *Reader) Fetch(ctx context.Context) (pipeline.Message, error) {
	msg, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return pipeline.Message{}, err
	}
	return mapMessage(r.reader, msg), nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// offsetCommitter is the slice of kafkago.Reader the commit callback needs.
type offsetCommitter interface {
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// mapMessage converts a fetched Kafka message into the pipeline's transport
// shape, binding the commit callback to the message's own offset.
func mapMessage(committer offsetCommitter, msg kafkago.Message) pipeline.Message {
	return pipeline.Message{
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Commit: func(ctx context.Context) error {
			return committer.CommitMessages(ctx, msg)
		},
	}
}
