// Package kafka wraps segmentio/kafka-go for the entry pipeline. Producers
// publish JSON events; consumers hand raw messages to a MessageHandler and
// commit only what the handler accepted.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/config"
)

// MessageHandler is a callback invoked for each Kafka message. A non-nil
// error leaves the message uncommitted.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Message outcomes reported to a consumer observer.
const (
	StatusHandled      = "handled"
	StatusFailed       = "failed"
	StatusCommitFailed = "commit_failed"
)

// reader is the part of *kafka.Reader the consume loop needs.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
type Consumer struct {
	reader   reader
	logger   *slog.Logger
	handler  MessageHandler
	observer func(status string)
}

// ConsumerOption customizes a Consumer.
type ConsumerOption func(*Consumer)

// WithObserver reports the outcome of every message.
func WithObserver(fn func(status string)) ConsumerOption {
	return func(c *Consumer) { c.observer = fn }
}

// NewConsumer creates a group Consumer for topic.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: startOffset(cfg),
	})
	return newConsumer(r, topic, handler, opts...)
}

func newConsumer(r reader, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func startOffset(cfg config.KafkaConfig) int64 {
	if cfg.StartFromFirst {
		return kafka.FirstOffset
	}
	return kafka.LastOffset
}

// Start consumes until ctx is cancelled, then closes the reader. Messages
// the handler rejects stay uncommitted and are redelivered after a
// rebalance or restart.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.observe(c.process(ctx, msg))
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) string {
	log := c.logger.With(
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
	)
	log.Debug("message received",
		"type", Header(msg, HeaderEventType),
		"value_size", len(msg.Value),
	)
	if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
		log.Error("failed to process message", "error", err)
		return StatusFailed
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.Error("failed to commit message", "error", err)
		return StatusCommitFailed
	}
	return StatusHandled
}

func (c *Consumer) observe(status string) {
	if c.observer != nil {
		c.observer(status)
	}
}

// DecodeJSON unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
