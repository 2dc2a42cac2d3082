// Package publisher turns accepted entries into entry events on Kafka. Every
// event is keyed by entry id so updates and deletes of one entry stay in
// order on a single partition.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/kafka"
)

// Producer is the part of *kafka.Producer the publisher uses.
type Producer interface {
	kafka.Publisher
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Publisher queues entry events.
type Publisher struct {
	producer Producer
	logger   *slog.Logger
}

// New creates a Publisher writing through producer.
func New(producer Producer) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Submit queues entries for indexing in a single broker write.
func (p *Publisher) Submit(ctx context.Context, entries []engine.Entry) (*ingestion.IngestResponse, error) {
	events := make([]kafka.Event, 0, len(entries))
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		events = append(events, kafka.Event{
			Key:   key(e.ID),
			Type:  consumer.TypeEntryUpsert,
			Value: consumer.EntryEvent{Entry: e},
		})
		ids = append(ids, e.ID)
	}
	if err := p.producer.PublishBatch(ctx, events); err != nil {
		return nil, fmt.Errorf("queueing %d entries: %w", len(entries), err)
	}
	p.logger.Debug("entries queued", "count", len(entries))
	return &ingestion.IngestResponse{IDs: ids, Status: ingestion.StatusQueued}, nil
}

// Delete queues the removal of an entry. With archive set its learned rules
// are kept with frozen weights.
func (p *Publisher) Delete(ctx context.Context, id int64, archive bool) (*ingestion.IngestResponse, error) {
	err := p.producer.Publish(ctx, kafka.Event{
		Key:  key(id),
		Type: consumer.TypeEntryDelete,
		Value: consumer.EntryEvent{
			Entry:   engine.Entry{ID: id},
			Delete:  true,
			Archive: archive,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("queueing delete of entry %d: %w", id, err)
	}
	return &ingestion.IngestResponse{IDs: []int64{id}, Status: ingestion.StatusQueued}, nil
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}
