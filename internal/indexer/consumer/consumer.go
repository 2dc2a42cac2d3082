// Package consumer reads entry events from Kafka, runs them through the
// engine and persists the results: streams and stats, learned rules and
// the entry's importance. Every ranked entry is announced on the ranked
// topic.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/ranker"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/rules"
	apperrors "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/resilience"
)

// EntryEvent is the message on the entry-process topic. Delete removes the
// entry; Archive keeps its learned rules with their weight frozen. Rules are
// mined only from entries with Learn set.
type EntryEvent struct {
	engine.Entry
	Delete  bool `json:"delete,omitempty"`
	Archive bool `json:"archive,omitempty"`
}

// Event types carried in the event-type header.
const (
	TypeEntryUpsert = "entry.upsert"
	TypeEntryDelete = "entry.delete"
	TypeEntryRanked = "entry.ranked"
)

// RankedEvent is published once an entry has been stored and scored.
type RankedEvent struct {
	ID          int64     `json:"id"`
	FeedID      int64     `json:"feed_id"`
	Model       string    `json:"model"`
	Words       int       `json:"words"`
	Readability float64   `json:"readability"`
	Importance  float64   `json:"importance"`
	Flag        int64     `json:"flag,omitempty"`
	RankedAt    time.Time `json:"ranked_at"`
}

// Engine is the part of *engine.Engine the pipeline drives.
type Engine interface {
	Process(doc engine.Document, mode engine.Mode) (engine.Result, error)
	Score(doc engine.Document, weight float64, rs []rules.Rule) (ranker.Importance, error)
}

// Store persists entries and rules.
type Store interface {
	SaveEntry(ctx context.Context, doc engine.Document, res engine.Result) error
	SetImportance(ctx context.Context, id int64, score float64, flag int64) error
	DeleteEntry(ctx context.Context, id int64, archive bool) error
	Rules(ctx context.Context, scope engine.RuleScope) ([]rules.Rule, error)
	ReplaceLearned(ctx context.Context, contextID int64, rs []rules.Rule) error
}

// Invalidator drops cached search results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Options tunes the pipeline. Zero values take defaults.
type Options struct {
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	// Observer receives the outcome of every event.
	Observer func(status string)
	// RetryObserver is told about every store call that is retried.
	RetryObserver func(op string)
	// BreakerObserver follows the ranked-event publisher's breaker.
	BreakerObserver func(name string, state resilience.State)
}

// Event outcomes passed to Options.Observer.
const (
	StatusIndexed   = "indexed"
	StatusDeleted   = "deleted"
	StatusMalformed = "malformed"
	StatusRejected  = "rejected"
	StatusError     = "error"
)

// Pipeline turns entry events into stored, ranked entries.
type Pipeline struct {
	engine    Engine
	store     Store
	publisher kafka.Publisher
	cache     Invalidator
	breaker   *resilience.CircuitBreaker
	retry     resilience.RetryConfig
	opts      Options
	logger    *slog.Logger
}

// New creates a Pipeline. publisher and cache may be nil.
func New(eng Engine, store Store, publisher kafka.Publisher, cache Invalidator, opts Options) *Pipeline {
	return &Pipeline{
		engine:    eng,
		store:     store,
		publisher: publisher,
		cache:     cache,
		breaker: resilience.NewCircuitBreaker("ranked-publisher", resilience.BreakerConfig{
			OnStateChange: func(name string, _, to resilience.State) {
				if opts.BreakerObserver != nil {
					opts.BreakerObserver(name, to)
				}
			},
		}),
		retry: resilience.RetryConfig{
			MaxAttempts: opts.MaxAttempts,
			Backoff:     resilience.Backoff{Initial: opts.RetryDelay},
			Retryable:   transient,
		},
		opts:   opts,
		logger: slog.Default().With("component", "index-consumer"),
	}
}

// transient reports whether retrying might help. Bad entries, rules and
// models fail the same way every time.
func transient(err error) bool {
	return !apperrors.Unusable(err) &&
		!errors.Is(err, apperrors.ErrInvalidInput) &&
		!errors.Is(err, apperrors.ErrTypeMismatch) &&
		!errors.Is(err, apperrors.ErrDocumentNotFound) &&
		!errors.Is(err, context.Canceled)
}

// HandleMessage is the kafka.MessageHandler for the entry-process topic.
// Malformed and unusable events are logged and acknowledged so they do
// not block the partition.
func (p *Pipeline) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	event, err := kafka.DecodeJSON[EntryEvent](value)
	if err != nil {
		p.logger.Error("failed to decode entry event",
			"error", err,
			"key", string(key),
		)
		p.observe(StatusMalformed)
		return nil
	}

	ctx = logger.With(ctx, "component", "index-consumer", "entry_id", event.ID, "key", string(key))
	err = resilience.WithTimeout(ctx, p.opts.Timeout, "entry "+strconv.FormatInt(event.ID, 10), func(ctx context.Context) error {
		return p.Handle(ctx, event)
	})
	switch {
	case err == nil:
		return nil
	case !transient(err):
		logger.FromContext(ctx).Warn("entry rejected", "error", err)
		p.observe(StatusRejected)
		return nil
	default:
		p.observe(StatusError)
		return err
	}
}

// Handle applies one event.
func (p *Pipeline) Handle(ctx context.Context, event EntryEvent) error {
	if event.Delete {
		return p.delete(ctx, event)
	}
	doc, err := event.Document()
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Debug("processing entry",
		"feed_id", doc.FeedID,
		"lang", doc.Lang,
	)

	res, err := p.engine.Process(doc, engine.Mode{Index: true, Stats: true, Learn: event.Learn})
	if err != nil {
		return err
	}

	err = p.withRetry(ctx, "save entry", func(ctx context.Context) error {
		if err := p.store.SaveEntry(ctx, doc, res); err != nil {
			return err
		}
		if !event.Learn {
			return nil
		}
		return p.store.ReplaceLearned(ctx, doc.ID, res.Rules)
	})
	if err != nil {
		return fmt.Errorf("storing entry %d: %w", doc.ID, err)
	}

	imp, err := p.rank(ctx, doc, res)
	if err != nil {
		return fmt.Errorf("ranking entry %d: %w", doc.ID, err)
	}

	p.publish(ctx, RankedEvent{
		ID:          doc.ID,
		FeedID:      doc.FeedID,
		Model:       res.Model,
		Words:       res.Stats.Words,
		Readability: res.Stats.Readability,
		Importance:  imp.Score,
		Flag:        imp.Flag,
		RankedAt:    time.Now().UTC(),
	})
	p.invalidate(ctx)
	p.observe(StatusIndexed)

	log.Info("entry indexed",
		"model", res.Model,
		"words", res.Stats.Words,
		"learn", event.Learn,
		"learned_rules", len(res.Rules),
		"importance", imp.Score,
		"flag", imp.Flag,
	)
	return nil
}

// rank scores the entry against the rules in its scope and stores the
// result. Rules learned from the entry itself are left out.
func (p *Pipeline) rank(ctx context.Context, doc engine.Document, res engine.Result) (ranker.Importance, error) {
	var all []rules.Rule
	err := p.withRetry(ctx, "load rules", func(ctx context.Context) error {
		var err error
		all, err = p.store.Rules(ctx, engine.RuleScope{Lang: res.Model, FeedID: doc.FeedID, Category: doc.Category})
		return err
	})
	if err != nil {
		return ranker.Importance{}, err
	}
	rs := make([]rules.Rule, 0, len(all))
	for _, r := range all {
		if r.ContextID != doc.ID {
			rs = append(rs, r)
		}
	}

	imp, err := p.engine.Score(doc, res.Stats.Weight, rs)
	if err != nil {
		return ranker.Importance{}, err
	}
	err = p.withRetry(ctx, "set importance", func(ctx context.Context) error {
		return p.store.SetImportance(ctx, doc.ID, imp.Score, imp.Flag)
	})
	return imp, err
}

func (p *Pipeline) delete(ctx context.Context, event EntryEvent) error {
	if event.ID <= 0 {
		return fmt.Errorf("entry id %d: %w", event.ID, apperrors.ErrInvalidInput)
	}
	err := p.withRetry(ctx, "delete entry", func(ctx context.Context) error {
		return p.store.DeleteEntry(ctx, event.ID, event.Archive)
	})
	if errors.Is(err, apperrors.ErrDocumentNotFound) {
		logger.FromContext(ctx).Debug("entry already gone")
		err = nil
	}
	if err != nil {
		return fmt.Errorf("deleting entry %d: %w", event.ID, err)
	}
	p.invalidate(ctx)
	p.observe(StatusDeleted)
	logger.FromContext(ctx).Info("entry deleted", "archive", event.Archive)
	return nil
}

func (p *Pipeline) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	cfg := p.retry
	if p.opts.RetryObserver != nil {
		cfg.OnRetry = func(int, error) { p.opts.RetryObserver(op) }
	}
	return resilience.Retry(ctx, op, cfg, fn)
}

// publish announces a ranked entry. The entry is already stored, so a
// broker outage only costs the announcement.
func (p *Pipeline) publish(ctx context.Context, event RankedEvent) {
	if p.publisher == nil {
		return
	}
	err := p.breaker.Do(ctx, func(ctx context.Context) error {
		return p.publisher.Publish(ctx, kafka.Event{
			Key:   strconv.FormatInt(event.ID, 10),
			Type:  TypeEntryRanked,
			Value: event,
		})
	})
	if err != nil {
		logger.FromContext(ctx).Warn("ranked event not published", "error", err)
	}
}

func (p *Pipeline) invalidate(ctx context.Context) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Invalidate(ctx); err != nil {
		logger.FromContext(ctx).Warn("cache invalidation failed", "error", err)
	}
}

func (p *Pipeline) observe(status string) {
	if p.opts.Observer != nil {
		p.opts.Observer(status)
	}
}
