// Package engine ties the language pipeline together: it processes entries
// into stats, streams and learned rules, answers search queries against a
// candidate source, and scores entries against rule sets.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/field"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/lang"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/learner"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/phrase"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/rules"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/stream"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/tagger"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/config"
)

// ModelProvider resolves a language to a loaded model. *lang.Registry
// implements it.
type ModelProvider interface {
	Get(lang string) (*lang.Model, error)
}

// CorpusStats reports the size of the searchable corpus.
type CorpusStats interface {
	CorpusSize(ctx context.Context) (int64, error)
}

// Column selects what a candidate pattern is matched against.
type Column int

const (
	ColumnNone Column = iota
	ColumnText
	ColumnStemmed
	ColumnRaw
)

// CandidateQuery asks a CandidateSource for entries worth matching.
// Pattern is a LIKE pre-filter over Column; it may admit false positives
// but never drops a real match.
type CandidateQuery struct {
	Pattern string
	Column  Column
	// Fold lowercases the column before the pattern is applied.
	Fold     bool
	FeedID   int64
	Category string
	Within   *roaring64.Bitmap
	Limit    int
}

// Candidate is a stored entry as needed for matching and ranking.
type Candidate struct {
	ID          int64
	Words       int
	Readability float64
	Weight      float64
	Published   time.Time
	Streams     stream.Streams
	Fields      []field.Value
}

// CandidateSource retrieves candidate entries.
type CandidateSource interface {
	Candidates(ctx context.Context, q CandidateQuery) ([]Candidate, error)
}

// RuleScope narrows the rules that apply to an entry.
type RuleScope struct {
	Lang     string
	FeedID   int64
	Category string
}

// RuleRepository stores manual and learned rules.
type RuleRepository interface {
	Rules(ctx context.Context, scope RuleScope) ([]rules.Rule, error)
	ReplaceLearned(ctx context.Context, contextID int64, rs []rules.Rule) error
	DeleteByContext(ctx context.Context, contextID int64, archive bool) error
}

// Observer receives processing and query events, typically to feed
// metrics. A nil Observer is allowed.
type Observer interface {
	EntryProcessed(lang string, features int, took time.Duration)
	QueryServed(kind string, results int, took time.Duration)
}

// Document is one entry to process or score.
type Document struct {
	ID        int64         `json:"id"`
	FeedID    int64         `json:"feed_id,omitempty"`
	Category  string        `json:"category,omitempty"`
	Lang      string        `json:"lang,omitempty"`
	Published time.Time     `json:"published"`
	Fields    []field.Value `json:"fields"`
}

// Mode selects what Process produces.
type Mode struct {
	Index bool
	Stats bool
	Learn bool
}

// Result is the output of Process.
type Result struct {
	Model    string
	Stats    tagger.Stats
	Streams  stream.Streams
	Features map[string]learner.Feature
	Rules    []rules.Rule
}

// Options tunes searching and snippet extraction.
type Options struct {
	MaxResults     int
	DefaultLimit   int
	SnippetRadius  int
	SnippetTokens  int
	MaxSnippets    int
	DefaultNear    int
	CandidateLimit int
}

// OptionsFromConfig maps the search configuration section.
func OptionsFromConfig(cfg config.SearchConfig) Options {
	return Options{
		MaxResults:     cfg.MaxResults,
		DefaultLimit:   cfg.DefaultLimit,
		SnippetRadius:  cfg.SnippetRadius,
		SnippetTokens:  cfg.SnippetTokens,
		MaxSnippets:    cfg.MaxSnippets,
		DefaultNear:    cfg.DefaultNear,
		CandidateLimit: cfg.CandidateLimit,
	}
}

// Engine is safe for concurrent use once constructed.
type Engine struct {
	models   ModelProvider
	corpus   CorpusStats
	source   CandidateSource
	phrases  *phrase.Cache
	opts     Options
	observer Observer
	logger   *slog.Logger
}

// New creates an Engine. corpus and source may be nil when only Process and
// ScoreImportance are used.
func New(models ModelProvider, corpus CorpusStats, source CandidateSource, phrases *phrase.Cache, opts Options, observer Observer) *Engine {
	return &Engine{
		models:   models,
		corpus:   corpus,
		source:   source,
		phrases:  phrases,
		opts:     opts,
		observer: observer,
		logger:   slog.Default().With("component", "engine"),
	}
}

// Process tags an entry and produces what mode asks for. Learned rules are
// keyed to doc.ID as their context.
func (e *Engine) Process(doc Document, mode Mode) (Result, error) {
	start := time.Now()
	m, err := e.models.Get(doc.Lang)
	if err != nil {
		return Result{}, fmt.Errorf("processing entry %d: %w", doc.ID, err)
	}
	fields, stats := tagger.Tag(doc.Fields, m, tagger.Options{})

	res := Result{Model: m.ID}
	if mode.Stats {
		res.Stats = stats
	}
	if mode.Index {
		res.Streams = stream.Serialize(fields, m)
	}
	if mode.Learn {
		res.Features = learner.Extract(fields, m)
		res.Rules = rules.FromFeatures(res.Features, doc.ID, m.ID)
	}

	took := time.Since(start)
	if e.observer != nil {
		e.observer.EntryProcessed(m.ID, len(res.Features), took)
	}
	e.logger.Debug("entry processed",
		"entry_id", doc.ID,
		"model", m.ID,
		"words", stats.Words,
		"features", len(res.Features),
		"took", took,
	)
	return res, nil
}

func (e *Engine) compile(query string, m *lang.Model, opts phrase.Options) (*phrase.Compiled, error) {
	if opts.Near <= 0 {
		opts.Near = e.opts.DefaultNear
	}
	if e.phrases != nil {
		return e.phrases.Compile(query, m, opts)
	}
	return phrase.Compile(query, m, opts)
}

func (e *Engine) matchOptions(snippets bool) matcher.Options {
	return matcher.Options{
		Snippets: snippets,
		Radius:   e.opts.SnippetRadius,
		Tokens:   e.opts.SnippetTokens,
		Max:      e.opts.MaxSnippets,
	}
}
