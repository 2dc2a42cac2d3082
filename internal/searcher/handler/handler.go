// Package handler exposes search, scoring, entry analysis and rule
// management over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/field"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/learner"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/phrase"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/ranker"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/rules"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/tagger"
	apperrors "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/respond"
)

const maxBodyBytes = 1 << 20

// Engine is the part of *engine.Engine the handler drives.
type Engine interface {
	Search(ctx context.Context, q engine.Query) ([]ranker.Hit, error)
	Score(doc engine.Document, weight float64, rs []rules.Rule) (ranker.Importance, error)
	Process(doc engine.Document, mode engine.Mode) (engine.Result, error)
}

// RuleStore loads and saves rules.
type RuleStore interface {
	Rules(ctx context.Context, scope engine.RuleScope) ([]rules.Rule, error)
	SaveRule(ctx context.Context, r rules.Rule) (int64, error)
}

type Handler struct {
	engine     Engine
	rules      RuleStore
	cache      *cache.QueryCache
	maxResults int
}

// New creates a Handler. rules and queryCache may be nil.
func New(eng Engine, ruleStore RuleStore, queryCache *cache.QueryCache, maxResults int) *Handler {
	return &Handler{
		engine:     eng,
		rules:      ruleStore,
		cache:      queryCache,
		maxResults: maxResults,
	}
}

// SearchResponse is the body of a search reply.
type SearchResponse struct {
	Query    string       `json:"query"`
	Mode     string       `json:"mode"`
	Results  []ranker.Hit `json:"results"`
	CacheHit bool         `json:"cache_hit"`
	TookMs   int64        `json:"took_ms"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	q, err := parseQuery(r, h.maxResults)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var (
		hits     []ranker.Hit
		cacheHit bool
	)
	if h.cache != nil {
		hits, cacheHit, err = h.cache.GetOrCompute(ctx, q, func() ([]ranker.Hit, error) {
			return h.engine.Search(ctx, q)
		})
	} else {
		hits, err = h.engine.Search(ctx, q)
	}
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if hits == nil {
		hits = []ranker.Hit{}
	}

	took := time.Since(start)
	log.Info("search completed",
		"query", q.Text,
		"mode", q.Mode.String(),
		"returned", len(hits),
		"cache_hit", cacheHit,
		"took", took,
	)
	respond.JSON(w, r, http.StatusOK, SearchResponse{
		Query:    q.Text,
		Mode:     q.Mode.String(),
		Results:  hits,
		CacheHit: cacheHit,
		TookMs:   took.Milliseconds(),
	})
}

// ScoreRequest scores an entry. Without explicit rules the stored rules in
// the entry's scope are used.
type ScoreRequest struct {
	Entry  engine.Entry `json:"entry"`
	Weight *float64     `json:"weight,omitempty"`
	Rules  []rules.Rule `json:"rules,omitempty"`
}

func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	doc, err := req.Entry.Document()
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	rs := req.Rules
	if rs == nil {
		if h.rules == nil {
			respond.Error(w, r, apperrors.Invalid("no rules given and no rule store configured"))
			return
		}
		if rs, err = h.rules.Rules(r.Context(), engine.RuleScope{Lang: doc.Lang, FeedID: doc.FeedID, Category: doc.Category}); err != nil {
			respond.Error(w, r, err)
			return
		}
	}

	weight := 1.0
	if req.Weight != nil {
		weight = *req.Weight
	} else if res, err := h.engine.Process(doc, engine.Mode{Stats: true}); err == nil {
		weight = res.Stats.Weight
	}

	imp, err := h.engine.Score(doc, weight, rs)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, imp)
}

// AnalyzeResponse reports what processing derives from an entry.
type AnalyzeResponse struct {
	Model    string                     `json:"model"`
	Stats    tagger.Stats               `json:"stats"`
	Stemmed  string                     `json:"stemmed_stream"`
	Raw      string                     `json:"raw_stream"`
	Features map[string]learner.Feature `json:"features"`
	Rules    []rules.Rule               `json:"rules"`
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var entry engine.Entry
	if err := decodeBody(w, r, &entry); err != nil {
		respond.Error(w, r, err)
		return
	}
	doc, err := entry.Document()
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	res, err := h.engine.Process(doc, engine.Mode{Index: true, Stats: true, Learn: true})
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, AnalyzeResponse{
		Model:    res.Model,
		Stats:    res.Stats,
		Stemmed:  res.Streams.Stemmed,
		Raw:      res.Streams.Raw,
		Features: res.Features,
		Rules:    res.Rules,
	})
}

func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	if h.rules == nil {
		respond.Error(w, r, apperrors.Public(apperrors.ErrUnavailable, "rule store is not configured"))
		return
	}
	var rule rules.Rule
	if err := decodeBody(w, r, &rule); err != nil {
		respond.Error(w, r, err)
		return
	}
	id, err := h.rules.SaveRule(r.Context(), rule)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	rule.ID = id
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context()); err != nil {
			logger.FromContext(r.Context()).Warn("cache invalidation after rule save failed", "error", err)
		}
	}
	respond.JSON(w, r, http.StatusCreated, rule)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		respond.JSON(w, r, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	respond.JSON(w, r, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		respond.Error(w, r, apperrors.Public(apperrors.ErrUnavailable, "caching is disabled"))
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusOK, map[string]string{"status": "invalidated"})
}

// parseQuery reads search parameters. Unknown values are input errors; a
// blank q is not, it matches nothing.
func parseQuery(r *http.Request, maxResults int) (engine.Query, error) {
	v := r.URL.Query()
	q := engine.Query{
		Text:     v.Get("q"),
		Lang:     v.Get("lang"),
		Category: v.Get("category"),
		Snippets: v.Get("snippets") != "false",
	}
	var err error
	if q.Mode, err = parseMode(v.Get("mode")); err != nil {
		return q, err
	}
	if q.Field, err = field.Parse(v.Get("field")); err != nil {
		return q, apperrors.Invalid("%v", err)
	}
	if q.Sort, err = ranker.ParseSort(v.Get("sort")); err != nil {
		return q, err
	}
	q.Ascending = strings.EqualFold(v.Get("order"), "asc")
	q.CaseInsensitive = v.Get("ci") == "true" || v.Get("ci") == "1"

	ints := []struct {
		name string
		dst  *int
		min  int
	}{
		{"limit", &q.Limit, 1},
		{"near", &q.Near, 0},
	}
	for _, p := range ints {
		s := v.Get(p.name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < p.min {
			return q, apperrors.Invalid("%s must be an integer >= %d", p.name, p.min)
		}
		*p.dst = n
	}
	if maxResults > 0 && q.Limit > maxResults {
		q.Limit = maxResults
	}
	if s := v.Get("feed"); s != "" {
		if q.FeedID, err = strconv.ParseInt(s, 10, 64); err != nil {
			return q, apperrors.Invalid("feed must be an integer")
		}
	}
	if q.Within, err = parseIDs(v, "within"); err != nil {
		return q, err
	}
	if q.Exclude, err = parseIDs(v, "exclude"); err != nil {
		return q, err
	}
	return q, nil
}

func parseMode(s string) (phrase.Mode, error) {
	switch strings.ToLower(s) {
	case "", "exact":
		return phrase.Exact, nil
	case "stemmed":
		return phrase.Stemmed, nil
	case "literal":
		return phrase.Literal, nil
	}
	return 0, apperrors.Invalid("unknown mode %q", s)
}

// parseIDs reads a comma-separated id list. An absent parameter is nil; a
// present but empty one is an empty, non-nil list.
func parseIDs(v map[string][]string, name string) ([]int64, error) {
	raw, ok := v[name]
	if !ok {
		return nil, nil
	}
	ids := []int64{}
	for _, s := range strings.Split(strings.Join(raw, ","), ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, apperrors.Invalid("%s: bad id %q", name, s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.Invalid("invalid request body: %v", err)
	}
	return nil
}
