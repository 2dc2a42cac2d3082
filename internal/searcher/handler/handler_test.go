package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/field"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/lang"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/phrase"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/ranker"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/rules"
	apperrors "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/errors"
)

type entries []engine.Candidate

func (e entries) Candidates(context.Context, engine.CandidateQuery) ([]engine.Candidate, error) {
	return e, nil
}

func (e entries) CorpusSize(context.Context) (int64, error) {
	return int64(len(e)), nil
}

type ruleStore struct {
	rules []rules.Rule
	saved []rules.Rule
}

func (s *ruleStore) Rules(context.Context, engine.RuleScope) ([]rules.Rule, error) {
	return s.rules, nil
}

func (s *ruleStore) SaveRule(_ context.Context, r rules.Rule) (int64, error) {
	if err := rules.Validate(r); err != nil {
		return 0, err
	}
	s.saved = append(s.saved, r)
	return int64(len(s.saved)), nil
}

func newHandler(t *testing.T, store *ruleStore, texts ...string) *Handler {
	t.Helper()
	reg := lang.NewRegistry(lang.Embedded(), nil)
	indexer := engine.New(reg, nil, nil, nil, engine.Options{}, nil)

	var src entries
	for i, text := range texts {
		doc := engine.Document{ID: int64(i + 1), Published: time.Unix(1700000000, 0), Fields: []field.Value{{Role: field.Text, Text: text}}}
		res, err := indexer.Process(doc, engine.Mode{Index: true, Stats: true})
		require.NoError(t, err)
		src = append(src, engine.Candidate{
			ID:      doc.ID,
			Words:   res.Stats.Words,
			Weight:  res.Stats.Weight,
			Streams: res.Streams,
			Fields:  doc.Fields,
		})
	}
	eng := engine.New(reg, src, src, nil, engine.Options{DefaultLimit: 10, MaxResults: 50}, nil)
	if store == nil {
		return New(eng, nil, nil, 50)
	}
	return New(eng, store, nil, 50)
}

func TestSearch(t *testing.T) {
	h := newHandler(t, nil, "the quick brown fox", "a lazy dog", "brown bread")

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=brown&mode=exact&sort=id&order=asc", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "brown", resp.Query)
	assert.Equal(t, "exact", resp.Mode)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, int64(1), resp.Results[0].DocID)
	assert.Equal(t, int64(3), resp.Results[1].DocID)
	require.NotEmpty(t, resp.Results[0].Snippets)
	assert.Equal(t, field.Text, resp.Results[0].Snippets[0].Role)
	assert.Contains(t, resp.Results[0].Snippets[0].Prefix, "quick")
	assert.False(t, resp.CacheHit)
}

func TestSearchEmptyResultIsArray(t *testing.T) {
	h := newHandler(t, nil, "alpha")
	for _, target := range []string{
		"/api/v1/search?q=*",
		"/api/v1/search",
		"/api/v1/search?q=",
		"/api/v1/search?q=+++&mode=stemmed",
	} {
		rec := httptest.NewRecorder()
		h.Search(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Contains(t, rec.Body.String(), `"results":[]`, target)
	}
}

func TestSearchBadParams(t *testing.T) {
	h := newHandler(t, nil, "alpha")
	for _, target := range []string{
		"/api/v1/search?q=a&mode=fuzzy",
		"/api/v1/search?q=a&field=summary",
		"/api/v1/search?q=a&sort=popularity",
		"/api/v1/search?q=a&limit=0",
		"/api/v1/search?q=a&near=-1",
		"/api/v1/search?q=a&within=1,x",
		"/api/v1/search?q=a&feed=abc",
	} {
		rec := httptest.NewRecorder()
		h.Search(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), `"code":"invalid_input"`, target)
	}
}

func TestParseQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet,
		"/api/v1/search?q=Alpha+~2+beta&mode=stemmed&field=title&ci=true&near=3&lang=en&feed=7&category=tech&sort=date&limit=500&within=3,1&exclude=&snippets=false", nil)
	q, err := parseQuery(r, 100)
	require.NoError(t, err)
	assert.Equal(t, engine.Query{
		Text:            "Alpha ~2 beta",
		Mode:            phrase.Stemmed,
		Field:           field.Title,
		CaseInsensitive: true,
		Near:            3,
		Lang:            "en",
		FeedID:          7,
		Category:        "tech",
		Within:          []int64{3, 1},
		Exclude:         []int64{},
		Sort:            ranker.SortPublished,
		Limit:           100,
	}, q)
}

func TestScoreWithInlineRules(t *testing.T) {
	h := newHandler(t, nil)
	body := `{"entry":{"id":1,"fields":{"text":"fox and fox"}},"weight":0.5,
		"rules":[{"id":1,"type":"string","search":"fox","weight":5,"additive":true,"flag":3}]}`
	rec := httptest.NewRecorder()
	h.Score(rec, httptest.NewRequest(http.MethodPost, "/api/v1/score", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var imp ranker.Importance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &imp))
	assert.Equal(t, 5.0, imp.Score)
	assert.Equal(t, int64(3), imp.Flag)
}

func TestScoreWithStoredRules(t *testing.T) {
	store := &ruleStore{rules: []rules.Rule{{ID: 1, Type: rules.TypeExact, Search: "fox", Weight: 2, Additive: true}}}
	h := newHandler(t, store)
	body := `{"entry":{"id":1,"fields":{"text":"fox"}},"weight":1}`
	rec := httptest.NewRecorder()
	h.Score(rec, httptest.NewRequest(http.MethodPost, "/api/v1/score", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"score":2`)
}

func TestScoreErrors(t *testing.T) {
	h := newHandler(t, nil)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"unknown field", `{"entry":{"id":1},"bogus":1}`, http.StatusBadRequest},
		{"missing id", `{"entry":{"fields":{"text":"x"}},"rules":[]}`, http.StatusBadRequest},
		{"no rule store", `{"entry":{"id":1,"fields":{"text":"x"}}}`, http.StatusBadRequest},
		{"bad regex", `{"entry":{"id":1,"fields":{"text":"x"}},"rules":[{"type":"regex","search":"(","weight":1}]}`, http.StatusBadRequest},
		{"unknown language", `{"entry":{"id":1,"lang":"klingon","fields":{"text":"x"}},"rules":[]}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Score(rec, httptest.NewRequest(http.MethodPost, "/api/v1/score", bytes.NewBufferString(tt.body)))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestAnalyze(t *testing.T) {
	h := newHandler(t, nil)
	body := `{"id":9,"fields":{"title":"NASA launches Artemis","text":"The rocket lifted off."}}`
	rec := httptest.NewRecorder()
	h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, lang.HeuristicID, resp.Model)
	assert.Positive(t, resp.Stats.Words)
	assert.Contains(t, resp.Raw, "TI2nasa ")
	assert.NotEmpty(t, resp.Features)
	for _, r := range resp.Rules {
		assert.Equal(t, int64(9), r.ContextID)
	}
}

func TestCreateRule(t *testing.T) {
	store := &ruleStore{}
	h := newHandler(t, store)

	rec := httptest.NewRecorder()
	h.CreateRule(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rules",
		bytes.NewBufferString(`{"name":"launches","type":"stemmed","field":"title","search":"launch","weight":2}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, store.saved, 1)
	assert.Equal(t, rules.TypeStemmed, store.saved[0].Type)
	assert.Equal(t, field.Title, store.saved[0].Field)
	assert.Contains(t, rec.Body.String(), `"id":1`)

	rec = httptest.NewRecorder()
	h.CreateRule(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rules",
		bytes.NewBufferString(`{"type":"learned-exact","search":"TX0x","learned":true}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	newHandler(t, nil).CreateRule(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rules", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCacheDisabled(t *testing.T) {
	h := newHandler(t, nil)
	rec := httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	assert.JSONEq(t, `{"status":"disabled"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"caching is disabled","code":"unavailable"}`, rec.Body.String())
}

type brokenEngine struct{ err error }

func (b brokenEngine) Search(context.Context, engine.Query) ([]ranker.Hit, error) {
	return nil, b.err
}

func (b brokenEngine) Score(engine.Document, float64, []rules.Rule) (ranker.Importance, error) {
	return ranker.Importance{}, b.err
}

func (b brokenEngine) Process(engine.Document, engine.Mode) (engine.Result, error) {
	return engine.Result{}, b.err
}

func TestSearchHidesInternalErrors(t *testing.T) {
	h := New(brokenEngine{err: fmt.Errorf("candidates: %w", apperrors.ErrInternal)}, nil, nil, 50)
	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=alpha", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error","code":"internal"}`, rec.Body.String())
}
