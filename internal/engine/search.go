package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/field"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/phrase"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/errors"
)

// Query is a search request.
type Query struct {
	Text            string        `json:"q"`
	Mode            phrase.Mode   `json:"mode"`
	Field           field.Role    `json:"field"`
	CaseInsensitive bool          `json:"ci"`
	Near            int           `json:"near,omitempty"`
	Lang            string        `json:"lang,omitempty"`
	FeedID          int64         `json:"feed_id,omitempty"`
	Category        string        `json:"category,omitempty"`
	Within          []int64       `json:"within,omitempty"`
	Exclude         []int64       `json:"exclude,omitempty"`
	Sort            ranker.SortBy `json:"sort"`
	Ascending       bool          `json:"asc"`
	Limit           int           `json:"limit,omitempty"`
	Snippets        bool          `json:"snippets"`
}

// Search compiles the query, counts it against every candidate entry and
// returns the ranked hits. Snippets are cut only for the returned hits. An
// empty query returns no hits and no error.
func (e *Engine) Search(ctx context.Context, q Query) ([]ranker.Hit, error) {
	if e.source == nil {
		return nil, fmt.Errorf("search: no candidate source: %w", apperrors.ErrInternal)
	}
	start := time.Now()

	m, err := e.models.Get(q.Lang)
	if err != nil {
		return nil, err
	}
	c, err := e.compile(q.Text, m, phrase.Options{
		Mode:            q.Mode,
		Field:           q.Field,
		CaseInsensitive: q.CaseInsensitive,
		Near:            q.Near,
	})
	if err != nil {
		return nil, err
	}
	if c.Empty {
		e.served(c.Mode, 0, start)
		return nil, nil
	}

	cq := e.candidateQuery(c, q)
	candidates, err := e.source.Candidates(ctx, cq)
	if err != nil {
		return nil, fmt.Errorf("fetching candidates: %w", err)
	}

	exclude := bitmapOf(q.Exclude)
	seen := roaring64.New()
	byID := make(map[int64]Candidate, len(candidates))
	hits := make([]ranker.Hit, 0, len(candidates))
	for _, cand := range candidates {
		id := uint64(cand.ID)
		if seen.Contains(id) || exclude.Contains(id) {
			continue
		}
		if cq.Within != nil && !cq.Within.Contains(id) {
			continue
		}
		seen.Add(id)

		n := e.count(c, cand)
		if n == 0 {
			continue
		}
		byID[cand.ID] = cand
		hits = append(hits, ranker.Hit{
			DocID:       cand.ID,
			Count:       n,
			Words:       cand.Words,
			Readability: cand.Readability,
			Weight:      cand.Weight,
			Published:   cand.Published.Unix(),
		})
	}

	corpus := int64(len(hits))
	if e.corpus != nil {
		if corpus, err = e.corpus.CorpusSize(ctx); err != nil {
			return nil, fmt.Errorf("reading corpus size: %w", err)
		}
	}
	ranked := ranker.Rank(hits, ranker.Params{
		CorpusSize: corpus,
		Sort:       q.Sort,
		Ascending:  q.Ascending,
		Limit:      e.limit(q.Limit),
	})

	if q.Snippets {
		opts := e.matchOptions(true)
		for i := range ranked {
			cand := byID[ranked[i].DocID]
			if c.Mode == phrase.Literal {
				ranked[i].Snippets = matcher.Literal(c, cand.Fields, opts).Snippets
			} else {
				ranked[i].Snippets = matcher.Snippets(c, cand.Streams, opts).Snippets
			}
		}
	}

	e.logger.Debug("query served",
		"mode", c.Mode.String(),
		"candidates", len(candidates),
		"matched", len(hits),
		"returned", len(ranked),
		"took", time.Since(start),
	)
	e.served(c.Mode, len(ranked), start)
	return ranked, nil
}

// candidateQuery picks the pre-filter for a compiled phrase. Entry fields
// are stored joined in one text column, so an anchored literal phrase has no
// usable pattern and every scoped entry is a candidate.
func (e *Engine) candidateQuery(c *phrase.Compiled, q Query) CandidateQuery {
	cq := CandidateQuery{
		Pattern:  c.Pattern,
		FeedID:   q.FeedID,
		Category: q.Category,
		Limit:    e.opts.CandidateLimit,
	}
	switch c.Mode {
	case phrase.Literal:
		cq.Column = ColumnText
		cq.Fold = c.CaseInsensitive
		if c.Begin || c.End {
			cq.Pattern, cq.Column = "", ColumnNone
		}
	case phrase.Stemmed:
		cq.Column = ColumnStemmed
	default:
		cq.Column = ColumnRaw
	}
	if q.Within != nil {
		cq.Within = bitmapOf(q.Within)
	}
	return cq
}

func (e *Engine) count(c *phrase.Compiled, cand Candidate) int {
	if c.Mode == phrase.Literal {
		return matcher.Literal(c, cand.Fields, matcher.Options{}).Count
	}
	return matcher.Count(c, cand.Streams)
}

func (e *Engine) limit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = e.opts.DefaultLimit
	}
	if e.opts.MaxResults > 0 && limit > e.opts.MaxResults {
		limit = e.opts.MaxResults
	}
	return limit
}

func (e *Engine) served(mode phrase.Mode, n int, start time.Time) {
	if e.observer != nil {
		e.observer.QueryServed(mode.String(), n, time.Since(start))
	}
}

func bitmapOf(ids []int64) *roaring64.Bitmap {
	bm := roaring64.New()
	for _, id := range ids {
		if id > 0 {
			bm.Add(uint64(id))
		}
	}
	return bm
}
