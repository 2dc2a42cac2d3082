// Package ranker orders search hits by TF-IDF rank and scores documents
// against rule sets.
package ranker

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/matcher"
	apperrors "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/errors"
)

// Hit is one matched document.
type Hit struct {
	DocID       int64             `json:"doc_id"`
	Count       int               `json:"count"`
	Words       int               `json:"words"`
	Rank        float64           `json:"rank"`
	Readability float64           `json:"readability"`
	Weight      float64           `json:"weight"`
	Published   int64             `json:"published"`
	Snippets    []matcher.Snippet `json:"snippets,omitempty"`
}

// SortBy names the ordering of results.
type SortBy int

const (
	SortRank SortBy = iota
	SortCount
	SortPublished
	SortReadability
	SortWeight
	SortID
)

var sortNames = map[string]SortBy{
	"":            SortRank,
	"rank":        SortRank,
	"count":       SortCount,
	"published":   SortPublished,
	"date":        SortPublished,
	"readability": SortReadability,
	"weight":      SortWeight,
	"id":          SortID,
}

// ParseSort maps a sort field name to SortBy.
func ParseSort(name string) (SortBy, error) {
	s, ok := sortNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return SortRank, fmt.Errorf("sort field %q: %w", name, apperrors.ErrInvalidInput)
	}
	return s, nil
}

// Params controls ranking.
type Params struct {
	// CorpusSize is the number of documents in the searched corpus.
	CorpusSize int64
	Sort       SortBy
	Ascending  bool
	Limit      int
}

// Rank computes tf × idf for every hit with at least one match and returns
// them ordered. Hits with no matches are dropped. Corpus size, matched
// document count and word counts are floored to 1.
func Rank(hits []Hit, params Params) []Hit {
	matched := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if h.Count > 0 {
			matched = append(matched, h)
		}
	}
	// A stale corpus count never drops below the matched set.
	idf := IDF(max(params.CorpusSize, int64(len(matched))), int64(len(matched)))
	for i := range matched {
		matched[i].Rank = math.Round(TF(matched[i].Count, matched[i].Words)*idf*1e6) / 1e6
	}

	less := lessFunc(params.Sort, params.Ascending)
	if params.Limit > 0 && len(matched) > params.Limit {
		return topK(matched, params.Limit, less)
	}
	sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j]) })
	return matched
}

// IDF is log10(N/M) with both floored to 1.
func IDF(corpusSize, matchedDocs int64) float64 {
	n := float64(max(1, corpusSize))
	m := float64(max(1, matchedDocs))
	return math.Log10(n / m)
}

// TF is the match count per word, word count floored to 1.
func TF(count, words int) float64 {
	return float64(count) / float64(max(1, words))
}

// lessFunc orders hits best first. Ties fall back to count and then to the
// lower document id.
func lessFunc(by SortBy, ascending bool) func(a, b Hit) bool {
	key := func(h Hit) float64 {
		switch by {
		case SortCount:
			return float64(h.Count)
		case SortPublished:
			return float64(h.Published)
		case SortReadability:
			return h.Readability
		case SortWeight:
			return h.Weight
		case SortID:
			return float64(h.DocID)
		default:
			return h.Rank
		}
	}
	return func(a, b Hit) bool {
		ka, kb := key(a), key(b)
		if ka != kb {
			if ascending {
				return ka < kb
			}
			return ka > kb
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.DocID < b.DocID
	}
}
