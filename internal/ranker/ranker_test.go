package ranker

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/rules"
	apperrors "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/errors"
)

func TestRankTFIDF(t *testing.T) {
	hits := []Hit{
		{DocID: 1, Count: 2, Words: 100},
		{DocID: 2, Count: 5, Words: 50},
		{DocID: 3, Count: 0, Words: 10},
	}
	got := Rank(hits, Params{CorpusSize: 1000})
	require.Len(t, got, 2)

	idf := math.Log10(1000.0 / 2)
	assert.Equal(t, int64(2), got[0].DocID)
	assert.InDelta(t, 0.1*idf, got[0].Rank, 1e-6)
	assert.InDelta(t, 0.02*idf, got[1].Rank, 1e-6)
}

func TestRankFloorsDivisors(t *testing.T) {
	got := Rank([]Hit{{DocID: 1, Count: 3, Words: 0}}, Params{CorpusSize: 0})
	require.Len(t, got, 1)
	assert.Equal(t, 0.0, got[0].Rank)
	assert.False(t, math.IsNaN(got[0].Rank))
	assert.Equal(t, 0.0, IDF(0, 0))
	assert.Equal(t, 3.0, TF(3, 0))
}

func TestRankMonotonicInCount(t *testing.T) {
	prev := -1.0
	for count := 1; count <= 20; count++ {
		got := Rank([]Hit{
			{DocID: 1, Count: count, Words: 40},
			{DocID: 2, Count: 1, Words: 40},
		}, Params{CorpusSize: 500, Sort: SortID})
		require.Len(t, got, 2)
		assert.GreaterOrEqual(t, got[1].Rank, prev)
		prev = got[1].Rank
	}
}

func TestRankSortOrders(t *testing.T) {
	hits := []Hit{
		{DocID: 3, Count: 1, Words: 10, Published: 300, Readability: 9},
		{DocID: 1, Count: 4, Words: 100, Published: 100, Readability: 12},
		{DocID: 2, Count: 2, Words: 10, Published: 200, Readability: 4},
	}
	ids := func(hs []Hit) []int64 {
		out := make([]int64, len(hs))
		for i, h := range hs {
			out[i] = h.DocID
		}
		return out
	}

	assert.Equal(t, []int64{2, 3, 1}, ids(Rank(hits, Params{CorpusSize: 100})))
	assert.Equal(t, []int64{1, 2, 3}, ids(Rank(hits, Params{CorpusSize: 100, Sort: SortCount})))
	assert.Equal(t, []int64{3, 2, 1}, ids(Rank(hits, Params{CorpusSize: 100, Sort: SortPublished})))
	assert.Equal(t, []int64{2, 3, 1}, ids(Rank(hits, Params{CorpusSize: 100, Sort: SortReadability, Ascending: true})))
	assert.Equal(t, []int64{2, 3}, ids(Rank(hits, Params{CorpusSize: 100, Limit: 2})))
}

func TestRankTiesByDocID(t *testing.T) {
	hits := []Hit{
		{DocID: 9, Count: 1, Words: 10},
		{DocID: 4, Count: 1, Words: 10},
		{DocID: 7, Count: 1, Words: 10},
	}
	got := Rank(hits, Params{CorpusSize: 10, Limit: 2})
	require.Len(t, got, 2)
	assert.Equal(t, int64(4), got[0].DocID)
	assert.Equal(t, int64(7), got[1].DocID)
}

func TestParseSort(t *testing.T) {
	s, err := ParseSort("Date")
	require.NoError(t, err)
	assert.Equal(t, SortPublished, s)
	_, err = ParseSort("colour")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

type fakeCounter map[int64]int

func (f fakeCounter) CountRule(r rules.Rule) (int, error) {
	if r.ID < 0 {
		return 0, apperrors.ErrInvalidRule
	}
	return f[r.ID], nil
}

func TestScoreAdditive(t *testing.T) {
	rs := []rules.Rule{{ID: 1, Weight: 5, Additive: true}}
	got, err := Score(fakeCounter{1: 2}, 0.5, rs)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.Score)
	assert.Zero(t, got.Flag)
	require.Len(t, got.Matched, 1)
	assert.Equal(t, RuleMatch{RuleID: 1, Count: 2, Value: 10}, got.Matched[0])
}

func TestScoreNonAdditiveOverwrites(t *testing.T) {
	rs := []rules.Rule{
		{ID: 1, Weight: 5, Additive: true},
		{ID: 2, Weight: 1.5, Additive: false},
		{ID: 3, Weight: 2, Additive: true},
		{ID: 4, Weight: 100, Additive: false},
	}
	got, err := Score(fakeCounter{1: 2, 2: 2, 3: 1}, 1, rs)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.Score)
	assert.Len(t, got.Matched, 3)
}

func TestScoreFlagVotes(t *testing.T) {
	rs := []rules.Rule{
		{ID: 1, Weight: 3, Additive: true, Flag: 10},
		{ID: 2, Weight: 1.5, Additive: true, Flag: 20},
		{ID: 3, Weight: 1, Additive: true},
	}
	got, err := Score(fakeCounter{1: 1, 2: 3, 3: 4}, 1, rs)
	require.NoError(t, err)
	assert.Equal(t, int64(20), got.Flag)
	assert.Equal(t, 3.0+4.5+4.0, got.Score)
}

func TestScoreFlagTieGoesToLowerID(t *testing.T) {
	rs := []rules.Rule{
		{ID: 1, Weight: 2, Additive: true, Flag: 30},
		{ID: 2, Weight: 2, Additive: true, Flag: 12},
	}
	got, err := Score(fakeCounter{1: 1, 2: 1}, 1, rs)
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.Flag)
}

func TestScoreArchivedWeight(t *testing.T) {
	rs := []rules.Rule{{ID: 1, Type: rules.TypeLearnedExact, Learned: true, Weight: 9, ArchivedWeight: 2, Additive: true}}
	got, err := Score(fakeCounter{1: 3}, 1, rs)
	require.NoError(t, err)
	assert.Equal(t, 6.0, got.Score)
}

func TestScoreNoMatches(t *testing.T) {
	got, err := Score(fakeCounter{}, 0.25, []rules.Rule{{ID: 1, Weight: 5, Additive: true, Flag: 3}})
	require.NoError(t, err)
	assert.Zero(t, got.Score)
	assert.Zero(t, got.Flag)
	assert.Empty(t, got.Matched)
}

func TestScoreFailsOnBadRule(t *testing.T) {
	_, err := Score(fakeCounter{}, 1, []rules.Rule{{ID: -1, Name: "broken"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidRule))
}
