package matcher

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/field"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/lang"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/phrase"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/stream"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/tagger"
)

func model(t testing.TB, id string) *lang.Model {
	t.Helper()
	m, err := lang.NewRegistry(lang.Embedded(), nil).Get(id)
	require.NoError(t, err)
	return m
}

func streams(m *lang.Model, fields ...field.Value) stream.Streams {
	tagged, _ := tagger.Tag(fields, m, tagger.Options{})
	return stream.Serialize(tagged, m)
}

func compile(t testing.TB, m *lang.Model, q string, opts phrase.Options) *phrase.Compiled {
	t.Helper()
	c, err := phrase.Compile(q, m, opts)
	require.NoError(t, err)
	return c
}

func TestSnippetsRoundTrip(t *testing.T) {
	m := model(t, lang.HeuristicID)
	s := streams(m, field.Value{Role: field.Text, Text: "Yesterday the quick brown fox jumped"})
	c := compile(t, m, "quick brown", phrase.Options{Mode: phrase.Exact})

	res := Snippets(c, s, Options{Snippets: true})
	require.Equal(t, 1, res.Count)
	require.Len(t, res.Snippets, 1)
	assert.Equal(t, Snippet{
		Role:   field.Text,
		Prefix: "Yesterday the",
		Match:  "quick brown",
		Suffix: "fox jumped",
	}, res.Snippets[0])
	assert.Equal(t, 1, Count(c, s))
}

func TestSnippetsNeighbourRadius(t *testing.T) {
	m := model(t, lang.HeuristicID)
	s := streams(m, field.Value{Role: field.Text, Text: "a b c d e f g h"})
	c := compile(t, m, "d", phrase.Options{Mode: phrase.Exact})
	res := Snippets(c, s, Options{Snippets: true, Tokens: 2})
	require.Len(t, res.Snippets, 1)
	assert.Equal(t, "b c", res.Snippets[0].Prefix)
	assert.Equal(t, "e f", res.Snippets[0].Suffix)
}

func TestSnippetsStemmedRestoresCase(t *testing.T) {
	m := model(t, "en")
	s := streams(m, field.Value{Role: field.Text, Text: "Dogs were Running fast."})
	c := compile(t, m, "run", phrase.Options{Mode: phrase.Stemmed, CaseInsensitive: true})
	res := Snippets(c, s, Options{Snippets: true})
	require.Len(t, res.Snippets, 1)
	assert.Equal(t, "Running", res.Snippets[0].Match)
	assert.Equal(t, "Dogs were", res.Snippets[0].Prefix)
	assert.Equal(t, "fast.", res.Snippets[0].Suffix)
}

func TestSnippetsPunctuationSpacing(t *testing.T) {
	m := model(t, lang.HeuristicID)
	tests := []struct {
		name  string
		text  string
		query string
		want  Snippet
	}{
		{
			name:  "brackets",
			text:  "They said (quick brown) today.",
			query: "quick brown",
			want:  Snippet{Role: field.Text, Prefix: "They said (", Match: "quick brown", Suffix: ") today."},
		},
		{
			name:  "straight quotes",
			text:  `He wrote "fox" and "dog" twice`,
			query: "dog",
			want:  Snippet{Role: field.Text, Prefix: `" and "`, Match: "dog", Suffix: `" twice`},
		},
		{
			name:  "curly quotes",
			text:  "a “Quick” fox, b",
			query: "fox",
			want:  Snippet{Role: field.Text, Prefix: "“Quick”", Match: "fox", Suffix: ", b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := streams(m, field.Value{Role: field.Text, Text: tt.text})
			c := compile(t, m, tt.query, phrase.Options{Mode: phrase.Exact})
			res := Snippets(c, s, Options{Snippets: true, Tokens: 3})
			require.Len(t, res.Snippets, 1)
			assert.Equal(t, tt.want, res.Snippets[0])
		})
	}
}

func TestSnippetsStayInField(t *testing.T) {
	m := model(t, lang.HeuristicID)
	s := streams(m,
		field.Value{Role: field.Title, Text: "alpha beta"},
		field.Value{Role: field.Text, Text: "gamma alpha delta"},
	)
	c := compile(t, m, "alpha", phrase.Options{Mode: phrase.Exact, CaseInsensitive: true})
	res := Snippets(c, s, Options{Snippets: true})
	require.Equal(t, 2, res.Count)
	require.Len(t, res.Snippets, 2)

	assert.Equal(t, field.Title, res.Snippets[0].Role)
	assert.Equal(t, "", res.Snippets[0].Prefix)
	assert.Equal(t, "beta", res.Snippets[0].Suffix)
	assert.Equal(t, field.Text, res.Snippets[1].Role)
	assert.Equal(t, "gamma", res.Snippets[1].Prefix)
	assert.Equal(t, "delta", res.Snippets[1].Suffix)

	capped := Snippets(c, s, Options{Snippets: true, Max: 1})
	assert.Equal(t, 2, capped.Count)
	assert.Len(t, capped.Snippets, 1)

	counted := Snippets(c, s, Options{})
	assert.Equal(t, 2, counted.Count)
	assert.Empty(t, counted.Snippets)
}

func TestCountNear(t *testing.T) {
	m := model(t, lang.HeuristicID)
	c := compile(t, m, "alpha ~2 beta", phrase.Options{Mode: phrase.Exact})
	assert.Equal(t, 1, Count(c, streams(m, field.Value{Role: field.Text, Text: "alpha x y beta"})))
	assert.Equal(t, 0, Count(c, streams(m, field.Value{Role: field.Text, Text: "alpha x y z beta"})))
}

func TestEmptyPhraseMatchesNothing(t *testing.T) {
	m := model(t, lang.HeuristicID)
	fields := []field.Value{{Role: field.Text, Text: "anything * at all"}}
	s := streams(m, fields...)
	for _, mode := range []phrase.Mode{phrase.Literal, phrase.Stemmed, phrase.Exact} {
		c := compile(t, m, " * ", phrase.Options{Mode: mode})
		require.True(t, c.Empty)
		assert.Equal(t, 0, Count(c, s))
		assert.Equal(t, Result{}, Snippets(c, s, Options{Snippets: true}))
		assert.Equal(t, Result{}, Literal(c, fields, Options{Snippets: true}))
	}
}

func TestLiteral(t *testing.T) {
	m := model(t, lang.HeuristicID)
	fields := []field.Value{
		{Role: field.Title, Text: "Fox news"},
		{Role: field.Text, Text: "the quick brown fox jumps over"},
	}
	c := compile(t, m, "fox", phrase.Options{Mode: phrase.Literal, Field: field.Text})
	res := Literal(c, fields, Options{Snippets: true, Radius: 5})
	require.Equal(t, 1, res.Count)
	assert.Equal(t, Snippet{Role: field.Text, Prefix: "...rown ", Match: "fox", Suffix: " jump..."}, res.Snippets[0])

	ci := compile(t, m, "FOX", phrase.Options{Mode: phrase.Literal, CaseInsensitive: true})
	res = Literal(ci, fields, Options{Snippets: true})
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, Snippet{Role: field.Title, Match: "Fox", Suffix: " news"}, res.Snippets[0])
}

func TestLiteralRoundTrip(t *testing.T) {
	m := model(t, lang.HeuristicID)
	fields := []field.Value{{Role: field.Text, Text: "prices rose sharply in March"}}
	c := compile(t, m, "rose sharply", phrase.Options{Mode: phrase.Literal})
	res := Literal(c, fields, Options{Snippets: true})
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "rose sharply", res.Snippets[0].Match)
	assert.Equal(t, "prices ", res.Snippets[0].Prefix)
	assert.Equal(t, " in March", res.Snippets[0].Suffix)
}

func TestRegex(t *testing.T) {
	fields := []field.Value{
		{Role: field.Title, Text: "Budget 2025"},
		{Role: field.Text, Text: "from 2024 to 2025, up 12%"},
	}
	re := regexp.MustCompile(`\b\d{4}\b`)
	assert.Equal(t, 3, Regex(re, field.Any, fields, Options{}).Count)
	assert.Equal(t, 2, Regex(re, field.Text, fields, Options{}).Count)
	assert.Equal(t, 0, Regex(regexp.MustCompile(`x*`), field.Any, fields, Options{}).Count)
}

func TestCountLearned(t *testing.T) {
	m := model(t, lang.HeuristicID)
	s := streams(m, field.Value{Role: field.Text, Text: "I love New York and new york"})

	assert.Equal(t, 1, CountLearned("TX1new TX1york", false, s))
	assert.Equal(t, 2, CountLearned("TX*new TX*york", false, s))
	assert.Equal(t, 0, CountLearned("TI*new TI*york", false, s))
	assert.Equal(t, 0, CountLearned("", false, s))
	assert.Equal(t, 0, CountLearned("bad", false, s))
}

func TestCountLearnedStemmed(t *testing.T) {
	m := model(t, "en")
	s := streams(m, field.Value{Role: field.Text, Text: "running runs. Alpha. Beta"})
	assert.Equal(t, 2, CountLearned("TX*run", true, s))
	assert.Equal(t, 0, CountLearned("TX*running", true, s))
	assert.Equal(t, 1, CountLearned("TX*running", false, s))
	// A sentence divider breaks the sequence in the stemmed stream.
	assert.Equal(t, 0, CountLearned("TX*alpha TX*beta", true, s))
}

func TestCountLearnedNoOverlap(t *testing.T) {
	m := model(t, lang.HeuristicID)
	s := streams(m, field.Value{Role: field.Text, Text: "ha ha ha"})
	assert.Equal(t, 1, CountLearned("TX0ha TX0ha", false, s))
}
