package phrase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/field"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/lang"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/stream"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/tagger"
)

func model(t *testing.T, id string) *lang.Model {
	t.Helper()
	m, err := lang.NewRegistry(lang.Embedded(), nil).Get(id)
	require.NoError(t, err)
	return m
}

func streams(m *lang.Model, fields ...field.Value) stream.Streams {
	tagged, _ := tagger.Tag(fields, m, tagger.Options{})
	return stream.Serialize(tagged, m)
}

func textStreams(m *lang.Model, s string) stream.Streams {
	return streams(m, field.Value{Role: field.Text, Text: s})
}

func TestCompileExact(t *testing.T) {
	m := model(t, lang.HeuristicID)
	c, err := Compile("alpha beta", m, Options{Mode: Exact, Field: field.Text})
	require.NoError(t, err)
	assert.False(t, c.Empty)
	assert.Equal(t, "%_______TX0alpha _______TX0beta %", c.Pattern)

	s := textStreams(m, "we saw alpha beta today")
	assert.Len(t, c.Regex.FindAllStringIndex(s.Raw, -1), 1)
	assert.Empty(t, c.Regex.FindAllStringIndex(textStreams(m, "alpha gamma beta").Raw, -1))
}

func TestCompileAnyFieldAndCase(t *testing.T) {
	m := model(t, lang.HeuristicID)
	c, err := Compile("Alpha", m, Options{Mode: Exact, CaseInsensitive: true})
	require.NoError(t, err)
	assert.Equal(t, "%"+strings.Repeat("_", 10)+"alpha %", c.Pattern)

	s := streams(m,
		field.Value{Role: field.Title, Text: "ALPHA"},
		field.Value{Role: field.Text, Text: "alpha and Alpha"},
	)
	assert.Len(t, c.Regex.FindAllStringIndex(s.Raw, -1), 3)

	sensitive, err := Compile("Alpha", m, Options{Mode: Exact})
	require.NoError(t, err)
	assert.Len(t, sensitive.Regex.FindAllStringIndex(s.Raw, -1), 1)
}

func TestCompileFieldScope(t *testing.T) {
	m := model(t, lang.HeuristicID)
	c, err := Compile("alpha", m, Options{Mode: Exact, Field: field.Title, CaseInsensitive: true})
	require.NoError(t, err)
	s := streams(m,
		field.Value{Role: field.Title, Text: "alpha"},
		field.Value{Role: field.Text, Text: "alpha alpha"},
	)
	assert.Len(t, c.Regex.FindAllStringIndex(s.Raw, -1), 1)
}

func TestCompileAnyFieldMatchesEveryRole(t *testing.T) {
	m := model(t, lang.HeuristicID)
	s := streams(m,
		field.Value{Role: field.Title, Text: "alpha beta"},
		field.Value{Role: field.Text, Text: "then alpha beta again"},
	)
	for _, mode := range []Mode{Exact, Stemmed} {
		c, err := Compile("alpha beta", m, Options{Mode: mode})
		require.NoError(t, err)
		assert.Contains(t, c.Regex.String(), anyPrefix, mode)
		haystack := s.Raw
		if mode == Stemmed {
			haystack = s.Stemmed
		}
		assert.Len(t, c.Regex.FindAllStringIndex(haystack, -1), 2, mode)
	}
}

func TestCompileNear(t *testing.T) {
	m := model(t, lang.HeuristicID)
	c, err := Compile("alpha ~2 beta", m, Options{Mode: Exact})
	require.NoError(t, err)
	assert.Equal(t, "%_________0alpha %_________0beta %", c.Pattern)

	tests := []struct {
		text string
		want int
	}{
		{"alpha beta", 1},
		{"alpha x beta", 1},
		{"alpha x y beta", 1},
		{"alpha x y z beta", 0},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := c.Regex.FindAllStringIndex(textStreams(m, tt.text).Raw, -1)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestCompileBareNearUsesDefault(t *testing.T) {
	m := model(t, lang.HeuristicID)
	c, err := Compile("alpha ~ beta", m, Options{Mode: Exact, Near: 1})
	require.NoError(t, err)
	assert.True(t, c.Regex.MatchString(textStreams(m, "alpha x beta").Raw))
	assert.False(t, c.Regex.MatchString(textStreams(m, "alpha x y beta").Raw))

	d, err := Compile("alpha ~ beta", m, Options{Mode: Exact})
	require.NoError(t, err)
	assert.True(t, d.Regex.MatchString(textStreams(m, "alpha a b c d e beta").Raw))
	assert.False(t, d.Regex.MatchString(textStreams(m, "alpha a b c d e f beta").Raw))
}

func TestCompileNearBoundaries(t *testing.T) {
	m := model(t, lang.HeuristicID)
	c, err := Compile("alpha ~3 beta", m, Options{Mode: Stemmed})
	require.NoError(t, err)
	assert.False(t, c.Regex.MatchString(textStreams(m, "alpha. beta").Stemmed))
	assert.True(t, c.Regex.MatchString(textStreams(m, "alpha, beta").Stemmed))

	// The raw stream has no dividers, so an exact gap runs over the period.
	exact, err := Compile("alpha ~3 beta", m, Options{Mode: Exact})
	require.NoError(t, err)
	assert.True(t, exact.Regex.MatchString(textStreams(m, "alpha. beta").Raw))
	assert.False(t, exact.Regex.MatchString(streams(m,
		field.Value{Role: field.Text, Text: "alpha"},
		field.Value{Role: field.Text, Text: "beta"},
	).Raw))
}

func TestCompileWildcards(t *testing.T) {
	m := model(t, lang.HeuristicID)
	c, err := Compile("be*ta", m, Options{Mode: Exact})
	require.NoError(t, err)
	assert.Equal(t, "%_________0be%ta %", c.Pattern)
	assert.True(t, c.Regex.MatchString(textStreams(m, "beta").Raw))
	assert.True(t, c.Regex.MatchString(textStreams(m, "bezzta").Raw))
	assert.False(t, c.Regex.MatchString(textStreams(m, "be ta").Raw))

	gap, err := Compile("alpha ** gamma", m, Options{Mode: Exact})
	require.NoError(t, err)
	assert.True(t, gap.Regex.MatchString(textStreams(m, "alpha b c d gamma").Raw))
	crossField := streams(m,
		field.Value{Role: field.Title, Text: "alpha"},
		field.Value{Role: field.Text, Text: "gamma"},
	)
	assert.False(t, gap.Regex.MatchString(crossField.Raw))
}

func TestCompileAnchors(t *testing.T) {
	m := model(t, lang.HeuristicID)
	begin, err := Compile("^alpha", m, Options{Mode: Stemmed})
	require.NoError(t, err)
	assert.True(t, begin.Begin)
	assert.True(t, begin.Regex.MatchString(textStreams(m, "alpha beta").Stemmed))
	assert.False(t, begin.Regex.MatchString(textStreams(m, "beta alpha").Stemmed))

	end, err := Compile("alpha$", m, Options{Mode: Stemmed})
	require.NoError(t, err)
	assert.True(t, end.End)
	assert.True(t, end.Regex.MatchString(textStreams(m, "beta alpha.").Stemmed))
	assert.False(t, end.Regex.MatchString(textStreams(m, "alpha beta").Stemmed))

	both, err := Compile("^alpha$", m, Options{Mode: Exact})
	require.NoError(t, err)
	s := streams(m,
		field.Value{Role: field.Title, Text: "alpha"},
		field.Value{Role: field.Text, Text: "alpha"},
	)
	assert.Len(t, both.Regex.FindAllStringIndex(s.Raw, -1), 2)
}

func TestCompileEscapedAnchors(t *testing.T) {
	m := model(t, lang.HeuristicID)
	c, err := Compile(`\^alpha`, m, Options{Mode: Exact})
	require.NoError(t, err)
	assert.False(t, c.Begin)
	assert.True(t, c.Regex.MatchString(textStreams(m, "^alpha").Raw))
	assert.False(t, c.Regex.MatchString(textStreams(m, "alpha").Raw))

	lit, err := Compile(`price\$`, m, Options{Mode: Literal})
	require.NoError(t, err)
	assert.False(t, lit.End)
	assert.Equal(t, "price$", lit.Text)
}

func TestCompileStemmed(t *testing.T) {
	m := model(t, "en")
	c, err := Compile("running dogs", m, Options{Mode: Stemmed, CaseInsensitive: true})
	require.NoError(t, err)
	assert.True(t, c.Regex.MatchString(textStreams(m, "The Running Dog barked").Stemmed))
	assert.False(t, c.Regex.MatchString(textStreams(m, "The Running Dog barked").Raw))
}

func TestCompileEmpty(t *testing.T) {
	m := model(t, lang.HeuristicID)
	for _, q := range []string{"", "   ", "*", "^$", "^ * $"} {
		for _, mode := range []Mode{Literal, Stemmed, Exact} {
			c, err := Compile(q, m, Options{Mode: mode})
			require.NoError(t, err, "%q %s", q, mode)
			assert.True(t, c.Empty, "%q %s", q, mode)
			assert.Nil(t, c.Regex, "%q %s", q, mode)
		}
	}
	// "~" is an operator only in token modes.
	for _, mode := range []Mode{Stemmed, Exact} {
		c, err := Compile("* ~ **", m, Options{Mode: mode})
		require.NoError(t, err)
		assert.True(t, c.Empty)
	}
}

func TestCompileLiteral(t *testing.T) {
	m := model(t, lang.HeuristicID)
	c, err := Compile("100%_off", m, Options{Mode: Literal})
	require.NoError(t, err)
	assert.Equal(t, `%100\%\_off%`, c.Pattern)
	assert.True(t, c.Regex.MatchString("get 100%_off now"))

	ci, err := Compile("^Breaking", m, Options{Mode: Literal, CaseInsensitive: true})
	require.NoError(t, err)
	assert.Equal(t, "breaking%", ci.Pattern)
	assert.Equal(t, "breaking", ci.Text)
	assert.True(t, ci.Regex.MatchString("BREAKING: news"))
	assert.False(t, ci.Regex.MatchString("not breaking"))
}

func TestCacheReusesCompiled(t *testing.T) {
	m := model(t, lang.HeuristicID)
	var hits, misses int
	c, err := NewCache(8, func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	})
	require.NoError(t, err)

	a, err := c.Compile("alpha", m, Options{Mode: Exact})
	require.NoError(t, err)
	b, err := c.Compile("alpha", m, Options{Mode: Exact})
	require.NoError(t, err)
	assert.Same(t, a, b)

	other, err := c.Compile("alpha", m, Options{Mode: Stemmed})
	require.NoError(t, err)
	assert.NotSame(t, a, other)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 2, misses)
	assert.Equal(t, 2, c.Len())

	_, err = NewCache(0, nil)
	assert.Error(t, err)
}
