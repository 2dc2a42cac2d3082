// Package matcher counts compiled phrases, regular expressions and learned
// rule keys against a document and cuts context snippets around the hits.
package matcher

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/field"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/phrase"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/stream"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/tagger"
)

const (
	DefaultRadius = 70
	DefaultTokens = 5
	ellipsis      = "..."
)

// Options controls snippet extraction.
type Options struct {
	Snippets bool
	// Radius is the character window around a text hit.
	Radius int
	// Tokens is the neighbour window around a stream hit.
	Tokens int
	// Max caps the number of snippets; zero keeps all.
	Max int
}

func (o Options) withDefaults() Options {
	if o.Radius <= 0 {
		o.Radius = DefaultRadius
	}
	if o.Tokens <= 0 {
		o.Tokens = DefaultTokens
	}
	return o
}

func (o Options) full(n int) bool {
	return !o.Snippets || (o.Max > 0 && n >= o.Max)
}

// Snippet is a hit with its surrounding context.
type Snippet struct {
	Role   field.Role `json:"field"`
	Prefix string     `json:"prefix"`
	Match  string     `json:"match"`
	Suffix string     `json:"suffix"`
}

// Result is a match count with optional snippets.
type Result struct {
	Count    int       `json:"count"`
	Snippets []Snippet `json:"snippets,omitempty"`
}

// Literal counts a literal phrase in the raw text of the fields it is scoped
// to.
func Literal(c *phrase.Compiled, fields []field.Value, opts Options) Result {
	if c.Empty || c.Regex == nil {
		return Result{}
	}
	return Regex(c.Regex, c.Field, fields, opts)
}

// Regex counts non-overlapping matches of re in the raw text of the fields
// with the given role, or of every field for field.Any.
func Regex(re *regexp.Regexp, role field.Role, fields []field.Value, opts Options) Result {
	opts = opts.withDefaults()
	var res Result
	for _, f := range fields {
		if role != field.Any && f.Role != role {
			continue
		}
		for _, loc := range re.FindAllStringIndex(f.Text, -1) {
			if loc[0] == loc[1] {
				continue
			}
			res.Count++
			if opts.full(len(res.Snippets)) {
				continue
			}
			res.Snippets = append(res.Snippets, textSnippet(f, loc[0], loc[1], opts.Radius))
		}
	}
	return res
}

func textSnippet(f field.Value, start, end, radius int) Snippet {
	text := f.Text
	from := max(0, start-radius)
	for from > 0 && !utf8.RuneStart(text[from]) {
		from++
	}
	to := min(len(text), end+radius)
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	s := Snippet{
		Role:   f.Role,
		Prefix: text[from:start],
		Match:  text[start:end],
		Suffix: text[end:to],
	}
	if from > 0 {
		s.Prefix = ellipsis + s.Prefix
	}
	if to < len(text) {
		s.Suffix += ellipsis
	}
	return s
}

// Count counts a token phrase against the stream its mode selects.
func Count(c *phrase.Compiled, s stream.Streams) int {
	if c.Empty || c.Regex == nil {
		return 0
	}
	return len(c.Regex.FindAllStringIndex(target(c, s), -1))
}

func target(c *phrase.Compiled, s stream.Streams) string {
	if c.Mode == phrase.Stemmed {
		return s.Stemmed
	}
	return s.Raw
}

// Snippets counts a token phrase and rebuilds readable snippets from the
// raw stream, restoring case from each entry's case digit. Neighbours from
// other fields are skipped.
func Snippets(c *phrase.Compiled, s stream.Streams, opts Options) Result {
	if c.Empty || c.Regex == nil {
		return Result{}
	}
	opts = opts.withDefaults()
	src := target(c, s)
	locs := c.Regex.FindAllStringIndex(src, -1)
	res := Result{Count: len(locs)}
	if !opts.Snippets || len(locs) == 0 {
		return res
	}

	raw := stream.Entries(s.Raw)
	entries := raw
	if c.Mode == phrase.Stemmed {
		entries = stream.Entries(src)
	}
	byPos := stream.PositionIndex(raw)
	for _, loc := range locs {
		if opts.full(len(res.Snippets)) {
			break
		}
		from, _ := stream.EntryAt(entries, loc[0])
		to, ok := stream.EntryAt(entries, loc[1]-1)
		if !ok {
			to--
		}
		if from >= len(entries) || to < from {
			continue
		}
		first, ok1 := byPos[entries[from].Pos]
		last, ok2 := byPos[entries[to].Pos]
		if !ok1 || !ok2 {
			continue
		}
		res.Snippets = append(res.Snippets, streamSnippet(raw, first, last, opts.Tokens))
	}
	return res
}

func streamSnippet(raw []stream.Entry, first, last, radius int) Snippet {
	prefix := raw[first].Prefix
	var before, match, after []int
	for i := first - 1; i >= 0 && len(before) < radius; i-- {
		if raw[i].Prefix == prefix {
			before = append(before, i)
		}
	}
	slices.Reverse(before)
	for i := first; i <= last; i++ {
		if raw[i].Prefix == prefix {
			match = append(match, i)
		}
	}
	for i := last + 1; i < len(raw) && len(after) < radius; i++ {
		if raw[i].Prefix == prefix {
			after = append(after, i)
		}
	}

	start := first
	if len(before) > 0 {
		start = before[0]
	}
	var sp spacer
	for i := range start {
		if raw[i].Prefix == prefix && raw[i].Text == `"` {
			sp.quoted = !sp.quoted
		}
	}
	role, _ := field.ByPrefix(prefix)
	return Snippet{
		Role:   role,
		Prefix: sp.join(raw, before),
		Match:  sp.join(raw, match),
		Suffix: sp.join(raw, after),
	}
}

// spacer joins restored words. Closing punctuation attaches to the word
// before it and opening punctuation to the word after it; straight double
// quotes alternate between the two.
type spacer struct {
	quoted bool
}

func (s *spacer) join(raw []stream.Entry, idx []int) string {
	var b strings.Builder
	glue := true
	for _, i := range idx {
		w := tagger.Restore(raw[i].Text, raw[i].Case)
		open, shut := opening(w), closing(w)
		if w == `"` {
			open, shut = !s.quoted, s.quoted
			s.quoted = !s.quoted
		}
		if !glue && !shut {
			b.WriteByte(' ')
		}
		b.WriteString(w)
		glue = open
	}
	return b.String()
}

func opening(w string) bool {
	switch w {
	case "(", "[", "{", "“":
		return true
	}
	return false
}

func closing(w string) bool {
	switch w {
	case ".", ",", ";", ":", "!", "?", ")", "]", "}", "”":
		return true
	}
	return false
}

// CountLearned walks a learned rule key across stream segments. Each key
// token must agree on prefix and text, and on case unless the key carries
// the any-case marker. Matches do not overlap and never span a gap.
func CountLearned(key string, stemmed bool, s stream.Streams) int {
	want := parseKey(key)
	if len(want) == 0 {
		return 0
	}
	src := s.Raw
	if stemmed {
		src = s.Stemmed
	}
	count := 0
	for _, seg := range stream.Parse(src) {
		for i := 0; i+len(want) <= len(seg); {
			if matchAt(seg[i:], want) {
				count++
				i += len(want)
				continue
			}
			i++
		}
	}
	return count
}

type keyToken struct {
	prefix string
	kase   byte
	text   string
}

const anyCase = '*'

func parseKey(key string) []keyToken {
	parts := strings.Fields(key)
	out := make([]keyToken, 0, len(parts))
	for _, p := range parts {
		if len(p) < 4 {
			return nil
		}
		out = append(out, keyToken{prefix: p[:2], kase: p[2], text: p[3:]})
	}
	return out
}

func matchAt(seg stream.Segment, want []keyToken) bool {
	for i, k := range want {
		e := seg[i]
		if e.Prefix != k.prefix || e.Text != k.text {
			return false
		}
		if k.kase != anyCase && e.Case.Digit() != k.kase {
			return false
		}
	}
	return true
}
