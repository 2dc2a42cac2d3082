package tagger

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/field"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/lang"
)

// Token is one tagged token of a field.
type Token struct {
	Raw       string
	Lower     string
	Stem      string
	StemLower string
	Case      lang.CaseClass
	Syllables int
	Chars     int
	Prefix    string
	Pos       int

	tags map[string]struct{}
}

func newToken(raw string, prefix string, pos int) *Token {
	return &Token{
		Raw:    raw,
		Lower:  strings.ToLower(raw),
		Prefix: prefix,
		Pos:    pos,
		tags:   make(map[string]struct{}, 4),
	}
}

// Tag adds a tag. Tags accumulate across passes.
func (t *Token) Tag(tag string) {
	t.tags[tag] = struct{}{}
}

func (t *Token) Has(tag string) bool {
	_, ok := t.tags[tag]
	return ok
}

// HasAny reports whether the token carries at least one of tags.
func (t *Token) HasAny(tags []string) bool {
	for _, tag := range tags {
		if t.Has(tag) {
			return true
		}
	}
	return false
}

// Tags returns the tag set sorted.
func (t *Token) Tags() []string {
	out := make([]string, 0, len(t.tags))
	for tag := range t.tags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Form is the lowercase text used in composite codes.
func (t *Token) Form(stemmed bool) string {
	if stemmed {
		return t.StemLower
	}
	return t.Lower
}

// Code is the composite token code: prefix, case digit, lowercase form.
func (t *Token) Code(stemmed bool) string {
	var b strings.Builder
	form := t.Form(stemmed)
	b.Grow(len(t.Prefix) + 1 + len(form))
	b.WriteString(t.Prefix)
	b.WriteByte(t.Case.Digit())
	b.WriteString(form)
	return b.String()
}

// Structural reports whether the token marks structure rather than content.
func (t *Token) Structural() bool {
	return t.HasAny(lang.Structural)
}

// FieldTokens are the tokens of one field.
type FieldTokens struct {
	Role   field.Role
	Text   string
	Tokens []*Token
}

// Restore applies a case class to a lowercase form, for snippet
// reconstruction. Other has no single shape and comes back lowercase.
func Restore(lower string, c lang.CaseClass) string {
	switch c {
	case lang.Capitalized:
		for i, r := range lower {
			return strings.ToUpper(string(r)) + lower[i+len(string(r)):]
		}
		return lower
	case lang.AllCaps:
		return strings.ToUpper(lower)
	default:
		return lower
	}
}
