// Package learner mines weighted candidate features from tagged document
// fields. Features become learned rules keyed to the document they came
// from.
package learner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/field"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/lang"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/tagger"
)

// AnyCase replaces the case digit in keys mined by case-insensitive rules.
const AnyCase = '*'

// Feature is one candidate rule.
type Feature struct {
	Key     string     `json:"key"`
	Weight  float64    `json:"weight"`
	Stemmed bool       `json:"stemmed"`
	Name    string     `json:"name"`
	Role    field.Role `json:"field"`
}

// lowInfo tags make a lone token worthless as a feature unless it is
// all-caps.
var lowInfo = append([]string{lang.TagStop, lang.TagCommon}, lang.Structural...)

var posRe = regexp.MustCompile(`:(\d+) `)

// Extract runs the dictionary pass and then mines every field. Duplicate
// keys overwrite earlier ones.
func Extract(fields []tagger.FieldTokens, m *lang.Model) map[string]Feature {
	Lookup(fields, m)
	out := make(map[string]Feature)
	for _, f := range fields {
		if len(f.Tokens) == 0 {
			continue
		}
		if f.Role.IsMeta() {
			feat := metaFeature(f)
			out[feat.Key] = feat
			continue
		}
		mineField(f, m, out)
	}
	return out
}

// Line renders the tag-annotated line of a field: one ";TAG;...;:pos "
// group per token with tags sorted.
func Line(toks []*tagger.Token) string {
	var b strings.Builder
	for _, tok := range toks {
		b.WriteByte(';')
		for _, tag := range tok.Tags() {
			b.WriteString(tag)
			b.WriteByte(';')
		}
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(tok.Pos))
		b.WriteByte(' ')
	}
	return b.String()
}

func mineField(f tagger.FieldTokens, m *lang.Model, out map[string]Feature) {
	line := Line(f.Tokens)
	base := f.Tokens[0].Pos
	weight := f.Role.Weight()

	for _, rule := range m.Rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(line, -1) {
			span := matchedSpan(line[loc[0]:loc[1]], base, f.Tokens, rule.Strip)
			if len(span) == 0 {
				continue
			}
			if len(span) == 1 && span[0].HasAny(lowInfo) && !span[0].Has(lang.TagAllCap) {
				continue
			}
			feat, ok := ruleFeature(span, rule, m)
			if !ok {
				continue
			}
			feat.Weight = rule.Weight * weight
			feat.Role = f.Role
			out[feat.Key] = feat
		}
	}
}

func matchedSpan(match string, base int, toks []*tagger.Token, strip lang.Strip) []*tagger.Token {
	groups := posRe.FindAllStringSubmatch(match, -1)
	if len(groups) == 0 {
		return nil
	}
	first, _ := strconv.Atoi(groups[0][1])
	last, _ := strconv.Atoi(groups[len(groups)-1][1])
	first, last = strip.Apply(first-base, last-base)
	if first < 0 || last >= len(toks) || first > last {
		return nil
	}
	return toks[first : last+1]
}

func ruleFeature(span []*tagger.Token, rule lang.MiningRule, m *lang.Model) (Feature, bool) {
	codes := make([]string, 0, len(span))
	names := make([]string, 0, len(span))
	for _, tok := range span {
		names = append(names, tok.Raw)
		if rule.Stem && tok.HasAny(m.NonIndexable) {
			continue
		}
		codes = append(codes, keyCode(tok, rule.Stem, rule.CaseSensitive))
	}
	if len(codes) == 0 {
		return Feature{}, false
	}
	return Feature{
		Key:     strings.Join(codes, " "),
		Stemmed: rule.Stem,
		Name:    strings.Join(names, " "),
	}, true
}

func keyCode(tok *tagger.Token, stemmed, caseSensitive bool) string {
	if caseSensitive {
		return tok.Code(stemmed)
	}
	return tok.Prefix + string(AnyCase) + tok.Form(stemmed)
}

// metaFeature turns a whole meta field into one exact feature.
func metaFeature(f tagger.FieldTokens) Feature {
	codes := make([]string, len(f.Tokens))
	for i, tok := range f.Tokens {
		codes[i] = keyCode(tok, false, false)
	}
	return Feature{
		Key:    strings.Join(codes, " "),
		Weight: f.Role.Weight(),
		Name:   strings.TrimSpace(f.Text),
		Role:   f.Role,
	}
}
