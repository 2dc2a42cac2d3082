// Package tagger splits document fields into tokens and attaches the
// structural and lexical tags the rest of the pipeline keys on. It also
// accumulates the document statistics used for readability and weighting.
package tagger

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/field"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/lang"
)

var operatorRe = regexp.MustCompile(`^(?:\*+|~\d*)$`)

// Options controls a tagging run.
type Options struct {
	// Query switches to the query tokenizer and skips statistics.
	Query bool
}

// Tag tokenizes and tags every field. Positions increase monotonically
// across fields in the order given. Meta fields are tagged but never
// counted in the statistics.
func Tag(fields []field.Value, m *lang.Model, opts Options) ([]FieldTokens, Stats) {
	var (
		out   = make([]FieldTokens, 0, len(fields))
		stats Stats
		pos   int
	)
	for _, f := range fields {
		ft, fs := tagField(f, m, opts, pos)
		pos += len(ft.Tokens)
		out = append(out, ft)
		if !opts.Query && !f.Role.IsMeta() {
			stats.add(fs)
		}
	}
	stats.finalize()
	return out, stats
}

// Query tags a single query string against the given role.
func Query(text string, role field.Role, m *lang.Model) []*Token {
	ft, _ := tagField(field.Value{Role: role, Text: text}, m, Options{Query: true}, 0)
	return ft.Tokens
}

func tagField(f field.Value, m *lang.Model, opts Options, start int) (FieldTokens, Stats) {
	re := m.Tokenizer
	if opts.Query {
		re = m.QueryTokenizer
	}
	raws := re.FindAllString(f.Text, -1)
	ft := FieldTokens{Role: f.Role, Text: f.Text, Tokens: make([]*Token, 0, len(raws))}

	var (
		st            Stats
		quoteOpen     bool
		emphOpen      bool
		sentStart     = true
		sentenceWords int
	)
	stem := f.Role.Stem()
	prefix := f.Role.Prefix()

	for i, raw := range raws {
		tok := newToken(raw, prefix, start+i)
		ft.Tokens = append(ft.Tokens, tok)

		if opts.Query && operatorRe.MatchString(raw) {
			tok.Tag(lang.TagOperator)
			tok.StemLower = tok.Lower
			tok.Stem = tok.Raw
			continue
		}

		if !hasWordRune(raw) {
			tok.Tag(lang.TagPunct)
			tok.Case = lang.Lower
			tok.StemLower = tok.Lower
			tok.Stem = tok.Raw
			switch {
			case m.IsSentenceDelim(raw):
				tok.Tag(lang.TagSentEnd)
				if sentenceWords > 0 {
					st.Sentences++
				}
				sentenceWords = 0
				sentStart = true
			case m.IsQuoteDelim(raw):
				if quoteOpen {
					tok.Tag(lang.TagQuoteEnd)
				} else {
					tok.Tag(lang.TagQuoteBeg)
				}
				quoteOpen = !quoteOpen
			case m.IsEmphasisDelim(raw):
				if emphOpen {
					tok.Tag(lang.TagEmphEnd)
				} else {
					tok.Tag(lang.TagEmphBeg)
				}
				emphOpen = !emphOpen
			}
			continue
		}

		tok.Tag(lang.TagWord)
		st.Words++
		sentenceWords++
		if sentStart {
			tok.Tag(lang.TagSentBegin)
			sentStart = false
		}

		if stem {
			tok.StemLower = m.Stem(tok.Lower)
		} else {
			tok.StemLower = tok.Lower
		}

		if m.Alphabetic() {
			tok.Chars = utf8.RuneCountInString(raw)
			st.Chars += tok.Chars
		}

		if isNumeral(tok.Lower) || m.IsNumeral(tok.Lower) {
			tok.Tag(lang.TagNum)
			tok.Case = lang.Lower
			tok.Stem = tok.StemLower
			st.Numerals++
			continue
		}

		stop := m.IsStop(tok.Lower)
		tok.Case = classify(raw, tok.Lower, m)
		if stop && tok.Case == lang.Capitalized {
			tok.Case = lang.Lower
		}
		if !stop && m.Bicameral() {
			switch {
			case tok.Case == lang.Capitalized && utf8.RuneCountInString(raw) == 1:
				tok.Tag(lang.TagSingleCap)
				st.Caps++
			case tok.Case == lang.Capitalized:
				tok.Tag(lang.TagCap)
				st.Caps++
			case tok.Case == lang.AllCaps:
				tok.Tag(lang.TagAllCap)
				st.Caps++
			}
		}
		tok.Stem = Restore(tok.StemLower, tok.Case)

		switch {
		case stop:
			tok.Tag(lang.TagStop)
			tok.Tag(lang.TagCommon)
			st.Stops++
			st.Common++
		case m.IsCommon(tok.Lower):
			tok.Tag(lang.TagCommon)
			st.Common++
		default:
			tok.Tag(lang.TagUncommon)
			st.Uncommon++
		}

		if m.Alphabetic() {
			tok.Syllables = m.Syllables(tok.Lower)
			st.Syllables += tok.Syllables
			if tok.Syllables >= 3 {
				tok.Tag(lang.TagPoly)
				st.Poly++
			}
		}
	}
	if sentenceWords > 0 {
		st.Sentences++
	}
	return ft, st
}

// classify determines the case shape of a token. Writing systems without
// case consult the model's case table instead.
func classify(raw, lower string, m *lang.Model) lang.CaseClass {
	if !m.Bicameral() {
		if c, ok := m.CaseTable[lower]; ok {
			return c
		}
		return lang.Lower
	}
	var upper, lowers, letters int
	first := true
	firstUpper := false
	for _, r := range raw {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			upper++
			if first {
				firstUpper = true
			}
		case unicode.IsLower(r):
			lowers++
		}
		first = false
	}
	switch {
	case upper == 0:
		return lang.Lower
	case letters == 1 && firstUpper:
		return lang.Capitalized
	case upper == letters:
		return lang.AllCaps
	case firstUpper && upper == 1:
		return lang.Capitalized
	default:
		return lang.Other
	}
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}

var ordinalSuffixes = []string{"st", "nd", "rd", "th"}

// isNumeral recognizes literal numbers, including grouped digits and
// ordinals like "21st".
func isNumeral(lower string) bool {
	for _, suf := range ordinalSuffixes {
		if len(lower) > len(suf) && strings.HasSuffix(lower, suf) {
			lower = strings.TrimSuffix(lower, suf)
			break
		}
	}
	digits := 0
	for _, r := range lower {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '.' || r == ',' || r == ':':
		default:
			return false
		}
	}
	return digits > 0
}
