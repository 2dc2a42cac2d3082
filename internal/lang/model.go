// Package lang holds language models: tokenizer patterns, stemmers,
// syllabifiers, word lists, lookup dictionaries and feature-mining rules,
// plus the registry that loads them once per process.
package lang

import (
	"regexp"
	"strings"
)

// HeuristicID names the fallback model used when a document has no language.
const HeuristicID = "heuristic"

// WritingSystem classifies how a language is written. It decides which
// tagging rules (case, syllables) apply.
type WritingSystem int

const (
	Bicameral WritingSystem = iota
	Unicameral
	Logographic
)

func parseWritingSystem(s string) (WritingSystem, bool) {
	switch strings.ToLower(s) {
	case "", "bicameral", "alphabetic-bicameral":
		return Bicameral, true
	case "unicameral", "alphabetic-unicameral":
		return Unicameral, true
	case "logographic":
		return Logographic, true
	}
	return Bicameral, false
}

// CaseClass is the case shape of a token. The numeric value is the case
// digit written into composite token codes.
type CaseClass int

const (
	Lower CaseClass = iota
	Capitalized
	AllCaps
	Other
)

// Digit returns the case digit used in composite codes.
func (c CaseClass) Digit() byte {
	return byte('0' + c)
}

func (c CaseClass) String() string {
	switch c {
	case Lower:
		return "lower"
	case Capitalized:
		return "capitalized"
	case AllCaps:
		return "all-caps"
	default:
		return "other"
	}
}

func parseCaseClass(s string) CaseClass {
	switch strings.ToLower(s) {
	case "capitalized", "cap", "1":
		return Capitalized
	case "all-caps", "allcaps", "2":
		return AllCaps
	case "lower", "0":
		return Lower
	}
	return Other
}

// Strip says which edge tokens of a mined phrase are dropped.
type Strip int

const (
	KeepAll Strip = iota
	DropFirst
	DropLast
	DropBoth
)

// Apply trims a token index span according to the strip code.
func (s Strip) Apply(first, last int) (int, int) {
	switch s {
	case DropFirst:
		first++
	case DropLast:
		last--
	case DropBoth:
		first++
		last--
	}
	return first, last
}

// MiningRule is one compiled feature-mining rule.
type MiningRule struct {
	CaseSensitive bool
	Weight        float64
	Stem          bool
	Strip         Strip
	Source        string
	Pattern       *regexp.Regexp
}

// Lookup is one step of the dictionary pass.
type Lookup struct {
	Dict         *Dictionary
	Tag          string
	CapsOnly     bool
	StopOnMatch  bool
	Stem         bool
	UncommonOnly bool
}

// Model is a fully loaded language model. It is immutable once built and
// safe for concurrent use.
type Model struct {
	ID             string
	Names          []string
	Version        string
	WritingSystem  WritingSystem
	Tokenizer      *regexp.Regexp
	QueryTokenizer *regexp.Regexp
	StemmerID      string
	SyllabifierID  string

	stem      Stemmer
	syllables Syllabifier

	Stopwords      map[string]struct{}
	Common         map[string]struct{}
	Numerals       map[string]struct{}
	SentenceDelims map[string]struct{}
	QuoteDelims    map[string]struct{}
	EmphasisDelims map[string]struct{}
	CaseTable      map[string]CaseClass
	NonIndexable   []string
	Dividers       []string

	Rules   []MiningRule
	Lookups []Lookup
}

func (m *Model) Alphabetic() bool {
	return m.WritingSystem != Logographic
}

func (m *Model) Bicameral() bool {
	return m.WritingSystem == Bicameral
}

// Stem returns the stem of a lowercase word.
func (m *Model) Stem(word string) string {
	if m.stem == nil {
		return word
	}
	return m.stem(word)
}

// Syllables counts the syllables of a lowercase word.
func (m *Model) Syllables(word string) int {
	if m.syllables == nil {
		return 1
	}
	return m.syllables(word)
}

func (m *Model) IsStop(lower string) bool {
	_, ok := m.Stopwords[lower]
	return ok
}

func (m *Model) IsCommon(lower string) bool {
	_, ok := m.Common[lower]
	return ok
}

func (m *Model) IsNumeral(lower string) bool {
	_, ok := m.Numerals[lower]
	return ok
}

func (m *Model) IsSentenceDelim(s string) bool {
	_, ok := m.SentenceDelims[s]
	return ok
}

func (m *Model) IsQuoteDelim(s string) bool {
	_, ok := m.QuoteDelims[s]
	return ok
}

func (m *Model) IsEmphasisDelim(s string) bool {
	_, ok := m.EmphasisDelims[s]
	return ok
}

func toSet(words []string, lower bool) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if lower {
			w = strings.ToLower(w)
		}
		set[w] = struct{}{}
	}
	return set
}
