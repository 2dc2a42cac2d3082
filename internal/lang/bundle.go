package lang

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/errors"
)

// Bundle is the on-disk (YAML) form of a language model.
type Bundle struct {
	ID             string            `yaml:"id"`
	Names          []string          `yaml:"names"`
	Version        string            `yaml:"version"`
	WritingSystem  string            `yaml:"writing_system"`
	Tokenizer      string            `yaml:"tokenizer"`
	QueryTokenizer string            `yaml:"query_tokenizer"`
	Stemmer        string            `yaml:"stemmer"`
	Syllabifier    string            `yaml:"syllabifier"`
	Stopwords      []string          `yaml:"stopwords"`
	Common         []string          `yaml:"common"`
	Numerals       []string          `yaml:"numerals"`
	SentenceDelims []string          `yaml:"sentence_delims"`
	QuoteDelims    []string          `yaml:"quote_delims"`
	EmphasisDelims []string          `yaml:"emphasis_delims"`
	CaseTable      map[string]string `yaml:"case_table"`
	NonIndexable   []string          `yaml:"non_indexable"`
	Dividers       []string          `yaml:"dividers"`
	Rules          []RuleSpec        `yaml:"rules"`
	Lookups        []LookupSpec      `yaml:"lookups"`
}

// RuleSpec is a feature-mining rule as written in a bundle. Patterns may use
// group macros: <TAG> is a token carrying TAG, <A|B> a token carrying A or
// B, <A+B> a token carrying both, and <.> any token.
type RuleSpec struct {
	CaseSensitive bool    `yaml:"case_sensitive"`
	Weight        float64 `yaml:"weight"`
	Stem          bool    `yaml:"stem"`
	Strip         int     `yaml:"strip"`
	Pattern       string  `yaml:"pattern"`
}

// LookupSpec is a dictionary pass step as written in a bundle.
type LookupSpec struct {
	Dict         string `yaml:"dict"`
	CapsOnly     bool   `yaml:"caps_only"`
	StopOnMatch  bool   `yaml:"stop_on_match"`
	Stem         bool   `yaml:"stem"`
	UncommonOnly bool   `yaml:"uncommon_only"`
}

const (
	defaultTokenizer      = `\p{N}+(?:[.,:]\p{N}+)+|[\p{L}\p{N}]+(?:['’\-.&][\p{L}\p{N}]+)*|[^\s\p{L}\p{N}]`
	defaultQueryTokenizer = `~\d*|\p{N}+(?:[.,:]\p{N}+)+|[\p{L}\p{N}*]*[\p{L}\p{N}][\p{L}\p{N}*]*(?:['’\-.&][\p{L}\p{N}*]+)*|\*|[^\s\p{L}\p{N}*~]`
)

var macroRe = regexp.MustCompile(`<([A-Z_|+.]+)>`)

const groupTail = `(?:[A-Z_]+;)*:\d+ `

// expandRule rewrites group macros into plain regular expressions over the
// tag-annotated line.
func expandRule(pattern string) string {
	return macroRe.ReplaceAllStringFunc(pattern, func(m string) string {
		body := m[1 : len(m)-1]
		switch {
		case body == ".":
			return `(?:;` + groupTail + `)`
		case strings.Contains(body, "+"):
			tags := strings.Split(body, "+")
			sort.Strings(tags)
			var b strings.Builder
			b.WriteString(`(?:;`)
			for _, t := range tags {
				b.WriteString(`(?:[A-Z_]+;)*`)
				b.WriteString(regexp.QuoteMeta(t))
				b.WriteString(`;`)
			}
			b.WriteString(groupTail)
			b.WriteString(`)`)
			return b.String()
		default:
			alts := strings.Split(body, "|")
			for i, a := range alts {
				alts[i] = regexp.QuoteMeta(a)
			}
			return `(?:;(?:[A-Z_]+;)*(?:` + strings.Join(alts, "|") + `);` + groupTail + `)`
		}
	})
}

// compile turns a bundle into a Model. Dictionaries are resolved by the
// caller through dict.
func compile(b *Bundle, dict func(name string) ([]DictEntry, error), warn func(msg string, args ...any)) (*Model, error) {
	ws, ok := parseWritingSystem(b.WritingSystem)
	if !ok {
		return nil, fmt.Errorf("model %s: unknown writing system %q: %w", b.ID, b.WritingSystem, apperrors.ErrInvalidInput)
	}
	tokSrc := b.Tokenizer
	if tokSrc == "" {
		tokSrc = defaultTokenizer
	}
	tok, err := regexp.Compile(tokSrc)
	if err != nil {
		return nil, fmt.Errorf("model %s tokenizer: %w", b.ID, err)
	}
	qtokSrc := b.QueryTokenizer
	if qtokSrc == "" {
		qtokSrc = defaultQueryTokenizer
	}
	qtok, err := regexp.Compile(qtokSrc)
	if err != nil {
		return nil, fmt.Errorf("model %s query tokenizer: %w", b.ID, err)
	}

	stem, ok := lookupStemmer(b.Stemmer)
	if !ok {
		warn("stemmer unavailable, using identity", "model", b.ID, "stemmer", b.Stemmer)
	}
	syl, ok := lookupSyllabifier(b.Syllabifier)
	if !ok {
		warn("syllabifier unavailable, using unigram counting", "model", b.ID, "syllabifier", b.Syllabifier)
	}

	m := &Model{
		ID:             b.ID,
		Names:          b.Names,
		Version:        b.Version,
		WritingSystem:  ws,
		Tokenizer:      tok,
		QueryTokenizer: qtok,
		StemmerID:      b.Stemmer,
		SyllabifierID:  b.Syllabifier,
		stem:           stem,
		syllables:      syl,
		Stopwords:      toSet(b.Stopwords, true),
		Common:         toSet(b.Common, true),
		Numerals:       toSet(b.Numerals, true),
		SentenceDelims: toSet(b.SentenceDelims, false),
		QuoteDelims:    toSet(b.QuoteDelims, false),
		EmphasisDelims: toSet(b.EmphasisDelims, false),
		CaseTable:      make(map[string]CaseClass, len(b.CaseTable)),
		NonIndexable:   b.NonIndexable,
		Dividers:       b.Dividers,
	}
	// Stopwords are always common words.
	for w := range m.Stopwords {
		m.Common[w] = struct{}{}
	}
	for w, c := range b.CaseTable {
		m.CaseTable[w] = parseCaseClass(c)
	}
	if len(m.NonIndexable) == 0 {
		m.NonIndexable = []string{TagPunct}
	}
	if len(m.Dividers) == 0 {
		m.Dividers = []string{TagSentEnd}
	}

	for i, rs := range b.Rules {
		re, err := regexp.Compile(expandRule(rs.Pattern))
		if err != nil {
			return nil, fmt.Errorf("model %s rule %d: %v: %w", b.ID, i, err, apperrors.ErrInvalidRule)
		}
		if rs.Strip < int(KeepAll) || rs.Strip > int(DropBoth) {
			return nil, fmt.Errorf("model %s rule %d: strip code %d: %w", b.ID, i, rs.Strip, apperrors.ErrInvalidRule)
		}
		m.Rules = append(m.Rules, MiningRule{
			CaseSensitive: rs.CaseSensitive,
			Weight:        rs.Weight,
			Stem:          rs.Stem,
			Strip:         Strip(rs.Strip),
			Source:        rs.Pattern,
			Pattern:       re,
		})
	}

	for _, ls := range b.Lookups {
		entries, err := dict(ls.Dict)
		if err != nil {
			return nil, fmt.Errorf("model %s dictionary %s: %w", b.ID, ls.Dict, err)
		}
		var stemFn func(string) string
		if ls.Stem {
			stemFn = m.Stem
		}
		d, err := newDictionary(ls.Dict, entries, stemFn)
		if err != nil {
			return nil, fmt.Errorf("model %s: %v: %w", b.ID, err, apperrors.ErrDictionaryMissing)
		}
		m.Lookups = append(m.Lookups, Lookup{
			Dict:         d,
			Tag:          strings.ToUpper(ls.Dict),
			CapsOnly:     ls.CapsOnly,
			StopOnMatch:  ls.StopOnMatch,
			Stem:         ls.Stem,
			UncommonOnly: ls.UncommonOnly,
		})
	}
	return m, nil
}
