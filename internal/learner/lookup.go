package learner

import (
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/lang"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/tagger"
)

// Lookup runs the model's dictionaries over every non-meta field and tags
// matched spans NAME_BEGIN, NAME and NAME_END. A one-token match carries
// both edge tags.
func Lookup(fields []tagger.FieldTokens, m *lang.Model) {
	if len(m.Lookups) == 0 {
		return
	}
	for _, f := range fields {
		if f.Role.IsMeta() {
			continue
		}
		lookupField(f.Tokens, m)
	}
}

func lookupField(toks []*tagger.Token, m *lang.Model) {
	for i := 0; i < len(toks); {
		if toks[i].Structural() {
			i++
			continue
		}
		advance := 0
		for _, lk := range m.Lookups {
			if !eligible(toks[i], lk) {
				continue
			}
			n := lk.Dict.Match(forms(toks[i:], lk, m))
			if n == 0 {
				continue
			}
			markSpan(toks[i:i+n], lk.Tag)
			advance = max(advance, n)
			if lk.StopOnMatch {
				break
			}
		}
		i += max(advance, 1)
	}
}

func eligible(tok *tagger.Token, lk lang.Lookup) bool {
	if lk.CapsOnly && !tok.HasAny(capTags) {
		return false
	}
	if lk.UncommonOnly && !tok.Has(lang.TagUncommon) {
		return false
	}
	return true
}

var capTags = []string{lang.TagCap, lang.TagAllCap, lang.TagSingleCap}

// forms collects lookup forms from the head of toks, stopping at the first
// structural token or at the dictionary's longest phrase.
func forms(toks []*tagger.Token, lk lang.Lookup, m *lang.Model) []string {
	limit := min(len(toks), lk.Dict.MaxLen())
	out := make([]string, 0, limit)
	for _, tok := range toks[:limit] {
		if tok.Structural() {
			break
		}
		if lk.Stem {
			out = append(out, m.Stem(tok.Lower))
		} else {
			out = append(out, tok.Lower)
		}
	}
	return out
}

func markSpan(span []*tagger.Token, name string) {
	last := len(span) - 1
	for i, tok := range span {
		switch {
		case i == 0:
			tok.Tag(lang.BeginTag(name))
			if last == 0 {
				tok.Tag(lang.EndTag(name))
			}
		case i == last:
			tok.Tag(lang.EndTag(name))
		default:
			tok.Tag(name)
		}
	}
}
