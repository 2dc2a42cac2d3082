package lang

import (
	"fmt"
	"sort"
	"strings"
)

// Length codes of dictionary entries. Positive values are phrase lengths in
// tokens.
const (
	LenSuffix    = -1
	LenPrefix    = -2
	LenSubstring = -3
)

// DictEntry is one line of a dictionary bundle.
type DictEntry struct {
	Entry string `yaml:"entry"`
	Len   int    `yaml:"len"`
}

// Dictionary answers entity-like lookups over token forms.
type Dictionary struct {
	Name       string
	phrases    map[int]map[string]struct{}
	lengths    []int
	suffixes   []string
	prefixes   []string
	substrings []string
}

func newDictionary(name string, entries []DictEntry, stem func(string) string) (*Dictionary, error) {
	d := &Dictionary{
		Name:    name,
		phrases: make(map[int]map[string]struct{}),
	}
	for i, e := range entries {
		text := strings.ToLower(strings.TrimSpace(e.Entry))
		if text == "" {
			return nil, fmt.Errorf("dictionary %s entry %d: empty", name, i)
		}
		switch {
		case e.Len == LenSuffix:
			d.suffixes = append(d.suffixes, text)
		case e.Len == LenPrefix:
			d.prefixes = append(d.prefixes, text)
		case e.Len == LenSubstring:
			d.substrings = append(d.substrings, text)
		case e.Len > 0:
			words := strings.Fields(text)
			if len(words) != e.Len {
				return nil, fmt.Errorf("dictionary %s entry %q: declared %d tokens, has %d", name, e.Entry, e.Len, len(words))
			}
			if stem != nil {
				for j, w := range words {
					words[j] = stem(w)
				}
			}
			set, ok := d.phrases[e.Len]
			if !ok {
				set = make(map[string]struct{})
				d.phrases[e.Len] = set
				d.lengths = append(d.lengths, e.Len)
			}
			set[strings.Join(words, " ")] = struct{}{}
		default:
			return nil, fmt.Errorf("dictionary %s entry %q: invalid length code %d", name, e.Entry, e.Len)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(d.lengths)))
	return d, nil
}

// Match returns how many tokens, starting at forms[0], are covered by the
// longest matching entry. Zero means no match.
func (d *Dictionary) Match(forms []string) int {
	if len(forms) == 0 {
		return 0
	}
	for _, n := range d.lengths {
		if n > len(forms) {
			continue
		}
		if _, ok := d.phrases[n][strings.Join(forms[:n], " ")]; ok {
			return n
		}
	}
	head := forms[0]
	for _, s := range d.suffixes {
		if len(head) > len(s) && strings.HasSuffix(head, s) {
			return 1
		}
	}
	for _, p := range d.prefixes {
		if len(head) > len(p) && strings.HasPrefix(head, p) {
			return 1
		}
	}
	for _, s := range d.substrings {
		if strings.Contains(head, s) {
			return 1
		}
	}
	return 0
}

// MaxLen is the longest phrase length the dictionary holds.
func (d *Dictionary) MaxLen() int {
	if len(d.lengths) == 0 {
		return 1
	}
	return d.lengths[0]
}
