// Package rules defines scoring rules, their validation and the conversion
// of learned features into rules.
package rules

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/field"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/learner"
	apperrors "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/errors"
)

// Type selects how a rule's search string is matched.
type Type int

const (
	TypeString Type = iota
	TypeStemmed
	TypeExact
	TypeRegex
	TypeLearnedStemmed
	TypeLearnedExact
)

var typeNames = map[Type]string{
	TypeString:         "string",
	TypeStemmed:        "stemmed",
	TypeExact:          "exact",
	TypeRegex:          "regex",
	TypeLearnedStemmed: "learned-stemmed",
	TypeLearnedExact:   "learned-exact",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ParseType accepts a type name or its numeric code.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, n := range typeNames {
		if n == s || fmt.Sprint(int(t)) == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("rule type %q: %w", s, apperrors.ErrInvalidRule)
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts the same forms as ParseType.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

func (t Type) Learned() bool {
	return t == TypeLearnedStemmed || t == TypeLearnedExact
}

// Stemmed reports whether the type is evaluated against the stemmed stream.
func (t Type) Stemmed() bool {
	return t == TypeStemmed || t == TypeLearnedStemmed
}

// Rule is one scoring rule. Zero FeedID, Flag and ContextID mean unset.
type Rule struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Type            Type       `json:"type"`
	FeedID          int64      `json:"feed_id,omitempty"`
	Category        string     `json:"category,omitempty"`
	Field           field.Role `json:"field"`
	Search          string     `json:"search"`
	CaseInsensitive bool       `json:"case_insensitive"`
	Lang            string     `json:"lang,omitempty"`
	Weight          float64    `json:"weight"`
	Additive        bool       `json:"additive"`
	Learned         bool       `json:"learned"`
	Flag            int64      `json:"flag,omitempty"`
	ContextID       int64      `json:"context_id,omitempty"`
	ArchivedWeight  float64    `json:"archived_weight,omitempty"`
}

// EffectiveWeight is the weight used for scoring. A learned rule whose
// context document is gone scores with its archived weight.
func (r Rule) EffectiveWeight() float64 {
	if r.Learned && r.ContextID == 0 {
		return r.ArchivedWeight
	}
	return r.Weight
}

// Archive detaches a learned rule from its context document, keeping its
// current weight.
func (r Rule) Archive() Rule {
	if r.ArchivedWeight == 0 {
		r.ArchivedWeight = r.Weight
	}
	r.ContextID = 0
	return r
}

// Applies reports whether the rule's scope covers a document. Language
// scopes may be globs such as "en*".
func (r Rule) Applies(lang string, feedID int64, category string) bool {
	if r.FeedID != 0 && r.FeedID != feedID {
		return false
	}
	if r.Category != "" && !strings.EqualFold(r.Category, category) {
		return false
	}
	if r.Lang == "" {
		return true
	}
	g, err := glob.Compile(strings.ToLower(r.Lang))
	if err != nil {
		return strings.EqualFold(r.Lang, lang)
	}
	return g.Match(strings.ToLower(lang))
}

// Validate checks a rule before it is stored or scored.
func Validate(r Rule) error {
	if !r.Type.Valid() {
		return fmt.Errorf("rule %q: unknown type %d: %w", r.Name, int(r.Type), apperrors.ErrInvalidRule)
	}
	if strings.TrimSpace(r.Search) == "" {
		return fmt.Errorf("rule %q: empty search string: %w", r.Name, apperrors.ErrInvalidRule)
	}
	if math.IsNaN(r.Weight) || math.IsInf(r.Weight, 0) {
		return fmt.Errorf("rule %q: weight %v: %w", r.Name, r.Weight, apperrors.ErrInvalidRule)
	}
	if r.Learned != r.Type.Learned() {
		return fmt.Errorf("rule %q: learned=%t with type %s: %w", r.Name, r.Learned, r.Type, apperrors.ErrTypeMismatch)
	}
	switch {
	case r.Type == TypeRegex:
		if _, err := regexp.Compile(r.Search); err != nil {
			return fmt.Errorf("rule %q: %w: %v", r.Name, apperrors.ErrInvalidRule, err)
		}
	case r.Type.Learned():
		if r.ContextID == 0 && r.ArchivedWeight == 0 {
			return fmt.Errorf("rule %q: learned rule without context or archived weight: %w", r.Name, apperrors.ErrInvalidRule)
		}
		return checkKey(r)
	}
	return nil
}

// checkKey verifies a learned key is well formed and that a stemmed rule
// only names fields whose stemmed stream holds stems.
func checkKey(r Rule) error {
	for _, tok := range strings.Fields(r.Search) {
		if len(tok) < 4 {
			return fmt.Errorf("rule %q: malformed key token %q: %w", r.Name, tok, apperrors.ErrInvalidRule)
		}
		role, ok := field.ByPrefix(tok[:2])
		if !ok {
			return fmt.Errorf("rule %q: unknown field prefix %q: %w", r.Name, tok[:2], apperrors.ErrInvalidRule)
		}
		if c := tok[2]; c != learner.AnyCase && (c < '0' || c > '3') {
			return fmt.Errorf("rule %q: bad case marker %q: %w", r.Name, c, apperrors.ErrInvalidRule)
		}
		if r.Type == TypeLearnedStemmed && !role.Stem() {
			return fmt.Errorf("rule %q: stemmed rule on unstemmed field %s: %w", r.Name, role, apperrors.ErrTypeMismatch)
		}
	}
	return nil
}

// FromFeatures turns mined features into learned rules keyed to the
// context document, ordered by key.
func FromFeatures(features map[string]learner.Feature, contextID int64, lang string) []Rule {
	keys := make([]string, 0, len(features))
	for k := range features {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Rule, 0, len(keys))
	for _, k := range keys {
		f := features[k]
		t := TypeLearnedExact
		if f.Stemmed {
			t = TypeLearnedStemmed
		}
		out = append(out, Rule{
			Name:            f.Name,
			Type:            t,
			Field:           f.Role,
			Search:          f.Key,
			CaseInsensitive: anyCase(f.Key),
			Lang:            lang,
			Weight:          f.Weight,
			Additive:        true,
			Learned:         true,
			ContextID:       contextID,
			ArchivedWeight:  f.Weight,
		})
	}
	return out
}

func anyCase(key string) bool {
	for _, tok := range strings.Fields(key) {
		if len(tok) < 3 || tok[2] != learner.AnyCase {
			return false
		}
	}
	return true
}
