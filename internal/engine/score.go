package engine

import (
	"fmt"
	"regexp"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/field"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/lang"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/phrase"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/ranker"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/rules"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/stream"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/tagger"
	apperrors "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/errors"
)

// ScoreImportance scores an entry against a rule set and returns the
// importance and the winning flag, zero when no flagging rule matched.
func (e *Engine) ScoreImportance(doc Document, weight float64, rs []rules.Rule) (float64, int64, error) {
	imp, err := e.Score(doc, weight, rs)
	if err != nil {
		return 0, 0, err
	}
	return imp.Score, imp.Flag, nil
}

// Score is ScoreImportance with the per-rule breakdown. Rules whose scope
// does not cover the entry are skipped; an invalid rule fails the whole
// scoring.
func (e *Engine) Score(doc Document, weight float64, rs []rules.Rule) (ranker.Importance, error) {
	m, err := e.models.Get(doc.Lang)
	if err != nil {
		return ranker.Importance{}, fmt.Errorf("scoring entry %d: %w", doc.ID, err)
	}
	fields, _ := tagger.Tag(doc.Fields, m, tagger.Options{})

	scoped := make([]rules.Rule, 0, len(rs))
	for _, r := range rs {
		if r.Applies(m.ID, doc.FeedID, doc.Category) {
			scoped = append(scoped, r)
		}
	}
	c := &docCounter{
		engine:  e,
		model:   m,
		fields:  doc.Fields,
		streams: stream.Serialize(fields, m),
	}
	imp, err := ranker.Score(c, weight, scoped)
	if err != nil {
		return ranker.Importance{}, fmt.Errorf("scoring entry %d: %w", doc.ID, err)
	}
	return imp, nil
}

// docCounter counts rules against one tagged entry.
type docCounter struct {
	engine  *Engine
	model   *lang.Model
	fields  []field.Value
	streams stream.Streams
}

func (d *docCounter) CountRule(r rules.Rule) (int, error) {
	if err := rules.Validate(r); err != nil {
		return 0, err
	}
	switch r.Type {
	case rules.TypeLearnedStemmed, rules.TypeLearnedExact:
		return matcher.CountLearned(r.Search, r.Type.Stemmed(), d.streams), nil
	case rules.TypeRegex:
		expr := r.Search
		if r.CaseInsensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return 0, fmt.Errorf("rule %q: %w: %v", r.Name, apperrors.ErrInvalidRule, err)
		}
		return matcher.Regex(re, r.Field, d.fields, matcher.Options{}).Count, nil
	}

	mode := phrase.Literal
	switch r.Type {
	case rules.TypeStemmed:
		mode = phrase.Stemmed
	case rules.TypeExact:
		mode = phrase.Exact
	}
	c, err := d.engine.compile(r.Search, d.model, phrase.Options{
		Mode:            mode,
		Field:           r.Field,
		CaseInsensitive: r.CaseInsensitive,
	})
	if err != nil {
		return 0, err
	}
	if mode == phrase.Literal {
		return matcher.Literal(c, d.fields, matcher.Options{}).Count, nil
	}
	return matcher.Count(c, d.streams), nil
}
