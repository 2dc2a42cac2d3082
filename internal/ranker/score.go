package ranker

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/rules"
)

// Counter counts how often a rule matches one document.
type Counter interface {
	CountRule(r rules.Rule) (int, error)
}

// RuleMatch records one matched rule.
type RuleMatch struct {
	RuleID int64   `json:"rule_id"`
	Count  int     `json:"count"`
	Value  float64 `json:"value"`
}

// Importance is the outcome of rule scoring. Flag is zero when no flagging
// rule matched.
type Importance struct {
	Score   float64     `json:"score"`
	Flag    int64       `json:"flag,omitempty"`
	Matched []RuleMatch `json:"matched,omitempty"`
}

// Score runs every rule against the document. Additive rules add
// count × weight to the total; a non-additive match replaces it. Flagging
// rules vote count × weight for their flag and the highest vote wins, ties
// going to the lower flag id. The total is scaled by the document weight.
func Score(c Counter, docWeight float64, rs []rules.Rule) (Importance, error) {
	var (
		out   Importance
		total float64
		votes = make(map[int64]float64)
	)
	for _, r := range rs {
		n, err := c.CountRule(r)
		if err != nil {
			return Importance{}, fmt.Errorf("rule %d %q: %w", r.ID, r.Name, err)
		}
		if n == 0 {
			continue
		}
		value := float64(n) * r.EffectiveWeight()
		if r.Additive {
			total += value
		} else {
			total = value
		}
		if r.Flag != 0 {
			votes[r.Flag] += value
		}
		out.Matched = append(out.Matched, RuleMatch{RuleID: r.ID, Count: n, Value: value})
	}
	out.Score = total * docWeight
	out.Flag = bestFlag(votes)
	return out, nil
}

func bestFlag(votes map[int64]float64) int64 {
	var (
		best  int64
		score float64
		found bool
	)
	for flag, v := range votes {
		if !found || v > score || (v == score && flag < best) {
			best, score, found = flag, v, true
		}
	}
	return best
}
