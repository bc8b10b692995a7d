// Package rules derives trigger→suit rules from ledger observations and
// tracks rules that recently failed.
package rules

import (
	"sort"
	"time"

	"github.com/Alias1177/CardPredictor/internal/model"
)

// PerSuit is the number of rules kept for each result suit.
const PerSuit = 2

// Recompute builds a fresh rule set from observations. For every result suit
// the PerSuit most frequent triggers are kept; equal counts are ordered by the
// position at which the trigger first appears in observations. Rules are
// listed in canonical suit order, strongest first within a suit.
func Recompute(observations []model.Observation, version int, now time.Time) model.RuleSet {
	type tally struct {
		trigger    model.Card
		count      int
		firstIndex int
	}

	firstSeen := make(map[model.Card]int)
	bySuit := make(map[model.Suit]map[model.Card]*tally)

	for i, o := range observations {
		if _, ok := firstSeen[o.Trigger]; !ok {
			firstSeen[o.Trigger] = i
		}
		group, ok := bySuit[o.ResultSuit]
		if !ok {
			group = make(map[model.Card]*tally)
			bySuit[o.ResultSuit] = group
		}
		t, ok := group[o.Trigger]
		if !ok {
			t = &tally{trigger: o.Trigger}
			group[o.Trigger] = t
		}
		t.count++
	}

	var out []model.Rule
	for _, suit := range model.Suits {
		group := bySuit[suit]
		if len(group) == 0 {
			continue
		}
		ranked := make([]*tally, 0, len(group))
		for _, t := range group {
			t.firstIndex = firstSeen[t.trigger]
			ranked = append(ranked, t)
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].count != ranked[j].count {
				return ranked[i].count > ranked[j].count
			}
			return ranked[i].firstIndex < ranked[j].firstIndex
		})
		if len(ranked) > PerSuit {
			ranked = ranked[:PerSuit]
		}
		for _, t := range ranked {
			out = append(out, model.Rule{Trigger: t.trigger, PredictedSuit: suit, Support: t.count})
		}
	}

	return model.RuleSet{Rules: out, Version: version, ComputedAt: now}
}

// Select returns the usable rule for trigger with the highest support. Ties
// keep rule-set order.
func Select(rs model.RuleSet, trigger model.Card, usable func(model.Rule) bool) (model.Rule, bool) {
	var (
		best  model.Rule
		found bool
	)
	for _, r := range rs.Matching(trigger) {
		if !usable(r) {
			continue
		}
		if !found || r.Support > best.Support {
			best, found = r, true
		}
	}
	return best, found
}
