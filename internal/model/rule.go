package model

import "time"

// Rule maps a trigger card to the suit it most often precedes.
type Rule struct {
	Trigger       Card `json:"trigger"`
	PredictedSuit Suit `json:"predicted_suit"`
	Support       int  `json:"support"`
}

// Key identifies the rule independently of its support.
func (r Rule) Key() string {
	return r.Trigger.String() + "_" + string(r.PredictedSuit)
}

// RuleSet is the full output of one recomputation.
type RuleSet struct {
	Rules      []Rule    `json:"rules"`
	Version    int       `json:"version"`
	ComputedAt time.Time `json:"computed_at"`
}

// Lookup returns the rule for the given trigger and suit.
func (rs RuleSet) Lookup(trigger Card, suit Suit) (Rule, bool) {
	for _, r := range rs.Rules {
		if r.Trigger == trigger && r.PredictedSuit == suit {
			return r, true
		}
	}
	return Rule{}, false
}

// Matching returns every rule whose trigger equals card, in rule-set order.
func (rs RuleSet) Matching(card Card) []Rule {
	var out []Rule
	for _, r := range rs.Rules {
		if r.Trigger == card {
			out = append(out, r)
		}
	}
	return out
}
