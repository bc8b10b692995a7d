package model

import "time"

// Tally counts predictions by outcome.
type Tally struct {
	Total   int `json:"total"`
	Won     int `json:"won"`
	Lost    int `json:"lost"`
	Pending int `json:"pending"`
}

// Rate is the success percentage over resolved and pending predictions.
func (t Tally) Rate() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Won) / float64(t.Total) * 100
}

// Report is the administrative snapshot returned by the engine.
type Report struct {
	Active            bool          `json:"active"`
	InSession         bool          `json:"in_session"`
	SourceChannel     int64         `json:"source_channel"`
	PredictionChannel int64         `json:"prediction_channel"`
	CooldownRemaining time.Duration `json:"cooldown_remaining"`
	LedgerGames       int           `json:"ledger_games"`
	LastGame          int           `json:"last_game"`
	Observations      int           `json:"observations"`
	Rules             []Rule        `json:"rules"`
	QuarantinedRules  int           `json:"quarantined_rules"`
	Predictions       Tally         `json:"predictions"`
	RuleSetVersion    string        `json:"rule_set_version"`
	LastRecompute     time.Time     `json:"last_recompute"`
}
