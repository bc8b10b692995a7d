package model

import "time"

// Status of a prediction. Won and Lost are terminal.
type Status string

const (
	StatusPending Status = "pending"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
)

// MessageRef is the transport handle of a published message. Zero means unbound.
type MessageRef int

// Prediction stores a forecast that game TargetGame (or one of the next two) shows PredictedSuit.
type Prediction struct {
	ID            string     `json:"id"`
	SourceGame    int        `json:"source_game"`
	TargetGame    int        `json:"target_game"`
	Trigger       Card       `json:"trigger"`
	PredictedSuit Suit       `json:"predicted_suit"`
	RuleSupport   int        `json:"rule_support"`
	Status        Status     `json:"status"`
	Offset        int        `json:"offset,omitempty"`
	MessageRef    MessageRef `json:"message_ref,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    time.Time  `json:"resolved_at,omitempty"`
}

// Terminal reports whether the prediction has been resolved.
func (p Prediction) Terminal() bool {
	return p.Status == StatusWon || p.Status == StatusLost
}

// Rule returns the rule that produced the prediction, with the support it had at creation.
func (p Prediction) Rule() Rule {
	return Rule{Trigger: p.Trigger, PredictedSuit: p.PredictedSuit, Support: p.RuleSupport}
}
