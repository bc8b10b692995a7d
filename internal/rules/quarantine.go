package rules

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CardPredictor/internal/model"
)

// DefaultCooldown is the pause on new predictions after a quarantine.
const DefaultCooldown = 30 * time.Minute

// Quarantine suppresses rules that failed until their support grows past the
// count recorded at failure, and holds the global prediction cooldown.
type Quarantine struct {
	cooldown      time.Duration
	entries       map[string]int
	cooldownUntil time.Time
	logger        zerolog.Logger
}

// NewQuarantine creates an empty quarantine. A non-positive cooldown selects DefaultCooldown.
func NewQuarantine(cooldown time.Duration) *Quarantine {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Quarantine{
		cooldown: cooldown,
		entries:  make(map[string]int),
		logger:   log.With().Str("component", "quarantine").Logger(),
	}
}

// IsUsable reports whether r may produce predictions.
func (q *Quarantine) IsUsable(r model.Rule) bool {
	count, ok := q.entries[r.Key()]
	return !ok || count < r.Support
}

// Quarantine records r's current support and starts the cooldown at now.
func (q *Quarantine) Quarantine(r model.Rule, now time.Time) {
	q.entries[r.Key()] = r.Support
	q.cooldownUntil = now.Add(q.cooldown)
	q.logger.Info().
		Str("trigger", r.Trigger.String()).
		Str("suit", string(r.PredictedSuit)).
		Int("support", r.Support).
		Time("cooldown_until", q.cooldownUntil).
		Msg("Rule quarantined")
}

// CoolingDown reports whether new predictions are paused at now.
func (q *Quarantine) CoolingDown(now time.Time) bool {
	return now.Before(q.cooldownUntil)
}

// CooldownRemaining returns how long the pause still lasts at now.
func (q *Quarantine) CooldownRemaining(now time.Time) time.Duration {
	if !q.CoolingDown(now) {
		return 0
	}
	return q.cooldownUntil.Sub(now)
}

// Len returns the number of quarantined rule keys.
func (q *Quarantine) Len() int {
	return len(q.entries)
}

// Entries returns the quarantined support counts keyed by rule key.
func (q *Quarantine) Entries() map[string]int {
	entries := make(map[string]int, len(q.entries))
	for k, v := range q.entries {
		entries[k] = v
	}
	return entries
}

// RestoreEntries replaces the quarantined counts.
func (q *Quarantine) RestoreEntries(entries map[string]int) {
	q.entries = make(map[string]int, len(entries))
	for k, v := range entries {
		q.entries[k] = v
	}
}

// CooldownUntil returns the end of the current pause.
func (q *Quarantine) CooldownUntil() time.Time {
	return q.cooldownUntil
}

// RestoreCooldown sets the end of the pause.
func (q *Quarantine) RestoreCooldown(t time.Time) {
	q.cooldownUntil = t
}

// Reset clears every entry and the cooldown.
func (q *Quarantine) Reset() {
	q.entries = make(map[string]int)
	q.cooldownUntil = time.Time{}
}
