// Package prediction owns prediction records: creation from a matched rule,
// verification against later games, and the message texts for both.
package prediction

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CardPredictor/internal/model"
)

// Lookahead is the distance from the source game to the target game.
const Lookahead = 2

// MaxOffset is the last game after the target at which a prediction may still win.
const MaxOffset = 2

// Resolution describes a prediction that reached a terminal status.
type Resolution struct {
	Prediction model.Prediction
	// Quarantine is set when the producing rule must be quarantined.
	Quarantine bool
}

// Book holds predictions keyed by target game.
type Book struct {
	// NearMissQuarantine makes a win at MaxOffset quarantine its rule like a loss.
	NearMissQuarantine bool

	items  map[int]*model.Prediction
	logger zerolog.Logger
}

// NewBook creates an empty book.
func NewBook(nearMissQuarantine bool) *Book {
	return &Book{
		NearMissQuarantine: nearMissQuarantine,
		items:              make(map[int]*model.Prediction),
		logger:             log.With().Str("component", "predictions").Logger(),
	}
}

// Has reports whether a prediction already targets game.
func (b *Book) Has(target int) bool {
	_, ok := b.items[target]
	return ok
}

// Create adds a pending prediction for ev.GameNumber+Lookahead. It returns
// false when a prediction for that target already exists.
func (b *Book) Create(ev model.GameEvent, rule model.Rule, now time.Time) (model.Prediction, bool) {
	target := ev.GameNumber + Lookahead
	if b.Has(target) {
		return model.Prediction{}, false
	}
	p := &model.Prediction{
		ID:            uuid.NewString(),
		SourceGame:    ev.GameNumber,
		TargetGame:    target,
		Trigger:       rule.Trigger,
		PredictedSuit: rule.PredictedSuit,
		RuleSupport:   rule.Support,
		Status:        model.StatusPending,
		CreatedAt:     now,
	}
	b.items[target] = p
	b.logger.Info().
		Str("id", p.ID).
		Int("game", p.SourceGame).
		Int("target", target).
		Str("trigger", rule.Trigger.String()).
		Str("suit", string(rule.PredictedSuit)).
		Int("support", rule.Support).
		Msg("Prediction created")
	return *p, true
}

// Bind attaches the published message reference to the prediction for target.
func (b *Book) Bind(target int, ref model.MessageRef) bool {
	p, ok := b.items[target]
	if !ok {
		return false
	}
	p.MessageRef = ref
	return true
}

// Verify checks every pending prediction against ev. A prediction wins at
// offset ev.GameNumber-target when the first group holds its suit, and is
// lost when the offset reaches MaxOffset without a match.
func (b *Book) Verify(ev model.GameEvent, now time.Time) []Resolution {
	var out []Resolution
	for _, p := range b.pending() {
		offset := ev.GameNumber - p.TargetGame
		if offset < 0 || offset > MaxOffset {
			continue
		}

		switch {
		case ev.HasSuit(p.PredictedSuit):
			p.Status = model.StatusWon
			p.Offset = offset
		case offset == MaxOffset:
			p.Status = model.StatusLost
			p.Offset = offset
		default:
			continue
		}
		p.ResolvedAt = now

		quarantine := p.Status == model.StatusLost || (b.NearMissQuarantine && offset == MaxOffset)
		b.logger.Info().
			Str("id", p.ID).
			Int("target", p.TargetGame).
			Int("game", ev.GameNumber).
			Str("suit", string(p.PredictedSuit)).
			Str("status", string(p.Status)).
			Int("offset", offset).
			Msg("Prediction resolved")
		out = append(out, Resolution{Prediction: *p, Quarantine: quarantine})
	}
	return out
}

func (b *Book) pending() []*model.Prediction {
	var out []*model.Prediction
	for _, p := range b.items {
		if p.Status == model.StatusPending {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetGame < out[j].TargetGame })
	return out
}

// Get returns the prediction for target.
func (b *Book) Get(target int) (model.Prediction, bool) {
	p, ok := b.items[target]
	if !ok {
		return model.Prediction{}, false
	}
	return *p, true
}

// Tally counts predictions by status.
func (b *Book) Tally() model.Tally {
	var t model.Tally
	for _, p := range b.items {
		t.Total++
		switch p.Status {
		case model.StatusWon:
			t.Won++
		case model.StatusLost:
			t.Lost++
		default:
			t.Pending++
		}
	}
	return t
}

// DropPending removes unresolved predictions and returns how many were removed.
func (b *Book) DropPending() int {
	n := 0
	for k, p := range b.items {
		if p.Status == model.StatusPending {
			delete(b.items, k)
			n++
		}
	}
	return n
}

// Reset removes every prediction.
func (b *Book) Reset() {
	b.items = make(map[int]*model.Prediction)
}

// Snapshot returns the predictions ordered by target game.
func (b *Book) Snapshot() []model.Prediction {
	out := make([]model.Prediction, 0, len(b.items))
	for _, p := range b.items {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetGame < out[j].TargetGame })
	return out
}

// Restore replaces the book contents with persisted predictions.
func (b *Book) Restore(preds []model.Prediction) {
	b.items = make(map[int]*model.Prediction, len(preds))
	for i := range preds {
		p := preds[i]
		b.items[p.TargetGame] = &p
	}
}
