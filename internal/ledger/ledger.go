// Package ledger keeps the bounded history of trigger/result observations.
package ledger

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CardPredictor/internal/model"
)

// DefaultWindow is the number of most recent game numbers retained.
const DefaultWindow = 500

// Snapshot is the persisted form of a Ledger.
type Snapshot struct {
	Games        map[int]model.Card  `json:"games"`
	MaxGame      int                 `json:"max_game"`
	Observations []model.Observation `json:"observations"`
}

// Ledger records each game's first card once and emits an observation when
// the game two numbers back is known. Entries older than MaxGame-Window are
// evicted, observations included.
type Ledger struct {
	window int
	snap   Snapshot
	logger zerolog.Logger
}

// New creates an empty ledger. A non-positive window selects DefaultWindow.
func New(window int) *Ledger {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Ledger{
		window: window,
		snap:   Snapshot{Games: make(map[int]model.Card)},
		logger: log.With().Str("component", "ledger").Logger(),
	}
}

// Restore replaces the ledger contents with a persisted snapshot.
func (l *Ledger) Restore(s Snapshot) {
	if s.Games == nil {
		s.Games = make(map[int]model.Card)
	}
	l.snap = s
	l.evict()
}

// Snapshot returns a copy suitable for persistence.
func (l *Ledger) Snapshot() Snapshot {
	games := make(map[int]model.Card, len(l.snap.Games))
	for k, v := range l.snap.Games {
		games[k] = v
	}
	obs := make([]model.Observation, len(l.snap.Observations))
	copy(obs, l.snap.Observations)
	return Snapshot{Games: games, MaxGame: l.snap.MaxGame, Observations: obs}
}

// Record stores the event. recorded is false for a game number already seen.
// When game N-2 is known, the new observation is returned with ok set.
func (l *Ledger) Record(ev model.GameEvent) (obs model.Observation, ok bool, recorded bool) {
	if len(ev.Cards) == 0 {
		return model.Observation{}, false, false
	}
	if l.snap.MaxGame > 0 && ev.GameNumber < l.snap.MaxGame-l.window {
		l.restart(ev.GameNumber)
	}
	if _, seen := l.snap.Games[ev.GameNumber]; seen {
		return model.Observation{}, false, false
	}

	l.snap.Games[ev.GameNumber] = ev.FirstCard()
	if ev.GameNumber > l.snap.MaxGame {
		l.snap.MaxGame = ev.GameNumber
	}

	if trigger, found := l.snap.Games[ev.GameNumber-2]; found {
		obs = model.Observation{
			Trigger:    trigger,
			ResultSuit: ev.FirstCard().Suit,
			SourceGame: ev.GameNumber,
		}
		l.snap.Observations = append(l.snap.Observations, obs)
		ok = true
		l.logger.Debug().
			Int("game", ev.GameNumber).
			Str("trigger", trigger.String()).
			Str("result", string(obs.ResultSuit)).
			Msg("Observation recorded")
	}

	l.evict()
	return obs, ok, true
}

// restart handles a source counter that started over. Seen game numbers are
// forgotten and retained observations are shifted to sit below game so they
// age out of the window as the new numbering advances.
func (l *Ledger) restart(game int) {
	shift := l.snap.MaxGame - game
	for i := range l.snap.Observations {
		l.snap.Observations[i].SourceGame -= shift
	}
	l.logger.Info().
		Int("previous_max", l.snap.MaxGame).
		Int("game", game).
		Int("observations", len(l.snap.Observations)).
		Msg("Game counter restarted")
	l.snap.Games = make(map[int]model.Card)
	l.snap.MaxGame = game
}

func (l *Ledger) evict() {
	floor := l.snap.MaxGame - l.window
	for g := range l.snap.Games {
		if g < floor {
			delete(l.snap.Games, g)
		}
	}
	kept := l.snap.Observations[:0]
	for _, o := range l.snap.Observations {
		if o.SourceGame >= floor {
			kept = append(kept, o)
		}
	}
	l.snap.Observations = kept
}

// Observations returns the retained observations in recording order.
func (l *Ledger) Observations() []model.Observation {
	out := make([]model.Observation, len(l.snap.Observations))
	copy(out, l.snap.Observations)
	return out
}

// Games returns the number of game numbers currently retained.
func (l *Ledger) Games() int {
	return len(l.snap.Games)
}

// MaxGame returns the highest game number recorded since the last restart.
func (l *Ledger) MaxGame() int {
	return l.snap.MaxGame
}

// Reset clears all history.
func (l *Ledger) Reset() {
	l.snap = Snapshot{Games: make(map[int]model.Card)}
}
