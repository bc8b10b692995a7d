// Package engine ties the ledger, rule set, quarantine, prediction book and
// session scheduler into one state object. Every exported method serializes
// on a single mutex and persists the records it changed before returning.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CardPredictor/internal/extract"
	"github.com/Alias1177/CardPredictor/internal/ledger"
	"github.com/Alias1177/CardPredictor/internal/model"
	"github.com/Alias1177/CardPredictor/internal/prediction"
	"github.com/Alias1177/CardPredictor/internal/rules"
	"github.com/Alias1177/CardPredictor/internal/session"
	"github.com/Alias1177/CardPredictor/internal/store"
)

// DefaultRecomputeInterval is how often rules are rebuilt from the ledger.
const DefaultRecomputeInterval = 30 * time.Minute

// ResetScope selects what the daily reset clears.
type ResetScope string

const (
	// ResetPending drops unresolved predictions only.
	ResetPending ResetScope = "pending"
	// ResetPredictions drops every prediction once the daily report is out.
	ResetPredictions ResetScope = "predictions"
	// ResetFull also forgets the ledger, rules, quarantine and cooldown.
	ResetFull ResetScope = "full"
)

// ParseResetScope validates a configured scope.
func ParseResetScope(s string) (ResetScope, error) {
	switch ResetScope(s) {
	case ResetPending, ResetPredictions, ResetFull:
		return ResetScope(s), nil
	case "":
		return ResetPredictions, nil
	}
	return "", fmt.Errorf("unknown reset scope %q", s)
}

// Channel kinds accepted by SetChannel.
const (
	ChannelSource     = "source"
	ChannelPrediction = "prediction"
)

// Settings are the administrative switches persisted with the state.
type Settings struct {
	Active            bool  `json:"active"`
	SourceChannel     int64 `json:"source_channel"`
	PredictionChannel int64 `json:"prediction_channel"`
}

// Options configure an Engine. Zero values select defaults.
type Options struct {
	Store              store.Store
	Scheduler          *session.Scheduler
	LedgerWindow       int
	RecomputeInterval  time.Duration
	Cooldown           time.Duration
	NearMissQuarantine bool
	ResetScope         ResetScope
	// Settings apply when no settings record has been persisted yet.
	Settings Settings
	Clock    func() time.Time
}

// Engine is the learning, prediction and verification core.
type Engine struct {
	mu sync.Mutex

	store      store.Store
	sched      *session.Scheduler
	ledger     *ledger.Ledger
	quarantine *rules.Quarantine
	book       *prediction.Book
	ruleSet    model.RuleSet
	settings   Settings

	interval time.Duration
	scope    ResetScope
	now      func() time.Time

	dirty  map[string]bool
	logger zerolog.Logger
}

// New builds an engine and loads every persisted record. Records that are
// absent or unreadable start empty.
func New(ctx context.Context, opts Options) *Engine {
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = session.NewScheduler(time.UTC, nil)
	}
	if opts.RecomputeInterval <= 0 {
		opts.RecomputeInterval = DefaultRecomputeInterval
	}
	if opts.ResetScope == "" {
		opts.ResetScope = ResetPredictions
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	e := &Engine{
		store:      opts.Store,
		sched:      opts.Scheduler,
		ledger:     ledger.New(opts.LedgerWindow),
		quarantine: rules.NewQuarantine(opts.Cooldown),
		book:       prediction.NewBook(opts.NearMissQuarantine),
		settings:   opts.Settings,
		interval:   opts.RecomputeInterval,
		scope:      opts.ResetScope,
		now:        opts.Clock,
		dirty:      make(map[string]bool),
		logger:     log.With().Str("component", "engine").Logger(),
	}
	e.load(ctx)
	return e
}

// OnEvent processes one raw source-channel message and returns the messages
// to publish or edit. Text without a game event yields nil.
func (e *Engine) OnEvent(ctx context.Context, raw string) []model.Action {
	ev, ok := extract.Extract(raw)
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()

	if _, _, recorded := e.ledger.Record(ev); recorded {
		e.markDirty(store.KeyLedger)
	}
	e.recomputeIfDue(now)

	actions := e.verify(ev, now)
	if a, ok := e.maybePredict(ev, now); ok {
		actions = append(actions, a)
	}

	e.persist(ctx)
	return actions
}

func (e *Engine) verify(ev model.GameEvent, now time.Time) []model.Action {
	var actions []model.Action
	for _, res := range e.book.Verify(ev, now) {
		e.markDirty(store.KeyPredictions)
		p := res.Prediction

		if res.Quarantine {
			rule, ok := e.ruleSet.Lookup(p.Trigger, p.PredictedSuit)
			if !ok {
				rule = p.Rule()
			}
			e.quarantine.Quarantine(rule, now)
			e.markDirty(store.KeyQuarantine, store.KeyCooldown)
		}

		text := prediction.Text(p)
		if p.MessageRef == 0 {
			e.logger.Warn().Int("target", p.TargetGame).Msg("Resolved prediction has no bound message, publishing result")
			actions = append(actions, model.Publish(text))
			continue
		}
		actions = append(actions, model.Edit(p.MessageRef, text))
	}
	return actions
}

func (e *Engine) maybePredict(ev model.GameEvent, now time.Time) (model.Action, bool) {
	if !e.settings.Active || !e.sched.IsActive(now) || e.quarantine.CoolingDown(now) {
		return model.Action{}, false
	}
	rule, ok := rules.Select(e.ruleSet, ev.FirstCard(), e.quarantine.IsUsable)
	if !ok {
		return model.Action{}, false
	}
	p, ok := e.book.Create(ev, rule, now)
	if !ok {
		return model.Action{}, false
	}
	e.markDirty(store.KeyPredictions)

	a := model.Publish(prediction.Text(p))
	a.TargetGame = p.TargetGame
	return a, true
}

// BindMessage records the transport's reference for the published prediction
// of target. It reports false when no such prediction exists.
func (e *Engine) BindMessage(ctx context.Context, target int, ref model.MessageRef) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.book.Bind(target, ref) {
		return false
	}
	e.markDirty(store.KeyPredictions)
	e.persist(ctx)
	return true
}

// Tick runs the periodic work due at now: rule refresh, session notices and
// reports, and the daily report followed by the reset.
func (e *Engine) Tick(ctx context.Context, now time.Time) []model.Action {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.recomputeIfDue(now)

	var actions []model.Action
	for _, o := range e.sched.Due(now) {
		e.markDirty(store.KeyReportMarkers)
		switch o.Kind {
		case session.OccasionStart:
			if e.settings.Active {
				actions = append(actions, model.Publish(session.StartText(o.Label)))
			}
		case session.OccasionReport:
			actions = append(actions, model.Publish(e.reportText(o.Label)))
		case session.OccasionDaily:
			actions = append(actions, model.Publish(e.reportText(o.Label)))
			e.reset(now)
			e.markDirty(store.KeyLastReset)
		}
	}

	e.persist(ctx)
	return actions
}

func (e *Engine) reportText(label string) string {
	return session.ReportText(label, e.book.Tally(), session.VersionLabel(e.ruleSet, e.sched.Location()))
}

func (e *Engine) reset(now time.Time) {
	switch e.scope {
	case ResetPending:
		n := e.book.DropPending()
		e.logger.Info().Int("dropped", n).Msg("Daily reset: pending predictions cleared")
	case ResetPredictions:
		e.book.Reset()
		e.logger.Info().Msg("Daily reset: predictions cleared")
	case ResetFull:
		e.book.Reset()
		e.ledger.Reset()
		e.quarantine.Reset()
		e.ruleSet = model.RuleSet{Version: e.ruleSet.Version + 1, ComputedAt: now}
		e.markDirty(store.KeyLedger, store.KeyRules, store.KeyQuarantine, store.KeyCooldown)
		e.logger.Info().Msg("Daily reset: all learned state cleared")
	}
	e.markDirty(store.KeyPredictions)
}

// Reset applies the configured reset scope immediately.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.reset(e.now())
	e.persist(ctx)
}

// ForceRecompute rebuilds the rule set immediately.
func (e *Engine) ForceRecompute(ctx context.Context) model.RuleSet {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.recompute(e.now())
	e.persist(ctx)
	return e.ruleSet
}

func (e *Engine) recomputeIfDue(now time.Time) {
	if e.ruleSet.Version == 0 || now.Sub(e.ruleSet.ComputedAt) >= e.interval {
		e.recompute(now)
	}
}

func (e *Engine) recompute(now time.Time) {
	e.ruleSet = rules.Recompute(e.ledger.Observations(), e.ruleSet.Version+1, now)
	e.markDirty(store.KeyRules)
	e.logger.Info().
		Int("version", e.ruleSet.Version).
		Int("rules", len(e.ruleSet.Rules)).
		Int("observations", len(e.ledger.Observations())).
		Msg("Rules recomputed")
}

// SetMode enables or disables issuing new predictions. Learning and
// verification continue either way.
func (e *Engine) SetMode(ctx context.Context, active bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.settings.Active = active
	e.markDirty(store.KeySettings)
	e.persist(ctx)
	e.logger.Info().Bool("active", active).Msg("Prediction mode changed")
}

// SetChannel configures the source or prediction channel.
func (e *Engine) SetChannel(ctx context.Context, kind string, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch kind {
	case ChannelSource:
		e.settings.SourceChannel = id
	case ChannelPrediction:
		e.settings.PredictionChannel = id
	default:
		return fmt.Errorf("unknown channel kind %q", kind)
	}
	e.markDirty(store.KeySettings)
	e.persist(ctx)
	e.logger.Info().Str("kind", kind).Int64("channel", id).Msg("Channel configured")
	return nil
}

// Settings returns the current administrative settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// Status returns a snapshot of the engine at now.
func (e *Engine) Status(now time.Time) model.Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	rs := make([]model.Rule, len(e.ruleSet.Rules))
	copy(rs, e.ruleSet.Rules)
	return model.Report{
		Active:            e.settings.Active,
		InSession:         e.sched.IsActive(now),
		SourceChannel:     e.settings.SourceChannel,
		PredictionChannel: e.settings.PredictionChannel,
		CooldownRemaining: e.quarantine.CooldownRemaining(now),
		LedgerGames:       e.ledger.Games(),
		LastGame:          e.ledger.MaxGame(),
		Observations:      len(e.ledger.Observations()),
		Rules:             rs,
		QuarantinedRules:  e.quarantine.Len(),
		Predictions:       e.book.Tally(),
		RuleSetVersion:    session.VersionLabel(e.ruleSet, e.sched.Location()),
		LastRecompute:     e.ruleSet.ComputedAt,
	}
}

// Prediction returns the prediction targeting game.
func (e *Engine) Prediction(target int) (model.Prediction, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Get(target)
}

// Predictions returns every prediction ordered by target game.
func (e *Engine) Predictions() []model.Prediction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Snapshot()
}
