package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Alias1177/CardPredictor/internal/engine"
	"github.com/Alias1177/CardPredictor/internal/model"
)

// Engine is the core surface the dispatcher drives.
type Engine interface {
	OnEvent(ctx context.Context, raw string) []model.Action
	BindMessage(ctx context.Context, target int, ref model.MessageRef) bool
	Tick(ctx context.Context, now time.Time) []model.Action
	Status(now time.Time) model.Report
	ForceRecompute(ctx context.Context) model.RuleSet
	Reset(ctx context.Context)
	SetMode(ctx context.Context, active bool)
	SetChannel(ctx context.Context, kind string, id int64) error
	Settings() engine.Settings
}

// Messenger publishes and edits messages.
type Messenger interface {
	Publish(ctx context.Context, chatID int64, text string) (model.MessageRef, error)
	Edit(ctx context.Context, chatID int64, ref model.MessageRef, text string) error
	Reply(ctx context.Context, chatID int64, text string) error
}

const helpText = `👋 Card suit predictor

/stat – quick status
/inter status – learned rules
/inter activate – recompute rules and enable predictions
/inter default – disable predictions
/collect – collected data
/reset – clear predictions
/config source – use this chat as the result source
/config prediction – publish predictions in this chat`

// Dispatcher routes Telegram updates to the engine and delivers the engine's
// outbound actions.
type Dispatcher struct {
	engine    Engine
	messenger Messenger
	now       func() time.Time

	userLimit int
	// limiters above maxUsers trigger eviction of the idle ones
	maxUsers int
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter

	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher allowing userLimit commands per user per minute.
func NewDispatcher(e Engine, m Messenger, userLimit int) *Dispatcher {
	if userLimit <= 0 {
		userLimit = 30
	}
	return &Dispatcher{
		engine:    e,
		messenger: m,
		now:       time.Now,
		userLimit: userLimit,
		maxUsers:  256,
		limiters:  make(map[int64]*rate.Limiter),
		logger:    log.With().Str("component", "dispatcher").Logger(),
	}
}

// HandleUpdate processes one update: commands, or source-channel posts and edits.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil {
		msg = update.EditedChannelPost
	}
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.Text == "" || msg.Chat == nil {
		return
	}

	if msg.IsCommand() {
		var userID int64
		if msg.From != nil {
			userID = msg.From.ID
		}
		if !d.allow(userID) {
			d.logger.Warn().Int64("user_id", userID).Msg("Command rate limit exceeded")
			return
		}
		d.handleCommand(ctx, msg)
		return
	}

	if msg.Chat.ID != d.engine.Settings().SourceChannel {
		return
	}
	d.Execute(ctx, d.engine.OnEvent(ctx, msg.Text))
}

func (d *Dispatcher) allow(userID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	l, ok := d.limiters[userID]
	if !ok {
		if len(d.limiters) >= d.maxUsers {
			d.evictIdle(now)
		}
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(d.userLimit)), d.userLimit)
		d.limiters[userID] = l
	}
	return l.AllowN(now, 1)
}

// evictIdle drops limiters that have refilled completely.
func (d *Dispatcher) evictIdle(now time.Time) {
	for id, l := range d.limiters {
		if l.TokensAt(now) >= float64(l.Burst()) {
			delete(d.limiters, id)
		}
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.Fields(strings.ToLower(msg.CommandArguments()))

	var reply string
	switch msg.Command() {
	case "start", "help":
		reply = helpText
	case "stat", "etat":
		reply = FormatStatus(d.engine.Status(d.now()))
	case "inter":
		action := "status"
		if len(args) > 0 {
			action = args[0]
		}
		switch action {
		case "activate":
			rs := d.engine.ForceRecompute(ctx)
			d.engine.SetMode(ctx, true)
			reply = fmt.Sprintf("✅ Predictions enabled, %d rules loaded", len(rs.Rules))
		case "default":
			d.engine.SetMode(ctx, false)
			reply = "❌ Predictions disabled"
		default:
			reply = FormatRules(d.engine.Status(d.now()))
		}
	case "collect":
		reply = FormatCollected(d.engine.Status(d.now()))
	case "reset":
		d.engine.Reset(ctx)
		reply = "♻️ Predictions reset"
	case "config":
		if len(args) == 0 {
			reply = "Usage: /config source|prediction"
			break
		}
		if err := d.engine.SetChannel(ctx, args[0], chatID); err != nil {
			reply = err.Error()
			break
		}
		reply = fmt.Sprintf("✅ %s channel set to %d", args[0], chatID)
	default:
		return
	}

	if err := d.messenger.Reply(ctx, chatID, reply); err != nil {
		d.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to reply to command")
	}
}

// Execute delivers actions to the prediction channel and binds published
// prediction messages back to the engine.
func (d *Dispatcher) Execute(ctx context.Context, actions []model.Action) {
	if len(actions) == 0 {
		return
	}
	channel := d.engine.Settings().PredictionChannel
	if channel == 0 {
		d.logger.Warn().Int("actions", len(actions)).Msg("Prediction channel not configured, dropping actions")
		return
	}

	for _, a := range actions {
		switch a.Kind {
		case model.ActionPublish:
			ref, err := d.messenger.Publish(ctx, channel, a.Text)
			if err != nil {
				d.logger.Error().Err(err).Int("target", a.TargetGame).Msg("Failed to publish")
				continue
			}
			if a.TargetGame != 0 {
				d.engine.BindMessage(ctx, a.TargetGame, ref)
			}
		case model.ActionEdit:
			if err := d.messenger.Edit(ctx, channel, a.MessageRef, a.Text); err != nil {
				d.logger.Error().Err(err).Int("message_id", int(a.MessageRef)).Msg("Failed to edit")
			}
		}
	}
}

// RunTicker calls Tick every interval until ctx is done.
func (d *Dispatcher) RunTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Execute(ctx, d.engine.Tick(ctx, d.now()))
		}
	}
}

// FormatStatus renders the status report for /stat.
func FormatStatus(r model.Report) string {
	mode := "disabled"
	if r.Active {
		mode = "enabled"
	}
	session := "closed"
	if r.InSession {
		session = "open"
	}

	var b strings.Builder
	b.WriteString("📊 STATUS\n\n")
	fmt.Fprintf(&b, "📥 Source: %d\n", r.SourceChannel)
	fmt.Fprintf(&b, "📤 Predictions: %d\n", r.PredictionChannel)
	fmt.Fprintf(&b, "🧠 Mode: %s, session %s\n", mode, session)
	if r.CooldownRemaining > 0 {
		fmt.Fprintf(&b, "⏸ Cooldown: %s\n", r.CooldownRemaining.Round(time.Second))
	}
	fmt.Fprintf(&b, "📚 Games: %d, observations: %d\n", r.LedgerGames, r.Observations)
	fmt.Fprintf(&b, "📐 Rules: %d (%d quarantined)\n", len(r.Rules), r.QuarantinedRules)
	fmt.Fprintf(&b, "🎯 Predictions: %d (✅ %d ❌ %d ⏳ %d)\n",
		r.Predictions.Total, r.Predictions.Won, r.Predictions.Lost, r.Predictions.Pending)
	fmt.Fprintf(&b, "🔄 Version: %s", r.RuleSetVersion)
	return b.String()
}

// FormatCollected renders the learning data for /collect.
func FormatCollected(r model.Report) string {
	var b strings.Builder
	b.WriteString("📚 COLLECTED DATA\n\n")
	fmt.Fprintf(&b, "🎲 Games kept: %d (last #%d)\n", r.LedgerGames, r.LastGame)
	fmt.Fprintf(&b, "🔗 Observations: %d\n", r.Observations)
	fmt.Fprintf(&b, "📐 Rules: %d (%d quarantined)\n", len(r.Rules), r.QuarantinedRules)
	fmt.Fprintf(&b, "🔄 Version: %s", r.RuleSetVersion)
	return b.String()
}

// FormatRules renders the learned rules for /inter status.
func FormatRules(r model.Report) string {
	if len(r.Rules) == 0 {
		return "No rules learned yet (" + r.RuleSetVersion + ")"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🧠 Rules (%s)\n\n", r.RuleSetVersion)
	for _, rule := range r.Rules {
		fmt.Fprintf(&b, "%s → %s (%d)\n", rule.Trigger, rule.PredictedSuit, rule.Support)
	}
	return strings.TrimRight(b.String(), "\n")
}
