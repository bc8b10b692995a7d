package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/CardPredictor/internal/model"
	"github.com/Alias1177/CardPredictor/internal/session"
	"github.com/Alias1177/CardPredictor/internal/store"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestEngine(t *testing.T, s store.Store, start time.Time, opts ...func(*Options)) (*Engine, *clock) {
	t.Helper()
	c := &clock{t: start}
	o := Options{
		Store:              s,
		Scheduler:          session.NewScheduler(time.UTC, session.DefaultWindows),
		NearMissQuarantine: true,
		Settings:           Settings{Active: true, SourceChannel: -100, PredictionChannel: -200},
		Clock:              c.Now,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return New(context.Background(), o), c
}

// msg renders a source-channel post for game with the given first group.
func msg(game int, cards string) string {
	return fmt.Sprintf("#N%d. ✅3(%s) - 7(2♠️3♠️)", game, cards)
}

func feed(e *Engine, posts ...string) []model.Action {
	var out []model.Action
	for _, p := range posts {
		out = append(out, e.OnEvent(context.Background(), p)...)
	}
	return out
}

// seed builds the rules 5♠→♥ (2), K♦→♣ (2) and Q♦→♣ (2).
func seed(e *Engine) {
	feed(e,
		msg(100, "5♠️"), msg(102, "7♥️"),
		msg(110, "5♠️"), msg(112, "8❤️"),
		msg(120, "K♦️"), msg(122, "2♣️"),
		msg(130, "K♦️"), msg(132, "3♣️"),
		msg(140, "Q♦️"), msg(142, "4♣️"),
		msg(150, "Q♦️"), msg(152, "6♣️"),
	)
	e.ForceRecompute(context.Background())
}

var sessionStart = time.Date(2024, 6, 3, 15, 10, 0, 0, time.UTC)

func TestIgnoresNonEvents(t *testing.T) {
	e, _ := newTestEngine(t, store.NewMemory(), sessionStart)
	assert.Nil(t, e.OnEvent(context.Background(), "hello"))
	assert.Nil(t, e.OnEvent(context.Background(), "#N5 ()"))
	assert.Equal(t, 0, e.Status(sessionStart).LedgerGames)
}

func TestObservationExample(t *testing.T) {
	e, _ := newTestEngine(t, store.NewMemory(), sessionStart)
	feed(e, msg(10, "5♠️"), msg(12, "Q♦️J♣️"))
	rs := e.ForceRecompute(context.Background())
	assert.Equal(t, []model.Rule{{
		Trigger:       model.Card{Value: "5", Suit: model.Spades},
		PredictedSuit: model.Diamonds,
		Support:       1,
	}}, rs.Rules)
}

func TestPredictionLostThenQuarantined(t *testing.T) {
	ctx := context.Background()
	e, c := newTestEngine(t, store.NewMemory(), sessionStart)
	seed(e)

	actions := feed(e, msg(200, "5♠️"))
	require.Len(t, actions, 1)
	assert.Equal(t, model.ActionPublish, actions[0].Kind)
	assert.Equal(t, 202, actions[0].TargetGame)
	assert.Equal(t, "🔵202🔵 : ♥ → ⏳", actions[0].Text)
	require.True(t, e.BindMessage(ctx, 202, 100))

	assert.Empty(t, feed(e, msg(202, "9♣️"), msg(203, "10♣️")))
	actions = feed(e, msg(204, "J♠️"))
	require.Len(t, actions, 1)
	assert.Equal(t, model.Edit(100, "🔵202🔵 : ♥ → ❌"), actions[0])

	p, ok := e.Prediction(202)
	require.True(t, ok)
	assert.Equal(t, model.StatusLost, p.Status)

	st := e.Status(c.Now())
	assert.Equal(t, 1, st.QuarantinedRules)
	assert.Equal(t, 30*time.Minute, st.CooldownRemaining)

	// cooldown blocks every prediction
	assert.Empty(t, feed(e, msg(210, "K♦️")))

	// after the cooldown and a recompute, support is unchanged so 5♠→♥ stays blocked
	c.Advance(31 * time.Minute)
	assert.Empty(t, feed(e, msg(220, "5♠️")))

	// fresh evidence for 5♠→♥ lifts the quarantine
	feed(e, msg(222, "A♥️"))
	e.ForceRecompute(ctx)
	actions = feed(e, msg(230, "5♠️"))
	require.Len(t, actions, 1)
	assert.Equal(t, 232, actions[0].TargetGame)
}

func TestPredictionWonEditsMessage(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemory(), sessionStart)
	seed(e)

	feed(e, msg(300, "K♦️"))
	require.True(t, e.BindMessage(ctx, 302, 55))

	actions := feed(e, msg(302, "2♥️"), msg(303, "J♣️"))
	require.Len(t, actions, 1)
	assert.Equal(t, model.Edit(55, "🔵302🔵 : ♣ → ✅1️⃣"), actions[0])

	st := e.Status(sessionStart)
	assert.Zero(t, st.QuarantinedRules)
	assert.Zero(t, st.CooldownRemaining)
	assert.Equal(t, model.Tally{Total: 1, Won: 1}, st.Predictions)
}

func TestNearMissQuarantines(t *testing.T) {
	e, c := newTestEngine(t, store.NewMemory(), sessionStart)
	seed(e)

	feed(e, msg(300, "K♦️"))
	actions := feed(e, msg(302, "2♥️"), msg(303, "2♥️"), msg(304, "3♣️"))
	require.Len(t, actions, 1)
	// unbound message: the result is published instead of edited
	assert.Equal(t, model.Publish("🔵302🔵 : ♣ → ✅2️⃣"), actions[0])
	assert.Equal(t, 1, e.Status(c.Now()).QuarantinedRules)
}

func TestNoDuplicatePredictionForTarget(t *testing.T) {
	e, _ := newTestEngine(t, store.NewMemory(), sessionStart)
	seed(e)

	require.Len(t, feed(e, msg(400, "5♠️")), 1)
	// an edited repost of the same game does not predict twice
	assert.Empty(t, feed(e, msg(400, "5♠️")))
}

func TestCreationGuards(t *testing.T) {
	t.Run("inactive mode", func(t *testing.T) {
		e, _ := newTestEngine(t, store.NewMemory(), sessionStart)
		seed(e)
		e.SetMode(context.Background(), false)
		assert.Empty(t, feed(e, msg(500, "5♠️")))
	})

	t.Run("outside session", func(t *testing.T) {
		e, c := newTestEngine(t, store.NewMemory(), sessionStart)
		seed(e)
		c.Advance(2 * time.Hour) // 17:10
		assert.Empty(t, feed(e, msg(500, "5♠️")))
	})

	t.Run("verification runs outside session", func(t *testing.T) {
		e, c := newTestEngine(t, store.NewMemory(), sessionStart)
		seed(e)
		require.Len(t, feed(e, msg(500, "5♠️")), 1)
		e.SetMode(context.Background(), false)
		c.Advance(2 * time.Hour)
		actions := feed(e, msg(502, "4♥️"))
		require.Len(t, actions, 1)
		assert.Contains(t, actions[0].Text, "✅0️⃣")
	})
}

func TestTickReports(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemory(), sessionStart)
	seed(e)
	feed(e, msg(600, "5♠️"), msg(602, "5♥️"))

	actions := e.Tick(ctx, time.Date(2024, 6, 3, 17, 0, 0, 0, time.UTC))
	require.Len(t, actions, 1)
	assert.Contains(t, actions[0].Text, "Session: 15h–17h")
	assert.Contains(t, actions[0].Text, "Total: 1")
	assert.Contains(t, actions[0].Text, "Won: 1")

	assert.Empty(t, e.Tick(ctx, time.Date(2024, 6, 3, 17, 0, 30, 0, time.UTC)))

	actions = e.Tick(ctx, time.Date(2024, 6, 3, 21, 0, 0, 0, time.UTC))
	require.Len(t, actions, 1)
	assert.Contains(t, actions[0].Text, "21h–22h")
}

func TestDailyResetScopes(t *testing.T) {
	ctx := context.Background()
	resetAt := time.Date(2024, 6, 4, 0, 59, 0, 0, time.UTC)

	tests := []struct {
		scope        ResetScope
		predictions  model.Tally
		observations bool
	}{
		{ResetPending, model.Tally{Total: 1, Won: 1}, true},
		{ResetPredictions, model.Tally{}, true},
		{ResetFull, model.Tally{}, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.scope), func(t *testing.T) {
			e, _ := newTestEngine(t, store.NewMemory(), sessionStart, func(o *Options) { o.ResetScope = tt.scope })
			seed(e)
			feed(e, msg(600, "5♠️"), msg(602, "5♥️"), msg(700, "5♠️"))

			actions := e.Tick(ctx, resetAt)
			require.Len(t, actions, 1)
			assert.Contains(t, actions[0].Text, "Session: daily")
			assert.Contains(t, actions[0].Text, "Total: 2")

			st := e.Status(resetAt)
			assert.Equal(t, tt.predictions, st.Predictions)
			assert.Equal(t, tt.observations, st.Observations > 0)
			if tt.scope == ResetFull {
				assert.Empty(t, st.Rules)
			}

			// the reset fires once per day
			assert.Empty(t, e.Tick(ctx, resetAt.Add(10*time.Second)))
		})
	}
}

func TestManualResetUsesScope(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	e, _ := newTestEngine(t, s, sessionStart)
	seed(e)
	require.Len(t, feed(e, msg(200, "5♠️")), 1)

	e.Reset(ctx)
	st := e.Status(sessionStart)
	assert.Zero(t, st.Predictions.Total)
	assert.Positive(t, st.Observations)
	assert.Equal(t, 200, st.LastGame)

	var stored []model.Prediction
	found, err := s.Load(ctx, store.KeyPredictions, &stored)
	require.NoError(t, err)
	require.True(t, found)
	assert.Empty(t, stored)

	// the cleared target can be predicted again
	require.Len(t, feed(e, msg(300, "5♠️")), 1)
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	e, c := newTestEngine(t, s, sessionStart)
	seed(e)
	feed(e, msg(200, "5♠️"))
	e.BindMessage(ctx, 202, 9)
	feed(e, msg(202, "9♣️"), msg(204, "J♠️"))
	require.NoError(t, e.SetChannel(ctx, ChannelPrediction, -300))

	restarted, _ := newTestEngine(t, s, c.Now(), func(o *Options) { o.Settings = Settings{} })
	st := restarted.Status(c.Now())
	assert.True(t, st.Active)
	assert.Equal(t, int64(-300), st.PredictionChannel)
	assert.Equal(t, 1, st.QuarantinedRules)
	assert.Equal(t, 30*time.Minute, st.CooldownRemaining)
	assert.Equal(t, model.Tally{Total: 1, Lost: 1}, st.Predictions)
	assert.Equal(t, e.Status(c.Now()).Rules, st.Rules)

	// duplicates of games recorded before the restart are still ignored
	before := st.Observations
	feed(restarted, msg(102, "7♥️"))
	assert.Equal(t, before, restarted.Status(c.Now()).Observations)
}

func TestSetChannelRejectsUnknownKind(t *testing.T) {
	e, _ := newTestEngine(t, store.NewMemory(), sessionStart)
	assert.Error(t, e.SetChannel(context.Background(), "archive", 1))
	require.NoError(t, e.SetChannel(context.Background(), ChannelSource, 42))
	assert.Equal(t, int64(42), e.Settings().SourceChannel)
}

type failingStore struct {
	*store.Memory
	fail bool
}

func (f *failingStore) Save(ctx context.Context, key string, v any) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Memory.Save(ctx, key, v)
}

func TestStoreFailureIsNotFatal(t *testing.T) {
	s := &failingStore{Memory: store.NewMemory(), fail: true}
	e, _ := newTestEngine(t, s, sessionStart)
	seed(e)

	actions := feed(e, msg(200, "5♠️"))
	require.Len(t, actions, 1)
	assert.Zero(t, s.Saves(store.KeyPredictions))

	// dirty records are written by the next successful mutation
	s.fail = false
	e.SetMode(context.Background(), true)
	assert.Equal(t, 1, s.Saves(store.KeyPredictions))
	assert.Equal(t, 1, s.Saves(store.KeyLedger))
}

func TestConcurrentEventsAndTicks(t *testing.T) {
	e, c := newTestEngine(t, store.NewMemory(), sessionStart, func(o *Options) { o.LedgerWindow = 5000 })
	seed(e)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				e.OnEvent(context.Background(), msg(1000+w*100+i, "5♠️6♥️"))
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			e.Tick(context.Background(), c.Now())
			e.Status(c.Now())
		}
	}()
	wg.Wait()

	assert.Equal(t, 200+12, e.Status(c.Now()).LedgerGames)
}

func TestParseResetScope(t *testing.T) {
	s, err := ParseResetScope("")
	require.NoError(t, err)
	assert.Equal(t, ResetPredictions, s)
	s, err = ParseResetScope("full")
	require.NoError(t, err)
	assert.Equal(t, ResetFull, s)
	_, err = ParseResetScope("weekly")
	assert.Error(t, err)
}
