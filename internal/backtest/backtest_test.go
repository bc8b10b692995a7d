package backtest

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/CardPredictor/internal/engine"
	"github.com/Alias1177/CardPredictor/internal/model"
	"github.com/Alias1177/CardPredictor/internal/session"
)

func TestReadPosts(t *testing.T) {
	start := time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)
	in := "#N1 (5♠️)\n\n#N2 (K♥️)\n2024-06-03T16:30:00Z\t#N3 (2♣️)\n#N4 (3♣️)\n"

	posts, err := ReadPosts(strings.NewReader(in), start)
	require.NoError(t, err)
	require.Len(t, posts, 4)
	assert.Equal(t, start, posts[0].At)
	assert.Equal(t, start.Add(time.Minute), posts[1].At)
	assert.Equal(t, time.Date(2024, 6, 3, 16, 30, 0, 0, time.UTC), posts[2].At)
	assert.Equal(t, "#N3 (2♣️)", posts[2].Text)
	assert.Equal(t, posts[2].At.Add(time.Minute), posts[3].At)

	_, err = ReadPosts(strings.NewReader("yesterday\t#N1 (5♠️)"), start)
	assert.Error(t, err)
}

// patternedLog returns one post per game from first to last. 5♠ is always
// followed two games later by a heart.
func patternedLog(first, last int) []string {
	var lines []string
	for g := first; g <= last; g++ {
		card := "9♦️"
		switch g % 4 {
		case 1:
			card = "5♠️"
		case 3:
			card = "Q♥️"
		}
		lines = append(lines, "#N"+strconv.Itoa(g)+" ("+card+")")
	}
	return lines
}

func replayOptions() engine.Options {
	return engine.Options{
		Scheduler:         session.NewScheduler(time.UTC, []session.Window{{Start: 15, End: 16}}),
		RecomputeInterval: 5 * time.Minute,
		Settings:          engine.Settings{Active: true},
	}
}

func TestRun(t *testing.T) {
	start := time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)
	posts, err := ReadPosts(strings.NewReader(strings.Join(patternedLog(1, 40), "\n")), start)
	require.NoError(t, err)

	res, err := Run(context.Background(), posts, replayOptions())
	require.NoError(t, err)

	assert.Equal(t, 40, res.Posts)
	require.Positive(t, res.Predictions.Total)
	assert.Zero(t, res.Predictions.Lost)
	assert.Equal(t, res.Predictions.Won, res.WinsByOffset[0])
	assert.Equal(t, 100.0, res.SuitWinRate[model.Hearts])
	assert.Equal(t, res.Predictions.Won, res.MaxConsecutive.Wins)
}

func TestRunKeepsPredictionsAcrossDailyReset(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)
	dayOne := patternedLog(1, 60)

	onePosts, err := ReadPosts(strings.NewReader(strings.Join(dayOne, "\n")), start)
	require.NoError(t, err)
	oneDay, err := Run(ctx, onePosts, replayOptions())
	require.NoError(t, err)
	require.Positive(t, oneDay.Predictions.Won)

	// day two is outside the prediction window, after the 00:59 reset
	dayTwo := patternedLog(101, 160)
	dayTwo[0] = "2024-06-04T10:00:00Z\t" + dayTwo[0]
	all := append(append([]string{}, dayOne...), dayTwo...)
	twoPosts, err := ReadPosts(strings.NewReader(strings.Join(all, "\n")), start)
	require.NoError(t, err)
	twoDays, err := Run(ctx, twoPosts, replayOptions())
	require.NoError(t, err)

	assert.Equal(t, 120, twoDays.Posts)
	assert.Equal(t, oneDay.Predictions, twoDays.Predictions)
	assert.Equal(t, oneDay.WinsByOffset, twoDays.WinsByOffset)
	assert.Equal(t, oneDay.MaxConsecutive, twoDays.MaxConsecutive)

	var daily bool
	for _, r := range twoDays.Reports {
		if strings.Contains(r, "Session: daily") {
			daily = true
		}
	}
	assert.True(t, daily)
}

func TestRunRejectsEmptyLog(t *testing.T) {
	_, err := Run(context.Background(), nil, engine.Options{})
	assert.Error(t, err)
}
