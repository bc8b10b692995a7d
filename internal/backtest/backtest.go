// Package backtest replays a recorded source-channel log through a fresh
// engine and summarises how its predictions fared.
package backtest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Alias1177/CardPredictor/internal/engine"
	"github.com/Alias1177/CardPredictor/internal/model"
	"github.com/Alias1177/CardPredictor/internal/store"
)

// Post is one recorded source message.
type Post struct {
	At   time.Time
	Text string
}

// Results summarises a replay.
type Results struct {
	Posts          int                    `json:"posts"`
	Predictions    model.Tally            `json:"predictions"`
	WinsByOffset   map[int]int            `json:"wins_by_offset"`
	SuitWinRate    map[model.Suit]float64 `json:"suit_win_rate"`
	MaxConsecutive struct {
		Wins  int `json:"wins"`
		Loses int `json:"loses"`
	} `json:"max_consecutive"`
	Reports []string `json:"reports"`
}

// ReadPosts parses a log with one post per line as "<RFC3339>\t<text>".
// Lines without a timestamp are placed one minute after the previous post,
// starting at start.
func ReadPosts(r io.Reader, start time.Time) ([]Post, error) {
	var posts []Post
	at := start
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if ts, rest, ok := strings.Cut(text, "\t"); ok {
			parsed, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				return nil, fmt.Errorf("line %d: parsing timestamp: %w", line, err)
			}
			at, text = parsed, rest
		} else if len(posts) > 0 {
			at = at.Add(time.Minute)
		}
		posts = append(posts, Post{At: at, Text: text})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading posts: %w", err)
	}
	return posts, nil
}

// Run feeds posts to an engine built from opts, ticking the scheduler once per
// elapsed minute. opts.Store and opts.Clock are replaced.
func Run(ctx context.Context, posts []Post, opts engine.Options) (*Results, error) {
	if len(posts) == 0 {
		return nil, fmt.Errorf("no posts to replay")
	}

	now := posts[0].At
	opts.Store = store.NewMemory()
	opts.Clock = func() time.Time { return now }
	e := engine.New(ctx, opts)

	results := &Results{
		WinsByOffset: make(map[int]int),
		SuitWinRate:  make(map[model.Suit]float64),
	}

	// the daily reset may clear the book, so predictions are gathered
	// before every tick and merged by ID
	seen := newHistory()

	lastTick := now.Truncate(time.Minute)
	for _, p := range posts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for t := lastTick.Add(time.Minute); !t.After(p.At); t = t.Add(time.Minute) {
			now = t
			seen.merge(e.Predictions())
			collectReports(results, e.Tick(ctx, t))
			lastTick = t
		}
		now = p.At
		results.Posts++
		e.OnEvent(ctx, p.Text)
	}
	seen.merge(e.Predictions())

	summarise(results, seen.list())
	return results, nil
}

type history struct {
	byID  map[string]int
	preds []model.Prediction
}

func newHistory() *history {
	return &history{byID: make(map[string]int)}
}

func (h *history) merge(preds []model.Prediction) {
	for _, p := range preds {
		if i, ok := h.byID[p.ID]; ok {
			h.preds[i] = p
			continue
		}
		h.byID[p.ID] = len(h.preds)
		h.preds = append(h.preds, p)
	}
}

// list returns every prediction in creation order.
func (h *history) list() []model.Prediction {
	out := make([]model.Prediction, len(h.preds))
	copy(out, h.preds)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].SourceGame < out[j].SourceGame
	})
	return out
}

func collectReports(r *Results, actions []model.Action) {
	for _, a := range actions {
		if a.Kind == model.ActionPublish && a.TargetGame == 0 {
			r.Reports = append(r.Reports, a.Text)
		}
	}
}

func summarise(r *Results, preds []model.Prediction) {
	type suitStats struct{ won, total int }
	bySuit := make(map[model.Suit]*suitStats)

	wins, losses := 0, 0
	for _, p := range preds {
		r.Predictions.Total++
		s, ok := bySuit[p.PredictedSuit]
		if !ok {
			s = &suitStats{}
			bySuit[p.PredictedSuit] = s
		}

		switch p.Status {
		case model.StatusWon:
			r.Predictions.Won++
			r.WinsByOffset[p.Offset]++
			s.won++
			s.total++
			wins++
			losses = 0
		case model.StatusLost:
			r.Predictions.Lost++
			s.total++
			losses++
			wins = 0
		default:
			r.Predictions.Pending++
			continue
		}
		if wins > r.MaxConsecutive.Wins {
			r.MaxConsecutive.Wins = wins
		}
		if losses > r.MaxConsecutive.Loses {
			r.MaxConsecutive.Loses = losses
		}
	}

	for suit, s := range bySuit {
		if s.total > 0 {
			r.SuitWinRate[suit] = float64(s.won) / float64(s.total) * 100
		}
	}
}
