package session

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Daily reset happens at this wall-clock minute.
const (
	ResetHour   = 0
	ResetMinute = 59
)

// OccasionKind is what a tick asks the engine to do.
type OccasionKind string

const (
	OccasionStart  OccasionKind = "start"
	OccasionReport OccasionKind = "report"
	OccasionDaily  OccasionKind = "daily"
)

// Occasion is a due scheduler action.
type Occasion struct {
	Kind  OccasionKind
	Label string
}

// Scheduler evaluates session windows in a fixed civil timezone.
type Scheduler struct {
	loc     *time.Location
	windows []Window
	// fired remembers the boundaries already acted on today, so a
	// per-minute tick acts at most once per boundary per day.
	fired     map[string]bool
	lastReset string
	logger    zerolog.Logger
}

// NewScheduler creates a scheduler. A nil loc means UTC; no windows means DefaultWindows.
func NewScheduler(loc *time.Location, windows []Window) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if len(windows) == 0 {
		windows = DefaultWindows
	}
	return &Scheduler{
		loc:     loc,
		windows: windows,
		fired:   make(map[string]bool),
		logger:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Location returns the civil timezone of the windows.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// IsActive reports whether now falls inside a prediction window.
func (s *Scheduler) IsActive(now time.Time) bool {
	_, ok := s.Current(now)
	return ok
}

// Current returns the window containing now.
func (s *Scheduler) Current(now time.Time) (Window, bool) {
	h := now.In(s.loc).Hour()
	for _, w := range s.windows {
		if w.Contains(h) {
			return w, true
		}
	}
	return Window{}, false
}

// Due returns the occasions that fire at now and marks them as fired.
func (s *Scheduler) Due(now time.Time) []Occasion {
	local := now.In(s.loc)
	day := local.Format("2006-01-02")
	s.prune(day)

	var out []Occasion
	if local.Minute() == 0 {
		for _, w := range s.windows {
			if local.Hour() == w.Start && s.fire(day, "start", w) {
				out = append(out, Occasion{Kind: OccasionStart, Label: w.Label()})
			}
			if local.Hour() == w.End && s.fire(day, "end", w) {
				out = append(out, Occasion{Kind: OccasionReport, Label: w.Label()})
			}
		}
	}

	if local.Hour() == ResetHour && local.Minute() == ResetMinute && s.lastReset != day {
		s.lastReset = day
		out = append(out, Occasion{Kind: OccasionDaily, Label: "daily"})
	}

	for _, o := range out {
		s.logger.Info().Str("kind", string(o.Kind)).Str("label", o.Label).Str("day", day).Msg("Scheduler occasion due")
	}
	return out
}

func (s *Scheduler) fire(day, edge string, w Window) bool {
	key := fmt.Sprintf("%s@%s:%02d-%02d", day, edge, w.Start, w.End)
	if s.fired[key] {
		return false
	}
	s.fired[key] = true
	return true
}

// prune forgets markers of previous days.
func (s *Scheduler) prune(day string) {
	for k := range s.fired {
		if len(k) < len(day) || k[:len(day)] != day {
			delete(s.fired, k)
		}
	}
}

// Markers returns the fired boundary keys of the current day.
func (s *Scheduler) Markers() map[string]bool {
	fired := make(map[string]bool, len(s.fired))
	for k, v := range s.fired {
		fired[k] = v
	}
	return fired
}

// RestoreMarkers replaces the fired boundary keys.
func (s *Scheduler) RestoreMarkers(m map[string]bool) {
	s.fired = make(map[string]bool, len(m))
	for k, v := range m {
		s.fired[k] = v
	}
}

// LastReset returns the civil date (YYYY-MM-DD) of the last daily reset.
func (s *Scheduler) LastReset() string {
	return s.lastReset
}

// RestoreLastReset sets the civil date of the last daily reset.
func (s *Scheduler) RestoreLastReset(day string) {
	s.lastReset = day
}
