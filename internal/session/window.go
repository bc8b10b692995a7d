// Package session decides when predictions may be issued and when the
// periodic session reports and the daily reset are due.
package session

import (
	"fmt"
	"strconv"
	"strings"
)

// Window is an hour range [Start, End) of the civil day. A window with
// Start > End wraps past midnight.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether hour lies in the window.
func (w Window) Contains(hour int) bool {
	if w.Start <= w.End {
		return hour >= w.Start && hour < w.End
	}
	return hour >= w.Start || hour < w.End
}

// Label renders the window as "02h–05h".
func (w Window) Label() string {
	return fmt.Sprintf("%02dh–%02dh", w.Start, w.End)
}

// DefaultWindows are the prediction sessions used when none are configured.
var DefaultWindows = []Window{{2, 5}, {15, 17}, {21, 22}}

// ParseWindows parses a list such as "2-5,15-17,21-22".
func ParseWindows(s string) ([]Window, error) {
	var out []Window
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bounds := strings.SplitN(part, "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("window %q: expected start-end", part)
		}
		start, err := parseHour(bounds[0])
		if err != nil {
			return nil, fmt.Errorf("window %q: %w", part, err)
		}
		end, err := parseHour(bounds[1])
		if err != nil {
			return nil, fmt.Errorf("window %q: %w", part, err)
		}
		if start == end {
			return nil, fmt.Errorf("window %q: empty range", part)
		}
		out = append(out, Window{Start: start, End: end})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no session windows in %q", s)
	}
	return out, nil
}

func parseHour(s string) (int, error) {
	h, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parsing hour: %w", err)
	}
	if h < 0 || h > 24 {
		return 0, fmt.Errorf("hour %d out of range", h)
	}
	return h % 24, nil
}
