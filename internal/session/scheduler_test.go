package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/CardPredictor/internal/model"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 5, day, hour, minute, 0, 0, time.UTC)
}

func TestParseWindows(t *testing.T) {
	ws, err := ParseWindows("2-5, 15-17,21-22")
	require.NoError(t, err)
	assert.Equal(t, []Window{{2, 5}, {15, 17}, {21, 22}}, ws)

	ws, err = ParseWindows("22-24")
	require.NoError(t, err)
	assert.Equal(t, []Window{{22, 0}}, ws)

	for _, bad := range []string{"", "5", "a-b", "3-3", "1-30"} {
		_, err := ParseWindows(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsActive(t *testing.T) {
	s := NewScheduler(time.UTC, nil)
	tests := []struct {
		hour   int
		active bool
	}{
		{1, false}, {2, true}, {4, true}, {5, false},
		{15, true}, {16, true}, {17, false}, {21, true}, {22, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.active, s.IsActive(at(1, tt.hour, 30)), "hour %d", tt.hour)
	}

	wrap := NewScheduler(time.UTC, []Window{{23, 2}})
	assert.True(t, wrap.IsActive(at(1, 23, 0)))
	assert.True(t, wrap.IsActive(at(1, 1, 0)))
	assert.False(t, wrap.IsActive(at(1, 2, 0)))
}

func TestIsActiveUsesLocation(t *testing.T) {
	loc := time.FixedZone("WAT", 3600)
	s := NewScheduler(loc, []Window{{2, 5}})
	// 01:30 UTC is 02:30 local
	assert.True(t, s.IsActive(at(1, 1, 30)))
	assert.False(t, s.IsActive(at(1, 4, 30)))
}

func TestDueOncePerBoundary(t *testing.T) {
	s := NewScheduler(time.UTC, []Window{{2, 5}})

	assert.Equal(t, []Occasion{{Kind: OccasionStart, Label: "02h–05h"}}, s.Due(at(1, 2, 0)))
	assert.Empty(t, s.Due(at(1, 2, 0)))
	assert.Empty(t, s.Due(at(1, 3, 0)))

	assert.Equal(t, []Occasion{{Kind: OccasionReport, Label: "02h–05h"}}, s.Due(at(1, 5, 0)))
	assert.Empty(t, s.Due(at(1, 5, 0)))

	// next day fires again
	assert.Len(t, s.Due(at(2, 5, 0)), 1)
}

func TestDueDailyReset(t *testing.T) {
	s := NewScheduler(time.UTC, []Window{{2, 5}})
	assert.Empty(t, s.Due(at(1, 0, 58)))
	assert.Equal(t, []Occasion{{Kind: OccasionDaily, Label: "daily"}}, s.Due(at(1, 0, 59)))
	assert.Empty(t, s.Due(at(1, 0, 59)))

	restored := NewScheduler(time.UTC, []Window{{2, 5}})
	restored.RestoreMarkers(s.Markers())
	restored.RestoreLastReset(s.LastReset())
	assert.Empty(t, restored.Due(at(1, 0, 59)))
	assert.Len(t, restored.Due(at(2, 0, 59)), 1)
}

func TestReportText(t *testing.T) {
	txt := ReportText("02h–05h", model.Tally{Total: 4, Won: 3, Lost: 1}, "fresh")
	assert.Contains(t, txt, "Session: 02h–05h")
	assert.Contains(t, txt, "Total: 4")
	assert.Contains(t, txt, "Rate: 75.00 %")
	assert.Contains(t, txt, "Rule set: fresh")
}

func TestVersionLabel(t *testing.T) {
	assert.Equal(t, "fresh", VersionLabel(model.RuleSet{}, time.UTC))
	rs := model.RuleSet{Version: 2, ComputedAt: at(3, 15, 4)}
	assert.Equal(t, "2024-05-03 | 15h04", VersionLabel(rs, time.UTC))
}
