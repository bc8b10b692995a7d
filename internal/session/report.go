package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/Alias1177/CardPredictor/internal/model"
)

// VersionLabel names a rule set for reports.
func VersionLabel(rs model.RuleSet, loc *time.Location) string {
	if rs.Version == 0 || rs.ComputedAt.IsZero() {
		return "fresh"
	}
	return rs.ComputedAt.In(loc).Format("2006-01-02 | 15h04")
}

// ReportText renders a session summary.
func ReportText(label string, t model.Tally, version string) string {
	var b strings.Builder
	b.WriteString("📊 *SESSION REPORT*\n\n")
	fmt.Fprintf(&b, "⏰ Session: %s\n\n", label)
	fmt.Fprintf(&b, "📈 Total: %d\n", t.Total)
	fmt.Fprintf(&b, "✅ Won: %d\n", t.Won)
	fmt.Fprintf(&b, "❌ Lost: %d\n\n", t.Lost)
	fmt.Fprintf(&b, "📊 Rate: %.2f %%\n\n", t.Rate())
	fmt.Fprintf(&b, "🧠 Rule set: %s", version)
	return b.String()
}

// StartText announces that a prediction window opened.
func StartText(label string) string {
	return fmt.Sprintf("🚀 *Predictions resume* for session %s", label)
}
