package prediction

import (
	"fmt"

	"github.com/Alias1177/CardPredictor/internal/model"
)

var offsetSymbols = map[int]string{
	0: "✅0️⃣",
	1: "✅1️⃣",
	2: "✅2️⃣",
}

const (
	pendingSymbol = "⏳"
	lostSymbol    = "❌"
)

// Text renders the channel message for p in its current status.
func Text(p model.Prediction) string {
	return fmt.Sprintf("🔵%d🔵 : %s → %s", p.TargetGame, p.PredictedSuit, symbol(p))
}

func symbol(p model.Prediction) string {
	switch p.Status {
	case model.StatusWon:
		if s, ok := offsetSymbols[p.Offset]; ok {
			return s
		}
		return "✅"
	case model.StatusLost:
		return lostSymbol
	default:
		return pendingSymbol
	}
}
