// Package extract parses game-result messages posted in the source channel.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Alias1177/CardPredictor/internal/model"
)

var (
	gameNumberRe = regexp.MustCompile(`#N(\d+)|🔵(\d+)🔵`)
	firstGroupRe = regexp.MustCompile(`\(([^)]*)\)`)
	// 10 must come before the single digits so "10♦" is not read as "0♦".
	cardRe = regexp.MustCompile(`(?i)(10|[2-9]|[AKQJ])(♠|♥|❤|♦|♣)\x{FE0F}?`)
)

var suitGlyphs = map[string]model.Suit{
	"♠": model.Spades,
	"♥": model.Hearts,
	"❤": model.Hearts,
	"♦": model.Diamonds,
	"♣": model.Clubs,
}

// Extract returns the game event contained in text. ok is false when the text
// has no game number or no card in its first parenthesised group.
func Extract(text string) (model.GameEvent, bool) {
	game, ok := GameNumber(text)
	if !ok {
		return model.GameEvent{}, false
	}
	cards := FirstGroup(text)
	if len(cards) == 0 {
		return model.GameEvent{}, false
	}
	return model.GameEvent{GameNumber: game, Cards: cards}, true
}

// GameNumber returns the first "#N<digits>" or "🔵<digits>🔵" marker in text.
func GameNumber(text string) (int, bool) {
	m := gameNumberRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	digits := m[1]
	if digits == "" {
		digits = m[2]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FirstGroup returns the cards of the first parenthesised group, in order.
func FirstGroup(text string) []model.Card {
	m := firstGroupRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	var cards []model.Card
	for _, c := range cardRe.FindAllStringSubmatch(m[1], -1) {
		cards = append(cards, model.Card{
			Value: strings.ToUpper(c[1]),
			Suit:  suitGlyphs[c[2]],
		})
	}
	return cards
}

// ParseCard parses a single token such as "10♦" or "q♥️".
func ParseCard(token string) (model.Card, bool) {
	m := cardRe.FindStringSubmatch(token)
	if m == nil || m[0] != strings.TrimSpace(token) {
		return model.Card{}, false
	}
	return model.Card{Value: strings.ToUpper(m[1]), Suit: suitGlyphs[m[2]]}, true
}
