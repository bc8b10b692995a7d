package model

// Suit is the canonical glyph of a card suit, without emoji variation selectors.
type Suit string

const (
	Spades   Suit = "♠"
	Hearts   Suit = "♥"
	Diamonds Suit = "♦"
	Clubs    Suit = "♣"
)

// Suits lists the suits in their canonical order.
var Suits = []Suit{Spades, Hearts, Diamonds, Clubs}

// Index returns the position of the suit in Suits, or -1 when unknown.
func (s Suit) Index() int {
	for i, v := range Suits {
		if v == s {
			return i
		}
	}
	return -1
}

// Card is a single card token such as 10♦ or Q♠.
type Card struct {
	Value string `json:"value"` // 2..10, A, K, Q, J (upper case)
	Suit  Suit   `json:"suit"`
}

func (c Card) String() string {
	return c.Value + string(c.Suit)
}

// IsZero reports whether the card is unset.
func (c Card) IsZero() bool {
	return c.Value == "" && c.Suit == ""
}

// GameEvent is a parsed game result: the game number and the cards of the first group.
type GameEvent struct {
	GameNumber int    `json:"game_number"`
	Cards      []Card `json:"cards"`
}

// FirstCard returns the trigger card of the game.
func (e GameEvent) FirstCard() Card {
	if len(e.Cards) == 0 {
		return Card{}
	}
	return e.Cards[0]
}

// HasSuit reports whether any card of the first group is of suit s.
func (e GameEvent) HasSuit(s Suit) bool {
	for _, c := range e.Cards {
		if c.Suit == s {
			return true
		}
	}
	return false
}

// Observation pairs the trigger of game N-2 with the result suit of game N.
type Observation struct {
	Trigger    Card `json:"trigger"`
	ResultSuit Suit `json:"result_suit"`
	SourceGame int  `json:"source_game"`
}
